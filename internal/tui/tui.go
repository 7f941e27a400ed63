// Package tui renders controller snapshots in the terminal with bubbletea
// and maps keys onto controller operations.
package tui

import (
	"context"
	"errors"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/casedeck/internal/controller"
)

// snapshotMsg carries a new controller state into the program.
type snapshotMsg controller.Snapshot

// Bridge is the controller.View for the terminal. Render never blocks: it
// keeps only the newest snapshot and wakes the forwarder, which hands it
// to the running program.
type Bridge struct {
	latest atomic.Pointer[controller.Snapshot]
	kick   chan struct{}
}

// NewBridge returns an idle bridge.
func NewBridge() *Bridge {
	return &Bridge{kick: make(chan struct{}, 1)}
}

// Render implements controller.View.
func (b *Bridge) Render(s controller.Snapshot) {
	b.latest.Store(&s)
	select {
	case b.kick <- struct{}{}:
	default:
	}
}

// forward delivers snapshots to p until ctx is done.
func (b *Bridge) forward(ctx context.Context, p *tea.Program) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.kick:
			if s := b.latest.Load(); s != nil {
				p.Send(snapshotMsg(*s))
			}
		}
	}
}

// Run starts the terminal UI and blocks until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, ctrl Controller, bridge *Bridge) error {
	m := NewModel(ctrl, ctrl.Snapshot())
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	fwdCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go bridge.forward(fwdCtx, p)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
