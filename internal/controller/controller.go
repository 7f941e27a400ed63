// Package controller implements the client controller: the cached record
// list, filters, the create/edit form and delete confirmation, driven by a
// single event loop.
package controller

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/starford/casedeck/internal/models"
	"github.com/starford/casedeck/internal/schedule"
)

// User-facing messages.
const (
	msgLoadFailed   = "Failed to load test cases. Please try again."
	msgSaveFailed   = "Failed to save test case. Please try again."
	msgDeleteFailed = "Failed to delete test case. Please try again."
	msgCreated      = "Test case created successfully!"
	msgUpdated      = "Test case updated successfully!"
	msgDeleted      = "Test case deleted successfully!"
	msgInvalidForm  = "Please fill in all required fields"
	msgNotFound     = "Test case not found. Please reload."
)

// Defaults for Options left zero.
const (
	DefaultSearchDebounce = 300 * time.Millisecond
	DefaultNoticeTTL      = 4 * time.Second
)

// API is the subset of the backend client the controller needs.
type API interface {
	List(ctx context.Context, f models.Filters) ([]models.Record, error)
	Create(ctx context.Context, d models.Draft) (*models.Record, error)
	Update(ctx context.Context, id int64, d models.Draft) (*models.Record, error)
	Delete(ctx context.Context, id int64) error
}

// Options tunes controller timing and logging.
type Options struct {
	SearchDebounce time.Duration
	NoticeTTL      time.Duration
	Logger         *slog.Logger
}

// Controller owns all client state. Public methods only enqueue events;
// the loop started by Run applies them one at a time, so state needs no
// locking. Network calls run on their own goroutines and post their
// results back into the loop.
//
// Overlapping list requests are sequenced: a response is applied only if
// it belongs to a request issued after the one last applied.
type Controller struct {
	api    API
	view   View
	logger *slog.Logger

	events  chan func()
	stopped chan struct{}
	last    atomic.Pointer[Snapshot]

	// Loop-owned state below.
	ctx         context.Context
	records     []models.Record
	loaded      bool
	filters     models.Filters
	modal       Modal
	modalSeq    uint64
	confirm     *models.Record
	notice      *Notice
	noticeSeq   uint64
	version     uint64
	listIssued  uint64
	listApplied uint64
	inflight    int

	searchTask *schedule.Task
	noticeTask *schedule.Task
}

// New creates a controller that renders into view. Call Run to start it.
func New(api API, view View, opts Options) *Controller {
	if opts.SearchDebounce <= 0 {
		opts.SearchDebounce = DefaultSearchDebounce
	}
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = DefaultNoticeTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if view == nil {
		view = ViewFunc(func(Snapshot) {})
	}

	c := &Controller{
		api:     api,
		view:    view,
		logger:  opts.Logger,
		events:  make(chan func(), 256),
		stopped: make(chan struct{}),
		ctx:     context.Background(),
		records: []models.Record{},
	}
	c.searchTask = schedule.NewTask(opts.SearchDebounce, c.post, c.reload)
	c.noticeTask = schedule.NewTask(opts.NoticeTTL, c.post, c.clearNotice)

	initial := c.snapshot()
	c.last.Store(&initial)
	return c
}

// Run loads the initial list and processes events until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.stopped)
	c.ctx = ctx
	c.logger.Info("controller: started")

	c.reload()
	for {
		select {
		case <-ctx.Done():
			c.searchTask.Cancel()
			c.noticeTask.Cancel()
			c.logger.Info("controller: stopped")
			return nil
		case fn := <-c.events:
			fn()
		}
	}
}

// Snapshot returns a copy of the most recently rendered state.
func (c *Controller) Snapshot() Snapshot {
	s := *c.last.Load()
	s.Records = slices.Clone(s.Records)
	return s
}

// Reload fetches the list with the current filters.
func (c *Controller) Reload() {
	c.post(c.reload)
}

// SetSearch updates the free-text filter. The reload is debounced.
func (c *Controller) SetSearch(text string) {
	c.post(func() {
		if text == c.filters.Search {
			return
		}
		c.filters.Search = text
		c.searchTask.Schedule()
	})
}

// SetPriority updates the priority filter and reloads immediately. An
// unchanged value is a no-op.
func (c *Controller) SetPriority(p models.Priority) {
	c.post(func() {
		if p == c.filters.Priority {
			return
		}
		c.filters.Priority = p
		c.searchTask.Cancel()
		c.reload()
	})
}

// SetStatus updates the status filter and reloads immediately. An
// unchanged value is a no-op.
func (c *Controller) SetStatus(s models.Status) {
	c.post(func() {
		if s == c.filters.Status {
			return
		}
		c.filters.Status = s
		c.searchTask.Cancel()
		c.reload()
	})
}

// ClearFilters resets every filter and reloads once.
func (c *Controller) ClearFilters() {
	c.post(func() {
		c.filters = models.Filters{}
		c.searchTask.Cancel()
		c.reload()
	})
}

// OpenCreate shows an empty form.
func (c *Controller) OpenCreate() {
	c.post(func() {
		if c.modal.Submitting {
			c.logger.Debug("controller: open ignored while submitting")
			return
		}
		c.modalSeq++
		c.modal = Modal{Mode: ModalCreate, Form: models.NewDraft()}
		c.render()
	})
}

// OpenEdit shows the form populated from the cached record id. Unknown ids
// are ignored.
func (c *Controller) OpenEdit(id int64) {
	c.post(func() {
		if c.modal.Submitting {
			c.logger.Debug("controller: open ignored while submitting")
			return
		}
		rec, ok := c.find(id)
		if !ok {
			c.logger.Warn("controller: edit target not cached", slog.Int64("id", id))
			c.setNotice(NoticeError, msgNotFound)
			c.render()
			return
		}
		c.modalSeq++
		c.modal = Modal{Mode: ModalEdit, EditID: id, Form: rec.Draft()}
		c.render()
	})
}

// CloseModal hides the form, resets it and clears the edit target.
func (c *Controller) CloseModal() {
	c.post(func() {
		if !c.modal.Open() {
			return
		}
		c.closeModal()
		c.render()
	})
}

// Submit validates form and creates or updates depending on the open mode.
// A submit while another is in flight is ignored.
func (c *Controller) Submit(form models.Draft) {
	c.post(func() {
		if !c.modal.Open() {
			return
		}
		if c.modal.Submitting {
			c.logger.Debug("controller: submit ignored while in flight")
			return
		}

		form = form.Normalize()
		c.modal.Form = form
		if err := form.Validate(); err != nil {
			c.logger.Info("controller: form rejected", slog.String("error", err.Error()))
			c.setNotice(NoticeError, validationMessage(err))
			c.render()
			return
		}

		seq := c.modalSeq
		mode := c.modal.Mode
		id := c.modal.EditID
		c.modal.Submitting = true
		c.render()

		ctx := c.ctx
		go func() {
			var err error
			if mode == ModalEdit {
				_, err = c.api.Update(ctx, id, form)
			} else {
				_, err = c.api.Create(ctx, form)
			}
			c.post(func() { c.submitDone(seq, mode, id, err) })
		}()
	})
}

// RequestDelete asks for confirmation before deleting the cached record id.
func (c *Controller) RequestDelete(id int64) {
	c.post(func() {
		rec, ok := c.find(id)
		if !ok {
			c.logger.Warn("controller: delete target not cached", slog.Int64("id", id))
			c.setNotice(NoticeError, msgNotFound)
			c.render()
			return
		}
		c.confirm = &rec
		c.render()
	})
}

// ResolveDelete answers the pending confirmation. Declining issues no
// request and leaves the cache untouched.
func (c *Controller) ResolveDelete(accept bool) {
	c.post(func() {
		if c.confirm == nil {
			return
		}
		id := c.confirm.ID
		c.confirm = nil
		if !accept {
			c.render()
			return
		}
		c.render()

		ctx := c.ctx
		go func() {
			err := c.api.Delete(ctx, id)
			c.post(func() { c.deleteDone(id, err) })
		}()
	})
}

// DismissNotice hides the current notice.
func (c *Controller) DismissNotice() {
	c.post(func() {
		c.noticeTask.Cancel()
		c.clearNotice()
	})
}

// post enqueues fn for the loop. After Run returns, events are dropped.
func (c *Controller) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.stopped:
	}
}

func (c *Controller) reload() {
	c.searchTask.Cancel()
	c.listIssued++
	seq := c.listIssued
	c.inflight++
	f := c.filters
	f.Search = strings.TrimSpace(f.Search)
	c.render()

	ctx := c.ctx
	go func() {
		recs, err := c.api.List(ctx, f)
		c.post(func() { c.listDone(seq, f, recs, err) })
	}()
}

func (c *Controller) listDone(seq uint64, f models.Filters, recs []models.Record, err error) {
	c.inflight--
	if seq <= c.listApplied {
		c.logger.Debug("controller: stale list response dropped",
			slog.Uint64("seq", seq),
			slog.Uint64("applied", c.listApplied))
		c.render()
		return
	}
	c.listApplied = seq

	if err != nil {
		c.logger.Error("controller: load failed", slog.String("error", err.Error()))
		c.setNotice(NoticeError, msgLoadFailed)
		c.render()
		return
	}

	c.records = recs
	c.loaded = true
	c.logger.Debug("controller: list applied",
		slog.Int("count", len(recs)),
		slog.String("search", f.Search),
		slog.String("priority", string(f.Priority)),
		slog.String("status", string(f.Status)))
	c.render()
}

func (c *Controller) submitDone(seq uint64, mode ModalMode, id int64, err error) {
	// The modal may have been closed or reopened while the request ran.
	current := c.modal.Open() && c.modalSeq == seq
	if current {
		c.modal.Submitting = false
	}

	if err != nil {
		c.logger.Error("controller: save failed",
			slog.String("mode", mode.String()),
			slog.Int64("id", id),
			slog.String("error", err.Error()))
		c.setNotice(NoticeError, msgSaveFailed)
		c.render()
		return
	}

	if mode == ModalEdit {
		c.setNotice(NoticeSuccess, msgUpdated)
	} else {
		c.setNotice(NoticeSuccess, msgCreated)
	}
	if current {
		c.closeModal()
	}
	c.reload()
}

func (c *Controller) deleteDone(id int64, err error) {
	if err != nil {
		c.logger.Error("controller: delete failed", slog.Int64("id", id), slog.String("error", err.Error()))
		c.setNotice(NoticeError, msgDeleteFailed)
		c.render()
		return
	}
	c.setNotice(NoticeSuccess, msgDeleted)
	c.reload()
}

func (c *Controller) closeModal() {
	c.modalSeq++
	c.modal = Modal{}
}

func (c *Controller) setNotice(kind NoticeKind, msg string) {
	c.noticeSeq++
	c.notice = &Notice{ID: c.noticeSeq, Kind: kind, Message: msg}
	c.noticeTask.Schedule()
}

func (c *Controller) clearNotice() {
	if c.notice == nil {
		return
	}
	c.notice = nil
	c.render()
}

func (c *Controller) find(id int64) (models.Record, bool) {
	for _, r := range c.records {
		if r.ID == id {
			return r, true
		}
	}
	return models.Record{}, false
}

func (c *Controller) render() {
	c.version++
	s := c.snapshot()
	c.last.Store(&s)
	c.view.Render(s)
}

func (c *Controller) snapshot() Snapshot {
	recs := make([]models.Record, len(c.records))
	copy(recs, c.records)

	s := Snapshot{
		Version: c.version,
		Records: recs,
		Stats:   models.ComputeStats(recs),
		Loaded:  c.loaded,
		Loading: c.inflight > 0,
		Filters: c.filters,
		Modal:   c.modal,
	}
	if c.confirm != nil {
		rec := *c.confirm
		s.ConfirmDelete = &rec
	}
	if c.notice != nil {
		n := *c.notice
		s.Notice = &n
	}
	return s
}

func validationMessage(err error) string {
	// ozzo messages read "steps: cannot be blank; title: cannot be blank."
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	return msgInvalidForm + " (" + strings.TrimSuffix(msg, ".") + ")."
}
