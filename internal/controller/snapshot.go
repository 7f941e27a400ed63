package controller

import (
	"github.com/starford/casedeck/internal/models"
)

// ModalMode is the state of the create/edit form.
type ModalMode int

const (
	ModalClosed ModalMode = iota
	ModalCreate
	ModalEdit
)

func (m ModalMode) String() string {
	switch m {
	case ModalCreate:
		return "create"
	case ModalEdit:
		return "edit"
	default:
		return "closed"
	}
}

// Modal describes the form dialog. EditID is set only in ModalEdit.
type Modal struct {
	Mode       ModalMode
	EditID     int64
	Form       models.Draft
	Submitting bool
}

// Open reports whether the dialog is shown.
func (m Modal) Open() bool {
	return m.Mode != ModalClosed
}

// Title is the dialog heading.
func (m Modal) Title() string {
	if m.Mode == ModalEdit {
		return "Edit Test Case"
	}
	return "Create Test Case"
}

// SubmitLabel is the submit button text, reflecting an in-flight request.
func (m Modal) SubmitLabel() string {
	switch {
	case m.Mode == ModalEdit && m.Submitting:
		return "Updating..."
	case m.Mode == ModalEdit:
		return "Update Test Case"
	case m.Submitting:
		return "Creating..."
	default:
		return "Create Test Case"
	}
}

// NoticeKind classifies a user-visible notification.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient message shown to the user.
type Notice struct {
	ID      uint64
	Kind    NoticeKind
	Message string
}

// Snapshot is an immutable copy of the controller state handed to views.
type Snapshot struct {
	Version uint64

	Records []models.Record
	Stats   models.Stats
	// Loaded is false until the first list response has been applied.
	Loaded  bool
	Loading bool
	Filters models.Filters

	Modal Modal
	// ConfirmDelete is the record awaiting delete confirmation, if any.
	ConfirmDelete *models.Record
	Notice        *Notice
}

// Empty reports whether the grid has nothing to show.
func (s Snapshot) Empty() bool {
	return len(s.Records) == 0
}

// Record looks up a cached record by id.
func (s Snapshot) Record(id int64) (models.Record, bool) {
	for _, r := range s.Records {
		if r.ID == id {
			return r, true
		}
	}
	return models.Record{}, false
}

// View receives every new snapshot. Render is called on the controller's
// loop goroutine and must not block.
type View interface {
	Render(Snapshot)
}

// ViewFunc adapts a function to View.
type ViewFunc func(Snapshot)

// Render implements View.
func (f ViewFunc) Render(s Snapshot) { f(s) }
