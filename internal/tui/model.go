package tui

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/casedeck/internal/controller"
	"github.com/starford/casedeck/internal/models"
)

// Controller is the set of controller operations the terminal can trigger.
type Controller interface {
	Snapshot() controller.Snapshot
	Reload()
	SetSearch(text string)
	SetPriority(p models.Priority)
	SetStatus(s models.Status)
	ClearFilters()
	OpenCreate()
	OpenEdit(id int64)
	CloseModal()
	Submit(form models.Draft)
	RequestDelete(id int64)
	ResolveDelete(accept bool)
	DismissNotice()
}

// Form field order for tab navigation.
const (
	fieldFeature = iota
	fieldTitle
	fieldSteps
	fieldExpected
	fieldPriority
	fieldStatus
	fieldCount
)

// Model is the bubbletea model. It holds no record state of its own beyond
// the last snapshot; every change goes through the controller.
type Model struct {
	ctrl Controller
	snap controller.Snapshot

	width, height int
	cursor        int
	searching     bool
	search        textinput.Model

	// Form widgets, loaded whenever a different modal opens.
	modalKey string
	focus    int
	feature  textinput.Model
	title    textinput.Model
	steps    textarea.Model
	expected textarea.Model
	priority int
	status   int
	// Enum values offered by the form, plus any unknown value the record had.
	prioChoices   []models.Priority
	statusChoices []models.Status
}

// NewModel creates a model showing initial.
func NewModel(ctrl Controller, initial controller.Snapshot) Model {
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "Search test cases..."
	search.SetValue(initial.Filters.Search)

	feature := textinput.New()
	feature.CharLimit = models.MaxFeatureNameLen
	title := textinput.New()
	title.CharLimit = models.MaxTitleLen

	steps := textarea.New()
	steps.CharLimit = 0
	steps.ShowLineNumbers = false
	steps.SetHeight(4)
	expected := textarea.New()
	expected.CharLimit = 0
	expected.ShowLineNumbers = false
	expected.SetHeight(3)

	m := Model{
		ctrl:     ctrl,
		search:   search,
		feature:  feature,
		title:    title,
		steps:    steps,
		expected: expected,
	}
	m.apply(initial)
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		w := max(msg.Width-8, 20)
		m.steps.SetWidth(w)
		m.expected.SetWidth(w)
		m.feature.Width = w
		m.title.Width = w
		return m, nil

	case snapshotMsg:
		cmd := m.apply(controller.Snapshot(msg))
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch {
		case m.snap.ConfirmDelete != nil:
			return m.updateConfirm(msg)
		case m.snap.Modal.Open():
			return m.updateForm(msg)
		case m.searching:
			return m.updateSearch(msg)
		default:
			return m.updateBrowse(msg)
		}
	}
	return m, nil
}

// apply adopts a new snapshot, loading the form when a different modal
// has opened.
func (m *Model) apply(s controller.Snapshot) tea.Cmd {
	m.snap = s
	m.cursor = min(m.cursor, max(len(s.Records)-1, 0))
	if !m.searching && m.search.Value() != s.Filters.Search {
		m.search.SetValue(s.Filters.Search)
	}

	key := ""
	if s.Modal.Open() {
		key = fmt.Sprintf("%s:%d", s.Modal.Mode, s.Modal.EditID)
	}
	if key == m.modalKey {
		return nil
	}
	m.modalKey = key
	if key == "" {
		m.blurForm()
		return nil
	}
	m.loadForm(s.Modal.Form)
	return m.focusField(fieldFeature)
}

func (m *Model) loadForm(d models.Draft) {
	m.feature.SetValue(d.FeatureName)
	m.feature.CursorEnd()
	m.title.SetValue(d.Title)
	m.title.CursorEnd()
	m.steps.SetValue(d.Steps)
	m.expected.SetValue(d.ExpectedResult)
	m.prioChoices = models.Choices(models.Priorities, d.Priority)
	m.statusChoices = models.Choices(models.Statuses, d.Status)
	m.priority = max(slices.Index(m.prioChoices, d.Priority), 0)
	m.status = max(slices.Index(m.statusChoices, d.Status), 0)
}

func (m *Model) draft() models.Draft {
	return models.Draft{
		FeatureName:    m.feature.Value(),
		Title:          m.title.Value(),
		Steps:          m.steps.Value(),
		ExpectedResult: m.expected.Value(),
		Priority:       m.prioChoices[m.priority],
		Status:         m.statusChoices[m.status],
	}
}

func (m *Model) blurForm() {
	m.feature.Blur()
	m.title.Blur()
	m.steps.Blur()
	m.expected.Blur()
}

func (m *Model) focusField(f int) tea.Cmd {
	m.blurForm()
	m.focus = f
	switch f {
	case fieldFeature:
		return m.feature.Focus()
	case fieldTitle:
		return m.title.Focus()
	case fieldSteps:
		return m.steps.Focus()
	case fieldExpected:
		return m.expected.Focus()
	}
	return nil
}

func (m Model) selected() (models.Record, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Records) {
		return models.Record{}, false
	}
	return m.snap.Records[m.cursor], true
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.snap.Records)-1 {
			m.cursor++
		}
	case "n":
		m.ctrl.OpenCreate()
	case "e", "enter":
		if rec, ok := m.selected(); ok {
			m.ctrl.OpenEdit(rec.ID)
		}
	case "d":
		if rec, ok := m.selected(); ok {
			m.ctrl.RequestDelete(rec.ID)
		}
	case "/":
		m.searching = true
		cmd := m.search.Focus()
		return m, cmd
	case "p":
		m.ctrl.SetPriority(cycle(models.Priorities, m.snap.Filters.Priority))
	case "s":
		m.ctrl.SetStatus(cycle(models.Statuses, m.snap.Filters.Status))
	case "c":
		m.ctrl.ClearFilters()
	case "r":
		m.ctrl.Reload()
	case "x":
		m.ctrl.DismissNotice()
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != before {
		m.ctrl.SetSearch(v)
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.ctrl.ResolveDelete(true)
	case "n", "N", "esc", "q":
		m.ctrl.ResolveDelete(false)
	}
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.ctrl.CloseModal()
		return m, nil
	case "ctrl+s":
		if !m.snap.Modal.Submitting {
			m.ctrl.Submit(m.draft())
		}
		return m, nil
	case "tab":
		cmd := m.focusField((m.focus + 1) % fieldCount)
		return m, cmd
	case "shift+tab":
		cmd := m.focusField((m.focus + fieldCount - 1) % fieldCount)
		return m, cmd
	}

	var cmd tea.Cmd
	switch m.focus {
	case fieldFeature:
		m.feature, cmd = m.feature.Update(msg)
	case fieldTitle:
		m.title, cmd = m.title.Update(msg)
	case fieldSteps:
		m.steps, cmd = m.steps.Update(msg)
	case fieldExpected:
		m.expected, cmd = m.expected.Update(msg)
	case fieldPriority:
		m.priority = step(msg.String(), m.priority, len(m.prioChoices))
	case fieldStatus:
		m.status = step(msg.String(), m.status, len(m.statusChoices))
	}
	return m, cmd
}

// cycle returns the filter value after cur: "" then each value in order,
// wrapping back to "".
func cycle[T ~string](values []T, cur T) T {
	i := slices.Index(values, cur)
	if i == len(values)-1 {
		return ""
	}
	return values[i+1]
}

func step(key string, i, n int) int {
	switch key {
	case "left", "h":
		return (i + n - 1) % n
	case "right", "l", " ":
		return (i + 1) % n
	}
	return i
}
