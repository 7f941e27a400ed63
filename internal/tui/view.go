package tui

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/starford/casedeck/internal/controller"
	"github.com/starford/casedeck/internal/models"
)

// clean makes record text inert in a terminal: escape sequences are
// stripped and any remaining control characters other than newline and
// tab are dropped.
func clean(s string) string {
	s = ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// oneLine is clean plus newline folding, for list rows.
func oneLine(s string, width int) string {
	s = strings.Join(strings.Fields(clean(s)), " ")
	if width > 0 {
		s = ansi.Truncate(s, width, "…")
	}
	return s
}

func badge(styles map[string]lipgloss.Style, v string) string {
	v = clean(v)
	st, ok := styles[strings.ToLower(v)]
	if !ok {
		st = mutedStyle
	}
	return st.Render("[" + v + "]")
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Test Case Manager"))
	b.WriteString("\n")
	b.WriteString(m.viewStats())
	b.WriteString("\n")
	b.WriteString(m.viewFilters())
	b.WriteString("\n\n")

	switch {
	case m.snap.ConfirmDelete != nil:
		b.WriteString(m.viewConfirm(*m.snap.ConfirmDelete))
	case m.snap.Modal.Open():
		b.WriteString(m.viewForm())
	default:
		b.WriteString(m.viewList())
	}

	if n := m.snap.Notice; n != nil {
		b.WriteString("\n")
		msg := clean(n.Message)
		if n.Kind == controller.NoticeError {
			b.WriteString(errorStyle.Render("✗ " + msg))
		} else {
			b.WriteString(successStyle.Render("✓ " + msg))
		}
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(m.help()))
	return b.String()
}

func (m Model) viewStats() string {
	s := m.snap.Stats
	line := fmt.Sprintf("Total %d   Draft %d   Ready %d   Automated %d", s.Total, s.Draft, s.Ready, s.Automated)
	if m.snap.Loading {
		line += "   " + mutedStyle.Render("loading...")
	}
	return line
}

func (m Model) viewFilters() string {
	f := m.snap.Filters
	prio, status := "All", "All"
	if f.Priority != "" {
		prio = clean(string(f.Priority))
	}
	if f.Status != "" {
		status = clean(string(f.Status))
	}
	search := m.search.View()
	if !m.searching && f.Search == "" {
		search = mutedStyle.Render("/ search")
	}
	return fmt.Sprintf("%s   %s %s   %s %s", search, labelStyle.Render("Priority:"), prio, labelStyle.Render("Status:"), status)
}

func (m Model) viewList() string {
	if m.snap.Empty() {
		if !m.snap.Loaded {
			return mutedStyle.Render("Loading test cases...")
		}
		return mutedStyle.Render("No test cases found. Press n to create one.")
	}

	width := m.width
	if width <= 0 {
		width = 100
	}

	var b strings.Builder
	for i, r := range m.snap.Records {
		row := fmt.Sprintf("%-7s %s %s %s  %s",
			r.Label(),
			badge(priorityStyles, string(r.Priority)),
			badge(statusStyles, string(r.Status)),
			mutedStyle.Render(oneLine(r.FeatureName, 24)),
			oneLine(r.Title, max(width-50, 20)))
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("› ") + row)
		} else {
			b.WriteString("  " + row)
		}
		b.WriteString("\n")
	}

	if rec, ok := m.selected(); ok {
		b.WriteString("\n")
		b.WriteString(m.viewDetail(rec))
	}
	return b.String()
}

func (m Model) viewDetail(r models.Record) string {
	lines := []string{
		labelStyle.Render(r.Label()) + "  " + clean(r.Title),
		mutedStyle.Render("Feature: ") + clean(r.FeatureName),
		mutedStyle.Render("Created: ") + r.CreatedAt.DisplayDate(),
		"",
		labelStyle.Render("Test Steps"),
		clean(r.Steps),
		"",
		labelStyle.Render("Expected Result"),
		clean(r.ExpectedResult),
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) viewForm() string {
	md := m.snap.Modal
	field := func(i int, label, view string) string {
		l := labelStyle.Render(label)
		if m.focus == i {
			l = selectedStyle.Render("› " + label)
		}
		return l + "\n" + view
	}
	choice := func(values []string, cur int) string {
		parts := make([]string, len(values))
		for i, v := range values {
			if i == cur {
				parts[i] = selectedStyle.Render("(" + v + ")")
			} else {
				parts[i] = " " + v + " "
			}
		}
		return strings.Join(parts, " ")
	}

	prios := make([]string, len(m.prioChoices))
	for i, p := range m.prioChoices {
		prios[i] = clean(string(p))
	}
	statuses := make([]string, len(m.statusChoices))
	for i, s := range m.statusChoices {
		statuses[i] = clean(string(s))
	}

	submit := "ctrl+s: " + md.SubmitLabel()
	if md.Submitting {
		submit = mutedStyle.Render(md.SubmitLabel())
	}

	body := strings.Join([]string{
		headerStyle.Render(md.Title()),
		"",
		field(fieldFeature, "Feature Name *", m.feature.View()),
		field(fieldTitle, "Title *", m.title.View()),
		field(fieldSteps, "Test Steps *", m.steps.View()),
		field(fieldExpected, "Expected Result *", m.expected.View()),
		field(fieldPriority, "Priority", choice(prios, m.priority)),
		field(fieldStatus, "Status", choice(statuses, m.status)),
		"",
		submit,
	}, "\n")
	return boxStyle.Render(body)
}

func (m Model) viewConfirm(r models.Record) string {
	body := strings.Join([]string{
		errorStyle.Render("Delete test case?"),
		"",
		labelStyle.Render(r.Label()) + "  " + oneLine(r.Title, 60),
		"",
		"Are you sure you want to delete this test case? This action cannot be undone.",
		"",
		"y: delete   n/esc: cancel",
	}, "\n")
	return dangerBox.Render(body)
}

func (m Model) help() string {
	switch {
	case m.snap.ConfirmDelete != nil:
		return "y: confirm  n: cancel"
	case m.snap.Modal.Open():
		return "tab/shift+tab: field  ←/→: choose  ctrl+s: save  esc: cancel"
	case m.searching:
		return "type to search  enter/esc: done"
	default:
		return "↑/↓: move  n: new  e: edit  d: delete  /: search  p: priority  s: status  c: clear  r: reload  x: dismiss  q: quit"
	}
}
