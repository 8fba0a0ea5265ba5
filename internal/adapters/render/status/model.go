package status

import (
	"errors"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

// cacheAge is how old a projection-backed view is at render time.
type cacheAge struct {
	known      bool
	age        time.Duration
	staleAfter time.Duration
}

func (a cacheAge) stale() bool {
	return a.staleAfter > 0 && a.age > a.staleAfter
}

func ageOf(view View, opts RenderOptions) cacheAge {
	if view.CapturedAt.IsZero() || opts.Now.IsZero() {
		return cacheAge{}
	}

	age := opts.Now.Sub(view.CapturedAt)
	if age < 0 {
		age = 0
	}
	return cacheAge{known: true, age: age, staleAfter: opts.StaleAfter}
}

type headerMsg struct {
	age cacheAge
}

type sectionMsg struct {
	section Section
}

// model builds the output one block at a time: the account header first,
// then each requested section in display order. Sections are skipped when
// the view is not authenticated.
type model struct {
	view    View
	opts    RenderOptions
	styles  styles
	pending []Section
	blocks  []string
}

func newModel(view View, opts RenderOptions) model {
	return model{
		view:    view,
		opts:    opts,
		styles:  newStyles(),
		pending: orderedSections(opts.Sections),
	}
}

func orderedSections(selected Section) []Section {
	if selected == 0 {
		selected = SectionAll
	}

	var sections []Section
	for _, section := range []Section{SectionConnection, SectionLocations, SectionPlans} {
		if selected&section != 0 {
			sections = append(sections, section)
		}
	}
	return sections
}

func (m model) Init() tea.Cmd {
	view, opts := m.view, m.opts
	return func() tea.Msg {
		return headerMsg{age: ageOf(view, opts)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case headerMsg:
		m.blocks = headerBlocks(m.view, msg.age, m.styles)
		if !m.view.authenticated() {
			m.pending = nil
		}
		return m.next()
	case sectionMsg:
		m.blocks = append(m.blocks, m.styles.section.Render(renderSection(m.view, msg.section, m.styles)))
		return m.next()
	default:
		return m, nil
	}
}

func (m model) next() (tea.Model, tea.Cmd) {
	if len(m.pending) == 0 {
		return m, tea.Quit
	}

	section := m.pending[0]
	m.pending = m.pending[1:]
	return m, func() tea.Msg {
		return sectionMsg{section: section}
	}
}

func (m model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left, m.blocks...)
}

// Render lays out the view once through a headless bubbletea program.
func Render(view View, opts RenderOptions) (string, error) {
	p := tea.NewProgram(
		newModel(view, opts),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(model)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}
