package picker

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"omniagent/internal/prompt"
)

var (
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	titleStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("230")).
			Padding(0, 1).
			Bold(true)

	docStyle = lipgloss.NewStyle().Padding(1, 2)

	windowStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1)
)

type state int

const (
	stateList state = iota
	stateManual
	stateDone
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title }

// Model is the bubbletea query menu. Entry 0 switches to manual input.
type Model struct {
	state    state
	query    string
	header   string
	list     list.Model
	input    textinput.Model
	quitting bool
	width    int
	height   int
}

// NewModel builds the menu; header is shown under the title (provider, model).
func NewModel(header string) Model {
	items := []list.Item{item{title: "Type your own query manually", desc: "free text"}}
	for i, q := range prompt.Examples {
		items = append(items, item{title: q, desc: fmt.Sprintf("example %d", i+1)})
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Select a Query or Type Your Own"
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	ti := textinput.New()
	ti.Placeholder = "e.g. 12 * 4 - 7"
	ti.Prompt = "Query: "

	return Model{state: stateList, header: header, list: l, input: ti}
}

// Query is the selected query, empty when the user quit.
func (m Model) Query() string { return m.query }

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "q":
			if m.state == stateList {
				m.quitting = true
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width-10, msg.Height-12)
	}

	var cmd tea.Cmd

	switch m.state {
	case stateList:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
			idx := m.list.Index()
			if idx == 0 {
				m.state = stateManual
				return m, m.input.Focus()
			}
			if q, ok := prompt.Example(idx); ok {
				m.query = q
				m.state = stateDone
				return m, tea.Quit
			}
			return m, nil
		}
		m.list, cmd = m.list.Update(msg)

	case stateManual:
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.input.Blur()
				m.input.SetValue("")
				m.state = stateList
				return m, nil
			case "enter":
				q := strings.TrimSpace(m.input.Value())
				if q == "" {
					return m, nil
				}
				m.query = q
				m.state = stateDone
				return m, tea.Quit
			}
		}
		m.input, cmd = m.input.Update(msg)
	}

	return m, cmd
}

func (m Model) View() string {
	if m.quitting || m.state == stateDone {
		return ""
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render(" OmniAgent "))
	if m.header != "" {
		s.WriteString("  " + helpStyle.Render(m.header))
	}
	s.WriteString("\n\n")

	var content, help string
	switch m.state {
	case stateList:
		content = m.list.View()
		help = "q/ctrl+c: quit • ↑/↓: navigate • enter: select"
	case stateManual:
		content = "\n" + m.input.View() + "\n"
		help = "enter: run • esc: back • ctrl+c: quit"
	}

	if m.width > 0 {
		s.WriteString(windowStyle.Width(m.width - 10).Render(content))
	} else {
		s.WriteString(windowStyle.Render(content))
	}
	s.WriteString("\n\n" + helpStyle.Render(help))

	return docStyle.Render(s.String())
}

// Run shows the menu on the alternate screen and returns the chosen query,
// or ErrQuit when the user left without choosing.
func Run(header string) (string, error) {
	p := tea.NewProgram(NewModel(header), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return "", err
	}
	m, ok := final.(Model)
	if !ok || m.query == "" {
		return "", ErrQuit
	}
	return m.query, nil
}
