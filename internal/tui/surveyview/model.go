// Package surveyview is a terminal front end for the survey flow engine.
package surveyview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/clearpath/prevention/internal/domain/survey"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	noteStyle     = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("241"))
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	questionStyle = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	optionStyle   = lipgloss.NewStyle().PaddingLeft(2)
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)

	tierStyles = map[survey.RiskTier]lipgloss.Style{
		survey.RiskLow:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575")),
		survey.RiskMedium: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E5C07B")),
		survey.RiskHigh:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E06C75")),
	}
)

// FinishedMsg is emitted once when the flow terminates. The model quits on
// it when built with ExitOnFinish.
type FinishedMsg struct {
	State  survey.State
	Result survey.Result
}

// Model drives one survey flow from the keyboard.
type Model struct {
	survey   *survey.Survey
	flow     *survey.Flow
	cursor   int
	keys     keyMap
	help     help.Model
	width    int
	quitting bool

	exitOnFinish bool
}

func New(s *survey.Survey, skips survey.SkipTable) Model {
	return Model{
		survey: s,
		flow:   survey.NewFlow(s, skips),
		keys:   defaultKeyMap(),
		help:   help.New(),
	}
}

// ExitOnFinish makes the program stop as soon as a result is reached.
func (m Model) ExitOnFinish() Model {
	m.exitOnFinish = true
	return m
}

func (m Model) Init() tea.Cmd { return nil }

// Result returns the outcome once the flow has terminated.
func (m Model) Result() (survey.Result, bool) {
	res, err := m.flow.ComputeResult()
	return res, err == nil
}

func (m Model) State() survey.State { return m.flow.State() }

// Quitting reports whether the user asked to leave.
func (m Model) Quitting() bool { return m.quitting }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case FinishedMsg:
		if m.exitOnFinish {
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Restart):
			if m.flow.Terminated() {
				m.flow.Restart()
				m.cursor = 0
			}
			return m, nil
		case key.Matches(msg, m.keys.Back):
			if m.flow.GoBack() {
				m.cursor = m.restoredCursor()
			}
			return m, nil
		}

		q := m.flow.CurrentQuestion()
		if q == nil {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(q.Options)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Choose):
			return m.choose(m.cursor)
		default:
			// 1-9 picks an option directly
			if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
				if idx := int(s[0] - '1'); idx < len(q.Options) {
					return m.choose(idx)
				}
			}
		}
	}
	return m, nil
}

func (m Model) choose(idx int) (tea.Model, tea.Cmd) {
	m.flow.SelectOption(idx)
	if !m.flow.Advance() {
		return m, nil
	}
	m.cursor = m.restoredCursor()
	if res, err := m.flow.ComputeResult(); err == nil {
		st := m.flow.State()
		return m, func() tea.Msg { return FinishedMsg{State: st, Result: res} }
	}
	return m, nil
}

func (m Model) restoredCursor() int {
	if sel := m.flow.State().Selected; sel != nil {
		return *sel
	}
	return 0
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.survey.Title))
	b.WriteString("\n")

	if res, ok := m.Result(); ok {
		b.WriteString("\n")
		b.WriteString(m.resultView(res))
	} else {
		b.WriteString(m.questionView())
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m Model) questionView() string {
	q := m.flow.CurrentQuestion()
	st := m.flow.State()
	var b strings.Builder

	if st.Current == 0 && m.survey.Note != "" {
		b.WriteString(m.wrap(noteStyle).Render(m.survey.Note))
		b.WriteString("\n")
	}
	b.WriteString(progressStyle.Render(fmt.Sprintf("Question %d of %d", st.Current+1, len(m.survey.Questions))))
	b.WriteString("\n\n")
	b.WriteString(m.wrap(questionStyle).Render(q.Text))
	b.WriteString("\n")
	for i, o := range q.Options {
		line := fmt.Sprintf("%d. %s", i+1, o.Text)
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> " + line))
		} else {
			b.WriteString(optionStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) resultView(res survey.Result) string {
	tier, ok := tierStyles[res.RiskTier]
	if !ok {
		tier = lipgloss.NewStyle().Bold(true)
	}
	body := fmt.Sprintf("Score: %d / %d\nRisk:  %s\n\n%s",
		res.Score, res.MaxPossibleScore, tier.Render(string(res.RiskTier)), advice(res.RiskTier))
	return boxStyle.Render(body) + "\n"
}

func (m Model) wrap(s lipgloss.Style) lipgloss.Style {
	if m.width > 4 {
		return s.Width(m.width - 2)
	}
	return s
}

func advice(t survey.RiskTier) string {
	switch t {
	case survey.RiskHigh:
		return "Consider booking a session with a consultant."
	case survey.RiskMedium:
		return "A short talk with a consultant may help."
	default:
		return "No further action suggested."
	}
}
