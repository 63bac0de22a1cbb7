package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type Phase int

const (
	PhaseStarting Phase = iota
	PhaseLoadingLeft
	PhaseLoadingRight
	PhaseComparing
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseLoadingLeft:
		return "loading left"
	case PhaseLoadingRight:
		return "loading right"
	case PhaseComparing:
		return "comparing"
	case PhaseComplete:
		return "complete"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// maxLogMessages bounds the log section of the view
const maxLogMessages = 10

type progressModel struct {
	phase          Phase
	currentStage   string
	currentSpinner spinner.Model
	messages       []string
	phaseStarted   map[Phase]time.Time
	phaseTook      map[Phase]time.Duration
	startTime      time.Time
	width          int
	done           bool
	canceled       bool
	err            error
	leftName       string
	rightName      string
}

type phaseMsg struct {
	phase   Phase
	message string
}

type messageMsg string

// doneMsg ends the program once the comparison returned
type doneMsg struct {
	err error
}

var (
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Margin(0, 2)

	stageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Margin(0, 2)

	tableHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFAA00")).
				Bold(true).
				Margin(0, 2)

	progressInfoStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#888888")).
				Margin(0, 2)
)

func newProgressModel(leftName, rightName string) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	now := time.Now()
	return progressModel{
		phase:          PhaseStarting,
		currentStage:   "Initializing...",
		currentSpinner: s,
		messages:       make([]string, 0),
		phaseStarted:   map[Phase]time.Time{PhaseStarting: now},
		phaseTook:      make(map[Phase]time.Duration),
		startTime:      now,
		leftName:       leftName,
		rightName:      rightName,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.currentSpinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.currentSpinner, cmd = m.currentSpinner.Update(msg)
		return m, cmd
	case phaseMsg:
		return m.handlePhaseMsg(msg), nil
	case messageMsg:
		return m.handleMessageMsg(msg), nil
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" || msg.String() == "q" {
		m.canceled = true
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) handlePhaseMsg(msg phaseMsg) progressModel {
	now := time.Now()
	if started, ok := m.phaseStarted[m.phase]; ok && msg.phase != m.phase {
		m.phaseTook[m.phase] = now.Sub(started)
	}
	m.phase = msg.phase
	m.currentStage = msg.message
	if _, ok := m.phaseStarted[msg.phase]; !ok {
		m.phaseStarted[msg.phase] = now
	}
	return m
}

func (m progressModel) handleMessageMsg(msg messageMsg) progressModel {
	m.messages = append(m.messages, string(msg))
	if len(m.messages) > maxLogMessages {
		m.messages = m.messages[len(m.messages)-maxLogMessages:]
	}
	return m
}

// renderPhases lists the pipeline steps with their state
func (m progressModel) renderPhases() []string {
	steps := []struct {
		phase Phase
		label string
	}{
		{PhaseLoadingLeft, "Load left: " + m.leftName},
		{PhaseLoadingRight, "Load right: " + m.rightName},
		{PhaseComparing, "Compare"},
	}

	sections := []string{tableHeaderStyle.Render("   Steps"), ""}
	for _, step := range steps {
		var line string
		switch {
		case m.phase > step.phase:
			line = fmt.Sprintf("   ✅ %s (%s)", step.label, m.phaseTook[step.phase].Round(time.Millisecond))
		case m.phase == step.phase:
			line = stageStyle.Render(fmt.Sprintf("   %s %s", m.currentSpinner.View(), step.label))
		default:
			line = progressInfoStyle.Render("   ⏸  " + step.label)
		}
		sections = append(sections, line)
	}
	return sections
}

// renderMessages renders the message log section
func (m progressModel) renderMessages() []string {
	sections := []string{helpStyle.Render("   Log:")}
	if len(m.messages) == 0 {
		return append(sections, "     (waiting for operations...)")
	}
	for _, msg := range m.messages {
		sections = append(sections, "     "+msg)
	}
	return sections
}

// renderSeparator renders a horizontal separator
func (m progressModel) renderSeparator() []string {
	separatorWidth := 80
	if m.width > 0 && m.width < 200 {
		separatorWidth = m.width - 6
	}
	separator := "   " + strings.Repeat("─", separatorWidth)
	return []string{"", lipgloss.NewStyle().Foreground(lipgloss.Color("#444")).Render(separator), ""}
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}

	var sections []string
	sections = append(sections, "", titleStyle.Render(fmt.Sprintf("   🔍 Data Comparer v%s", Version)), "")
	sections = append(sections, m.renderPhases()...)
	sections = append(sections, m.renderSeparator()...)
	if m.currentStage != "" {
		sections = append(sections, stageStyle.Render("   "+m.currentStage))
	}
	sections = append(sections, progressInfoStyle.Render(fmt.Sprintf("   Elapsed: %s", time.Since(m.startTime).Round(time.Second))))
	sections = append(sections, "")
	sections = append(sections, m.renderMessages()...)

	// Help text
	sections = append(sections, "")
	sections = append(sections, helpStyle.Render("   Press Ctrl+C or 'q' to quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
