package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hupe1980/patientsim"
	"github.com/hupe1980/patientsim/core"
	"github.com/hupe1980/patientsim/simulation"
)

type phase int

const (
	phaseIntakeName phase = iota
	phaseIntakeEmail
	phaseDialogue
	phaseDone
)

type chatMessage struct {
	role    string // "student", "patient", "system", "error", "report"
	content string
	stamp   time.Time
}

type intakeDoneMsg struct {
	sess *core.Session
	err  error
}

type turnDoneMsg struct {
	result *simulation.TurnResult
	err    error
}

type debriefDoneMsg struct {
	report *simulation.DebriefReport
	err    error
}

type theme struct {
	header   lipgloss.Style
	footer   lipgloss.Style
	student  lipgloss.Style
	patient  lipgloss.Style
	system   lipgloss.Style
	errLabel lipgloss.Style
	report   lipgloss.Style
	meta     lipgloss.Style
	body     lipgloss.Style
	inputBox lipgloss.Style
}

func newTheme() theme {
	return theme{
		header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7DD3FC")),
		footer:   lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		student:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#34D399")),
		patient:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F472B6")),
		system:   lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF")),
		errLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F87171")),
		report:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBF24")),
		meta:     lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		body:     lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB")),
		inputBox: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#374151")).Padding(0, 1),
	}
}

type model struct {
	svc *patientsim.Service

	phase     phase
	sessionID string
	name      string

	messages []chatMessage
	input    textarea.Model
	chat     viewport.Model
	spin     spinner.Model
	theme    theme

	width  int
	height int
	ready  bool

	busy         bool
	windowSize   int
	debriefReady bool
}

func newModel(svc *patientsim.Service) *model {
	ta := textarea.New()
	ta.Placeholder = "Your name"
	ta.Focus()
	ta.CharLimit = 4000
	ta.SetHeight(1)
	ta.Prompt = "▍ "
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#F472B6"))),
	)

	m := &model{
		svc:   svc,
		phase: phaseIntakeName,
		input: ta,
		spin:  sp,
		theme: newTheme(),
	}

	scen := svc.Simulation().Scenario()
	m.append(chatMessage{
		role: "system",
		content: fmt.Sprintf("Welcome to the %s case. You will talk to %s.\n\nFirst, what is your name?",
			scen.Name, scen.PatientName),
		stamp: time.Now(),
	})

	return m
}

func (m *model) Init() tea.Cmd {
	return textarea.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatH := m.height - 5
		if chatH < 3 {
			chatH = 3
		}
		if !m.ready {
			m.chat = viewport.New(m.width, chatH)
			m.ready = true
		} else {
			m.chat.Width = m.width
			m.chat.Height = chatH
		}
		m.input.SetWidth(maxInt(10, m.width-6))
		m.refreshChat()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.onEnter()
		case tea.KeyPgUp:
			m.chat.ViewUp()
			return m, nil
		case tea.KeyPgDown:
			m.chat.ViewDown()
			return m, nil
		}

		if m.phase == phaseDone {
			if msg.String() == "q" {
				return m, tea.Quit
			}
			return m, nil
		}

	case intakeDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.append(chatMessage{role: "error", content: fmt.Sprintf("intake failed: %v", msg.err), stamp: time.Now()})
			m.phase = phaseIntakeEmail
			m.input.Placeholder = "Your email"
			return m, nil
		}

		m.phase = phaseDialogue
		m.sessionID = msg.sess.ID
		m.input.Placeholder = "Say something to the patient"

		scen := m.svc.Simulation().Scenario()
		m.append(chatMessage{role: "system", content: "Case briefing:\n\n" + scen.Briefing, stamp: time.Now()})
		m.append(chatMessage{
			role:    "system",
			content: fmt.Sprintf("The call is connected. Greet %s to begin.", scen.PatientName),
			stamp:   time.Now(),
		})
		return m, nil

	case turnDoneMsg:
		m.busy = false
		wasReady := m.debriefReady
		if msg.result != nil {
			m.windowSize = msg.result.WindowSize
			m.debriefReady = msg.result.DebriefReady
			m.append(chatMessage{role: "patient", content: msg.result.AgentTurn.Content, stamp: msg.result.AgentTurn.Timestamp})
		}
		if msg.err != nil {
			if msg.result != nil {
				m.append(chatMessage{role: "error", content: fmt.Sprintf("the exchange could not be written to the transcript store: %v", msg.err), stamp: time.Now()})
			} else {
				m.append(chatMessage{role: "error", content: fmt.Sprintf("%v", msg.err), stamp: time.Now()})
				m.append(chatMessage{role: "system", content: "Your message was not delivered. You can send it again.", stamp: time.Now()})
			}
			return m, nil
		}
		if m.debriefReady && !wasReady {
			m.append(chatMessage{role: "system", content: "The conversation is long enough for an evaluation. Type /debrief when you are ready.", stamp: time.Now()})
		}
		return m, nil

	case debriefDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.append(chatMessage{role: "error", content: fmt.Sprintf("debrief failed: %v", msg.err), stamp: time.Now()})
			m.append(chatMessage{role: "system", content: "You can type /debrief to try again.", stamp: time.Now()})
			return m, nil
		}

		m.phase = phaseDone
		content := msg.report.Content
		if msg.report.SurveyURL != "" {
			content += "\n\nPlease fill in the course survey: " + msg.report.SurveyURL
		}
		m.append(chatMessage{role: "report", content: content, stamp: msg.report.GeneratedAt})
		m.append(chatMessage{role: "system", content: "Session complete. Press q to leave.", stamp: time.Now()})
		m.input.Blur()
		m.input.Placeholder = ""
		return m, nil

	case spinner.TickMsg:
		if m.busy {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.chat, cmd = m.chat.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *model) onEnter() tea.Cmd {
	if m.busy || m.phase == phaseDone {
		return nil
	}

	val := strings.TrimSpace(m.input.Value())
	if val == "" {
		return nil
	}
	m.input.Reset()

	switch m.phase {
	case phaseIntakeName:
		m.name = val
		m.phase = phaseIntakeEmail
		m.input.Placeholder = "Your email"
		m.append(chatMessage{role: "student", content: val, stamp: time.Now()})
		m.append(chatMessage{role: "system", content: "And your email address?", stamp: time.Now()})
		return nil

	case phaseIntakeEmail:
		m.append(chatMessage{role: "student", content: val, stamp: time.Now()})
		m.busy = true
		return tea.Batch(m.doIntake(m.name, val), m.spin.Tick)

	case phaseDialogue:
		if val == "/debrief" {
			m.append(chatMessage{role: "system", content: "Requesting your evaluation…", stamp: time.Now()})
			m.busy = true
			return tea.Batch(m.doDebrief(), m.spin.Tick)
		}

		m.append(chatMessage{role: "student", content: val, stamp: time.Now()})
		m.busy = true
		return tea.Batch(m.doTurn(val), m.spin.Tick)
	}

	return nil
}

func (m *model) doIntake(name, email string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		sess, err := svc.Intake(context.Background(), simulation.IntakeRequest{Name: name, Email: email})
		return intakeDoneMsg{sess: sess, err: err}
	}
}

func (m *model) doTurn(text string) tea.Cmd {
	svc, id := m.svc, m.sessionID
	return func() tea.Msg {
		result, err := svc.SubmitTurn(context.Background(), id, text)
		return turnDoneMsg{result: result, err: err}
	}
}

func (m *model) doDebrief() tea.Cmd {
	svc, id := m.svc, m.sessionID
	return func() tea.Msg {
		report, err := svc.Debrief(context.Background(), id)
		return debriefDoneMsg{report: report, err: err}
	}
}

func (m *model) append(msg chatMessage) {
	m.messages = append(m.messages, msg)
	m.refreshChat()
	m.chat.GotoBottom()
}

func (m *model) refreshChat() {
	if !m.ready {
		return
	}

	width := m.chat.Width - 2
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderMessage(msg, width))
	}
	m.chat.SetContent(b.String())
}

func (m *model) renderMessage(msg chatMessage, width int) string {
	scen := m.svc.Simulation().Scenario()

	var label string
	var style lipgloss.Style
	switch msg.role {
	case "student":
		label, style = m.displayName(), m.theme.student
	case "patient":
		label, style = scen.PatientName, m.theme.patient
	case "error":
		label, style = "ERROR", m.theme.errLabel
	case "report":
		label, style = "DEBRIEF", m.theme.report
	default:
		label, style = "", m.theme.system
	}

	body := m.theme.body
	if msg.role == "system" {
		body = m.theme.system
	}

	text := body.Width(width).Render(msg.content)
	if label == "" {
		return text
	}

	header := style.Render(label) + " " + m.theme.meta.Render(msg.stamp.Format("15:04"))
	return header + "\n" + text
}

func (m *model) displayName() string {
	if m.name != "" {
		return m.name
	}
	return "You"
}

func (m *model) View() string {
	if !m.ready {
		return "starting…"
	}

	scen := m.svc.Simulation().Scenario()

	status := fmt.Sprintf("turns: %d", m.windowSize)
	if m.busy {
		status = m.spin.View() + scen.PatientName + " is thinking"
	} else if m.debriefReady && m.phase == phaseDialogue {
		status = fmt.Sprintf("turns: %d · debrief ready", m.windowSize)
	}

	title := m.theme.header.Render("patientsim") + " " + m.theme.meta.Render(scen.Name)
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(status)
	if gap < 2 {
		gap = 2
	}
	header := title + strings.Repeat(" ", gap) + m.theme.meta.Render(status)

	hints := "Enter send  /debrief evaluate  PgUp/PgDn scroll  Ctrl+C quit"
	if m.phase == phaseDone {
		hints = "q quit"
	}
	footer := m.theme.footer.Width(m.width).Render(hints)

	inputBox := m.theme.inputBox.Width(maxInt(10, m.width-2)).Render(m.input.View())

	return lipgloss.JoinVertical(lipgloss.Left, header, m.chat.View(), inputBox, footer)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
