package ui

import (
	"context"

	"agentchat/internal/logger"
	"agentchat/internal/store"
	"agentchat/internal/styles"
	"agentchat/internal/voice"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// New builds the chat screen. ctx bounds every backend call the screen starts.
func New(ctx context.Context, deps Deps) *Model {
	ti := textarea.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = "❯ "
	ti.ShowLineNumbers = false
	ti.CharLimit = 0
	ti.MaxHeight = 6
	ti.SetHeight(2)
	ti.SetWidth(80)
	prompt := lipgloss.NewStyle().Foreground(styles.CurrentTheme.Primary).Bold(true)
	placeholder := lipgloss.NewStyle().Foreground(styles.CurrentTheme.TextMuted)
	ti.FocusedStyle.Prompt = prompt
	ti.BlurredStyle.Prompt = prompt
	ti.FocusedStyle.Placeholder = placeholder
	ti.BlurredStyle.Placeholder = placeholder
	ti.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ti.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ti.KeyMap.InsertNewline.SetEnabled(false)
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.CurrentTheme.Primary)

	m := &Model{
		deps:      deps,
		ctx:       ctx,
		log:       logger.OrNop(deps.Log).Named("ui"),
		TextInput: ti,
		Viewport:  viewport.New(60, 15),
		Spinner:   sp,
		rendered:  make(map[string]string),
		follow:    true,
	}
	if deps.Store != nil {
		m.state = deps.Store.State()
	}
	m.form = newAgentForm()
	m.knowledge.path = newPathInput()
	return m
}

func newAgentForm() agentForm {
	name := textinput.New()
	name.Placeholder = "Agent name"
	name.CharLimit = 100

	desc := textinput.New()
	desc.Placeholder = "Describe the agent, then ctrl+r to write a prompt"

	prompt := textarea.New()
	prompt.Placeholder = "System prompt"
	prompt.ShowLineNumbers = false
	prompt.CharLimit = 0
	prompt.SetHeight(6)
	prompt.FocusedStyle.CursorLine = lipgloss.NewStyle()

	return agentForm{name: name, description: desc, prompt: prompt}
}

func newPathInput() textinput.Model {
	in := textinput.New()
	in.Placeholder = "Path to a .pdf, .txt or .md file"
	return in
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.TextInput.Cursor.BlinkCmd(),
		m.Spinner.Tick,
		m.healthCmd(),
		m.navigateCmd(m.deps.Start),
	)
}

// NewProgram wires store and playback notifications into a program running m.
// The returned function detaches them.
func NewProgram(m *Model, opts ...tea.ProgramOption) (*tea.Program, func()) {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	p := tea.NewProgram(m, opts...)
	m.Program = p

	states := newLatest[store.State]()
	playback := newLatest[voice.PlayerState]()
	go states.run(func(st store.State) { p.Send(StateMsg{State: st}) })
	go playback.run(func(st voice.PlayerState) { p.Send(PlayerMsg{State: st}) })

	unsubscribe := func() {}
	if m.deps.Store != nil {
		unsubscribe = m.deps.Store.Subscribe(states.put)
	}
	if m.deps.Player != nil {
		m.deps.Player.SetStateHook(playback.put)
	}
	return p, func() {
		unsubscribe()
		if m.deps.Player != nil {
			m.deps.Player.SetStateHook(nil)
		}
		states.stop()
		playback.stop()
		m.log.Debug("program detached")
	}
}
