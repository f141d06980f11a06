package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/soprev-labs/soprev-cli/internal/adapters/driving/tui/keymap"
	"github.com/soprev-labs/soprev-cli/internal/adapters/driving/tui/styles"
	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driving"
)

// turn is one question/answer exchange in the transcript.
type turn struct {
	question  string
	answer    string
	citations []string
}

// answerMsg carries a completed chat turn back into the Update loop.
type answerMsg struct {
	answer *driving.Answer
}

// errMsg carries a failed chat turn back into the Update loop.
type errMsg struct {
	err error
}

// App is the interactive chat application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	// styles holds the TUI styles.
	styles *styles.Styles

	// keys holds the keybindings.
	keys *keymap.KeyMap

	// transcript shows the conversation so far.
	transcript viewport.Model

	// input is the question entry area.
	input textarea.Model

	// sessionID identifies the active conversation. Empty until the
	// first answer arrives.
	sessionID string

	// turns is the conversation history rendered in the transcript.
	turns []turn

	// waiting is true while a question is in flight.
	waiting bool

	// err holds the last error that occurred.
	err error

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the app has initialised.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new chat application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	input := textarea.New()
	input.Placeholder = "Ask about your SOPs..."
	input.SetHeight(3)
	input.ShowLineNumbers = false
	input.Focus()

	return &App{
		ports:      ports,
		ctx:        context.Background(),
		styles:     styles.DefaultStyles(),
		keys:       keymap.DefaultKeyMap(),
		transcript: viewport.New(0, 0),
		input:      input,
	}, nil
}

// WithContext sets the context for the app.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// WithSession resumes an existing conversation.
func (a *App) WithSession(sessionID string) *App {
	a.sessionID = sessionID
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tea.SetWindowTitle("soprev - SOP Assistant"),
		textarea.Blink,
	)
}

// Update implements tea.Model.
// It handles messages and updates the model state.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.input.SetWidth(msg.Width - 2)
		// Transcript fills everything above the input and help line.
		a.transcript.Width = msg.Width
		a.transcript.Height = max(msg.Height-a.inputHeight()-2, 1)
		a.refreshTranscript()
		return a, nil

	case tea.KeyMsg:
		key := msg.String()
		switch {
		case keymap.Matches(key, a.keys.Quit):
			return a, tea.Quit

		case keymap.Matches(key, a.keys.NewSession):
			a.sessionID = ""
			a.turns = nil
			a.err = nil
			a.input.Reset()
			a.refreshTranscript()
			return a, nil

		case keymap.Matches(key, a.keys.ScrollUp):
			a.transcript.LineUp(3)
			return a, nil

		case keymap.Matches(key, a.keys.ScrollDown):
			a.transcript.LineDown(3)
			return a, nil

		case keymap.Matches(key, a.keys.Send):
			return a, a.submit()
		}

		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd

	case answerMsg:
		a.waiting = false
		a.err = nil
		a.sessionID = msg.answer.SessionID
		if len(a.turns) > 0 {
			last := &a.turns[len(a.turns)-1]
			last.answer = msg.answer.Text
			last.citations = citationLabels(msg.answer.Citations)
		}
		a.refreshTranscript()
		return a, nil

	case errMsg:
		a.waiting = false
		a.err = msg.err
		if len(a.turns) > 0 && a.turns[len(a.turns)-1].answer == "" {
			a.turns = a.turns[:len(a.turns)-1]
		}
		a.refreshTranscript()
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// submit sends the typed question to the chat service.
func (a *App) submit() tea.Cmd {
	question := strings.TrimSpace(a.input.Value())
	if question == "" || a.waiting {
		return nil
	}

	a.turns = append(a.turns, turn{question: question})
	a.waiting = true
	a.err = nil
	a.input.Reset()
	a.refreshTranscript()

	ctx := a.ctx
	sessionID := a.sessionID
	chat := a.ports.Chat

	return func() tea.Msg {
		answer, err := chat.Ask(ctx, sessionID, question)
		if err != nil {
			return errMsg{err: err}
		}
		return answerMsg{answer: answer}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(a.transcript.View())
	b.WriteString("\n")
	b.WriteString(a.styles.InputField.Render(a.input.View()))
	b.WriteString("\n")
	b.WriteString(a.helpLine())
	return b.String()
}

// refreshTranscript re-renders the conversation into the viewport and
// scrolls to the newest turn.
func (a *App) refreshTranscript() {
	a.transcript.SetContent(a.renderTranscript())
	a.transcript.GotoBottom()
}

func (a *App) renderTranscript() string {
	if len(a.turns) == 0 && a.err == nil {
		return a.styles.Muted.Render("Start a conversation about your indexed SOPs.")
	}

	var sections []string
	for _, t := range a.turns {
		sections = append(sections, a.styles.User.Render("You")+"\n"+a.styles.Normal.Render(t.question))
		switch {
		case t.answer != "":
			block := a.styles.Assistant.Render("Assistant") + "\n" + a.styles.Normal.Render(t.answer)
			if len(t.citations) > 0 {
				block += "\n" + a.styles.Muted.Render("Sources: "+strings.Join(t.citations, ", "))
			}
			sections = append(sections, block)
		case a.waiting:
			sections = append(sections, a.styles.Muted.Render("Thinking..."))
		}
	}

	if a.err != nil {
		sections = append(sections, a.styles.Error.Render("Error: "+a.err.Error()))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) helpLine() string {
	parts := make([]string, 0, 3)
	for _, binding := range a.keys.ShortHelp() {
		h := binding.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return a.styles.Help.Render(strings.Join(parts, "  •  "))
}

// inputHeight is the rendered height of the input box including its border.
func (a *App) inputHeight() int {
	return a.input.Height() + 2
}

// citationLabels formats retrieval results as short source labels,
// de-duplicated by document.
func citationLabels(results []domain.SearchResult) []string {
	seen := make(map[string]bool, len(results))
	labels := make([]string, 0, len(results))
	for _, r := range results {
		label := r.Document.Title
		if label == "" {
			label = r.Document.URI
		}
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}
	return labels
}

// Run starts the chat application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// SessionID returns the active session identifier.
func (a *App) SessionID() string {
	return a.sessionID
}

// Turns returns the number of exchanges in the transcript.
func (a *App) Turns() int {
	return len(a.turns)
}

// Waiting reports whether a question is in flight.
func (a *App) Waiting() bool {
	return a.waiting
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions (for testing).
func (a *App) SetDimensions(width, height int) {
	a.Update(tea.WindowSizeMsg{Width: width, Height: height})
}
