// Package tui is the terminal front end of a session controller.
package tui

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lehigh-university-libraries/bookledger/internal/models"
	"github.com/lehigh-university-libraries/bookledger/internal/session"
)

// Suggester fills in the missing fields of a draft
type Suggester interface {
	Suggest(ctx context.Context, draft models.Draft) (models.Draft, error)
}

const (
	fieldTitle = iota
	fieldAuthor
	fieldPublisher
	fieldYear
	fieldCount
)

type mode int

const (
	modeList mode = iota
	modeForm
)

// stateMsg carries a controller snapshot into the update loop
type stateMsg models.State

// actionDoneMsg is sent when a controller operation returns
type actionDoneMsg struct {
	action string
	err    error
}

type suggestDoneMsg struct {
	draft models.Draft
	err   error
}

// Model is the bubbletea model for one session
type Model struct {
	ctx       context.Context
	ctrl      *session.Controller
	suggester Suggester
	states    chan models.State

	state      models.State
	lastDraft  models.Draft
	mode       mode
	inputs     []textinput.Model
	focused    int
	cursor     int
	suggestErr string
	width      int
	height     int
}

// NewModel creates a model driving ctrl. suggester may be nil.
func NewModel(ctx context.Context, ctrl *session.Controller, suggester Suggester) Model {
	m := Model{
		ctx:       ctx,
		ctrl:      ctrl,
		suggester: suggester,
		states:    make(chan models.State, 16),
		state:     ctrl.Snapshot(),
	}
	m.initInputs()
	return m
}

func (m *Model) initInputs() {
	placeholders := []string{"Title", "Author", "Publisher", "e.g. 2024"}
	limits := []int{200, 100, 100, 6}

	m.inputs = make([]textinput.Model, fieldCount)
	for i := range m.inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = limits[i]
		ti.Width = 40
		ti.Prompt = ""
		m.inputs[i] = ti
	}
}

// Watch forwards controller changes to the model until the returned cancel is called.
func (m Model) Watch() (cancel func()) {
	return m.ctrl.Watch(func(s models.State) {
		select {
		case m.states <- s:
		default:
			// drop the oldest so the latest always arrives
			select {
			case <-m.states:
			default:
			}
			select {
			case m.states <- s:
			default:
			}
		}
	})
}

func waitForState(ch <-chan models.State) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ch)
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForState(m.states))
}

func (m Model) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{action: action, err: fn(ctx)}
	}
}

func (m Model) draft() models.Draft {
	return models.Draft{
		Title:     m.inputs[fieldTitle].Value(),
		Author:    m.inputs[fieldAuthor].Value(),
		Publisher: m.inputs[fieldPublisher].Value(),
		Year:      m.inputs[fieldYear].Value(),
	}
}

func (m *Model) setDraft(d models.Draft) {
	m.inputs[fieldTitle].SetValue(d.Title)
	m.inputs[fieldAuthor].SetValue(d.Author)
	m.inputs[fieldPublisher].SetValue(d.Publisher)
	m.inputs[fieldYear].SetValue(d.Year)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case stateMsg:
		m.applyState(models.State(msg))
		return m, waitForState(m.states)

	case actionDoneMsg:
		if msg.err != nil {
			slog.Debug("Action failed", "action", msg.action, "err", msg.err)
		}
		if msg.action == "add" && msg.err == nil {
			m.mode = modeList
			m.blurInputs()
			m.resetForm()
		}
		m.applyState(m.ctrl.Snapshot())
		return m, nil

	case suggestDoneMsg:
		if msg.err != nil {
			m.suggestErr = fmt.Sprintf("Suggestion failed: %v", msg.err)
			return m, nil
		}
		m.suggestErr = ""
		m.ctrl.SetDraft(msg.draft)
		m.applyState(m.ctrl.Snapshot())
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.mode == modeForm {
			return m.updateForm(msg)
		}
		return m.updateList(msg)
	}

	return m, nil
}

// applyState stores a snapshot and copies the draft into the form when the
// controller changed it (reset after add, clear, suggestion).
func (m *Model) applyState(s models.State) {
	m.state = s
	if s.Draft != m.lastDraft {
		m.lastDraft = s.Draft
		m.setDraft(s.Draft)
	}
	if m.cursor >= len(s.Books) {
		m.cursor = max(len(s.Books)-1, 0)
	}
	if !s.Connected && m.mode == modeForm {
		m.mode = modeList
		m.blurInputs()
	}
}

func (m *Model) resetForm() {
	m.lastDraft = models.Draft{}
	m.setDraft(models.Draft{})
}

func (m *Model) blurInputs() {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "c":
		if !m.state.Connected {
			return m, m.run("connect", m.ctrl.Connect)
		}
	case "r":
		return m, m.run("refresh", m.ctrl.FetchAll)
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.state.Books)-1 {
			m.cursor++
		}
	case "t", " ":
		if m.cursor < len(m.state.Books) {
			id := m.state.Books[m.cursor].ID
			return m, m.run("toggle", func(ctx context.Context) error {
				return m.ctrl.ToggleLoanState(ctx, id)
			})
		}
	case "a", "tab":
		if m.state.Connected {
			m.mode = modeForm
			m.focused = fieldTitle
			return m, m.inputs[m.focused].Focus()
		}
	case "x":
		m.suggestErr = ""
		m.ctrl.DismissError()
	case "d":
		if m.state.Connected {
			m.ctrl.Disconnect()
		}
	}
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		m.blurInputs()
		m.ctrl.SetDraft(m.draft())
		return m, nil

	case "ctrl+s":
		return m.submit()

	case "enter":
		if m.focused == fieldYear {
			return m.submit()
		}
		return m.moveFocus(1)

	case "ctrl+l":
		m.suggestErr = ""
		m.ctrl.ClearDraft()
		m.resetForm()
		return m, nil

	case "ctrl+g":
		if m.suggester == nil {
			m.suggestErr = "Suggestions are not configured."
			return m, nil
		}
		draft := m.draft()
		if draft.Title == "" {
			m.suggestErr = "Type a title first."
			return m, nil
		}
		ctx, suggester := m.ctx, m.suggester
		return m, func() tea.Msg {
			d, err := suggester.Suggest(ctx, draft)
			return suggestDoneMsg{draft: d, err: err}
		}

	case "tab", "down":
		return m.moveFocus(1)

	case "shift+tab", "up":
		return m.moveFocus(-1)
	}

	var cmd tea.Cmd
	m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	return m, cmd
}

func (m Model) moveFocus(delta int) (tea.Model, tea.Cmd) {
	m.inputs[m.focused].Blur()
	m.focused = (m.focused + delta + fieldCount) % fieldCount
	return m, m.inputs[m.focused].Focus()
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	draft := m.draft()
	return m, m.run("add", func(ctx context.Context) error {
		return m.ctrl.SubmitNew(ctx, draft)
	})
}

// Run starts the terminal interface and blocks until the user quits.
func Run(ctx context.Context, ctrl *session.Controller, suggester Suggester) error {
	m := NewModel(ctx, ctrl, suggester)
	cancel := m.Watch()
	defer cancel()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal interface failed: %w", err)
	}
	return nil
}
