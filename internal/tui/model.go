package tui

import (
	"errors"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/shlex"

	"docsearch/internal/command"
)

// Model is the Bubble Tea model for the interactive manager.
type Model struct {
	registry *command.Registry
	env      *command.Env
	input    textinput.Model
	viewport viewport.Model
	output   string
	summary  string
	status   string
	pending  string
	ready    bool
	quitting bool
}

// New creates a new TUI model that runs command lines against env.
func New(registry *command.Registry, env *command.Env, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "docsearch> "
	ti.Placeholder = "Type a command, or 'help'"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		registry: registry,
		env:      env,
		input:    ti,
		viewport: vp,
		summary:  summary,
		output:   "Type 'help' for commands.",
		status:   "Ready.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := outputBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, summary, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.output)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.quitting = true
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if m.pending != "" {
				return m.confirm(line)
			}
			if line == "" {
				return m, nil
			}
			return m.run(line, false)
		case "up", "pgup":
			m.viewport.LineUp(1)
			return m, nil
		case "down", "pgdown":
			m.viewport.LineDown(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) confirm(answer string) (tea.Model, tea.Cmd) {
	line := m.pending
	m.pending = ""
	if strings.ToLower(answer) != "yes" {
		m.setOutput("Aborted.", "")
		m.status = "Aborted."
		return m, nil
	}
	return m.run(line, true)
}

func (m Model) run(line string, confirmed bool) (tea.Model, tea.Cmd) {
	env := *m.env
	env.Confirmed = confirmed
	out, err := m.registry.Execute(&env, line)
	var ce *command.ConfirmationError
	switch {
	case errors.Is(err, command.ErrQuit):
		m.quitting = true
		return m, tea.Quit
	case errors.As(err, &ce):
		m.pending = line
		m.setOutput(ce.Prompt, "")
		m.status = "Awaiting confirmation."
	case err != nil:
		m.setOutput("Error: "+err.Error(), "")
		m.status = "Error."
	default:
		m.setOutput(out, searchQuery(line))
		m.status = "> " + line
	}
	return m, nil
}

func (m *Model) setOutput(text, query string) {
	m.output = HighlightTerms(text, query)
	m.viewport.SetContent(m.output)
	m.viewport.GotoTop()
}

// View renders the TUI layout and the last command output.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document Search")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := inputBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	output := outputBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + output + "\n" + input + "\n" + status
}

var (
	outputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	wordRe         = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

// searchQuery returns the query text of a search command line, or "".
func searchQuery(line string) string {
	args, err := shlex.Split(line)
	if err != nil || len(args) < 2 || strings.ToLower(args[0]) != "search" {
		return ""
	}
	var terms []string
	for i := 1; i < len(args); i++ {
		if args[i] == "--k" {
			i++
			continue
		}
		terms = append(terms, args[i])
	}
	return strings.Join(terms, " ")
}

// HighlightTerms renders every word of text that also occurs in query.
func HighlightTerms(text, query string) string {
	terms := toTokenSet(query)
	if len(terms) == 0 {
		return text
	}
	return wordRe.ReplaceAllStringFunc(text, func(w string) string {
		if _, ok := terms[strings.ToLower(w)]; ok {
			return highlightStyle.Render(w)
		}
		return w
	})
}

func toTokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if len([]rune(t)) < 2 {
			continue
		}
		m[t] = struct{}{}
	}
	return m
}
