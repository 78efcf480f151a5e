// ABOUTME: Server TUI for displaying channel occupancy and clients
// ABOUTME: Real-time mixer status display using bubbletea
package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Channels per row in the occupancy grid
const gridWidth = 16

// ServerTUI manages the server TUI
type ServerTUI struct {
	program  *tea.Program
	updates  chan ServerStatus
	quitChan chan struct{}

	mu      sync.Mutex
	stopped bool
}

// ServerStatus holds server state for TUI
type ServerStatus struct {
	Name       string
	Port       int
	Clients    []ClientInfo
	Size       int
	Free       int
	Busy       int
	Dispatcher string
	Policy     string
	Layout     string
	Rate       int
	Playing    map[int]string // channel -> file
}

// ClientInfo holds client information for display
type ClientInfo struct {
	Name     string
	ID       string
	Inflight int
	Played   int
}

// tuiModel is the bubbletea model for server TUI
type tuiModel struct {
	status    ServerStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time
type statusMsg ServerStatus

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = ServerStatus(msg)
		return m, nil
	}

	return m, nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	busyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	freeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down server...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("chanmix Server"))
	b.WriteString("\n\n")

	field := func(name, value string) {
		b.WriteString(headerStyle.Render(name + ": "))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	field("Server", m.status.Name)
	field("Port", fmt.Sprintf("%d", m.status.Port))
	field("Uptime", time.Since(m.startTime).Round(time.Second).String())
	field("Device", fmt.Sprintf("%dHz %s", m.status.Rate, m.status.Layout))
	field("Dispatcher", m.status.Dispatcher)
	field("Policy", m.status.Policy)
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Channels (%d busy / %d free of %d)",
		m.status.Busy, m.status.Free, m.status.Size)))
	b.WriteString("\n\n")
	b.WriteString(renderGrid(m.status.Size, m.status.Playing))
	b.WriteString("\n")

	for ch := 0; ch < m.status.Size; ch++ {
		if file, ok := m.status.Playing[ch]; ok {
			b.WriteString(fmt.Sprintf("  %2d ", ch))
			b.WriteString(valueStyle.Render(file))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Connected Clients (%d)", len(m.status.Clients))))
	b.WriteString("\n\n")

	if len(m.status.Clients) == 0 {
		b.WriteString(valueStyle.Render("  No clients connected"))
		b.WriteString("\n")
	} else {
		for _, client := range m.status.Clients {
			b.WriteString(fmt.Sprintf("  • %s", client.Name))
			b.WriteString(valueStyle.Render(fmt.Sprintf(" (%d playing, %d done)", client.Inflight, client.Played)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// renderGrid draws one cell per channel, busy cells highlighted
func renderGrid(size int, playing map[int]string) string {
	var b strings.Builder
	for ch := 0; ch < size; ch++ {
		if ch > 0 && ch%gridWidth == 0 {
			b.WriteString("\n")
		}
		if _, busy := playing[ch]; busy {
			b.WriteString(busyStyle.Render("■ "))
		} else {
			b.WriteString(freeStyle.Render("□ "))
		}
	}
	b.WriteString("\n")
	return b.String()
}

// NewServerTUI creates a new server TUI
func NewServerTUI() *ServerTUI {
	return &ServerTUI{
		updates:  make(chan ServerStatus, 10),
		quitChan: make(chan struct{}, 1),
	}
}

// Start runs the TUI until it quits
func (t *ServerTUI) Start(initial ServerStatus) error {
	m := tuiModel{
		status:    initial,
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}

	program := tea.NewProgram(m, tea.WithAltScreen())

	t.mu.Lock()
	t.program = program
	t.mu.Unlock()

	go func() {
		for status := range t.updates {
			program.Send(statusMsg(status))
		}
	}()

	_, err := program.Run()
	return err
}

// Update sends a status update to the TUI
func (t *ServerTUI) Update(status ServerStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	select {
	case t.updates <- status:
	default:
		// Don't block if channel is full
	}
}

// Stop stops the TUI
func (t *ServerTUI) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.stopped = true

	if t.program != nil {
		t.program.Quit()
	}
	close(t.updates)
}

// QuitChan returns the channel that signals when user wants to quit
func (t *ServerTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
