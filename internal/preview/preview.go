// Package preview is an interactive terminal view over an editor session.
// It drives the playback clock from the keyboard and shows which elements
// are live at the current time.
package preview

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ivlev/vidcanvas/internal/editor"
	"github.com/ivlev/vidcanvas/internal/surface"
)

const (
	seekStep = 1000.0
	barWidth = 40
)

type tickMsg time.Time

// Model implements tea.Model.
type Model struct {
	session  *editor.Session
	snap     editor.Snapshot
	refresh  time.Duration
	width    int
	err      error
	quitting bool
}

// New creates a preview refreshing its view every refresh.
func New(s *editor.Session, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = 100 * time.Millisecond
	}
	return Model{session: s, snap: s.Snapshot(), refresh: refresh, width: barWidth}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model interface.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update implements tea.Model interface.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.snap = m.session.Snapshot()
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.width = min(max(msg.Width-10, 10), 120)

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.session.Pause()
			m.quitting = true
			return m, tea.Quit
		case " ":
			if m.snap.Playing {
				m.apply(m.session.Pause())
			} else {
				m.apply(m.session.Play())
			}
		case "left":
			m.apply(m.session.Seek(max(0, m.snap.TimeMs-seekStep)))
		case "right":
			m.apply(m.session.Seek(m.snap.TimeMs + seekStep))
		case "home":
			m.apply(m.session.Seek(0))
		case "tab":
			m.snap = m.session.SetActive(m.nextSelection())
		}
	}
	return m, nil
}

func (m *Model) apply(snap editor.Snapshot, err error) {
	m.snap = snap
	m.err = err
}

// nextSelection cycles through the elements in z-order, then back to none.
func (m Model) nextSelection() string {
	els := m.snap.Elements
	if len(els) == 0 {
		return ""
	}
	if m.snap.ActiveID == "" {
		return els[0].ID
	}
	for i, e := range els {
		if e.ID == m.snap.ActiveID {
			if i+1 < len(els) {
				return els[i+1].ID
			}
			return ""
		}
	}
	return els[0].ID
}

// View implements tea.Model interface.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	state := "paused"
	if m.snap.Playing {
		state = "playing"
	}
	maxTime := float64(m.session.MaxTime())
	b.WriteString("vidcanvas preview\n\n")
	b.WriteString(fmt.Sprintf("%s / %s  %s\n", formatMs(m.snap.TimeMs), formatMs(maxTime), state))
	b.WriteString(progressBar(m.snap.TimeMs, maxTime, m.width))
	b.WriteString("\n\n")

	if len(m.snap.Elements) == 0 {
		b.WriteString("  (no elements)\n")
	}
	for _, e := range m.snap.Elements {
		marker := " "
		if e.ID == m.snap.ActiveID {
			marker = ">"
		}
		status := "hidden"
		switch {
		case !e.Bound:
			status = "missing"
		case e.Visible:
			status = "visible"
		}
		b.WriteString(fmt.Sprintf("%s %-6s %-20s %s-%s  %s\n", marker, e.Kind, truncate(e.Name, 20),
			formatMs(float64(e.TimeFrame.Start)), formatMs(float64(e.TimeFrame.End)), status))
	}

	if m.err != nil {
		b.WriteString(fmt.Sprintf("\nerror: %v\n", m.err))
	}
	b.WriteString("\n(space play/pause, arrows seek, home restart, tab select, q quit)")
	return b.String()
}

func formatMs(ms float64) string {
	d := time.Duration(ms * float64(time.Millisecond))
	return fmt.Sprintf("%02d:%06.3f", int(d.Minutes()), d.Seconds()-float64(int(d.Minutes())*60))
}

func progressBar(t, total float64, width int) string {
	filled := 0
	if total > 0 {
		filled = int(float64(width) * t / total)
	}
	filled = min(max(filled, 0), width)
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}

// Run shows the preview until the user quits or ctx is done. The surface
// keeps rendering in the background at the session frame rate.
func Run(ctx context.Context, s *editor.Session, refresh time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		surface.RenderLoop(ctx, s.Surface(), s.Scheduler(), time.Second/time.Duration(s.FPS()))
	}()

	_, err := tea.NewProgram(New(s, refresh), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	cancel()
	<-done
	return err
}
