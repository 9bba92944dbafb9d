package preview

import (
	"image/color"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/vidcanvas/internal/clock"
	"github.com/ivlev/vidcanvas/internal/config"
	"github.com/ivlev/vidcanvas/internal/editor"
	"github.com/ivlev/vidcanvas/internal/failure"
	"github.com/ivlev/vidcanvas/internal/media"
	"github.com/ivlev/vidcanvas/internal/scene"
	"github.com/ivlev/vidcanvas/internal/surface"
)

func newSession(t *testing.T) (*editor.Session, *clock.ManualScheduler) {
	t.Helper()
	cfg := config.Default()
	cfg.FPS = 50
	cfg.MaxTime = 5000
	sched := clock.NewManualScheduler(time.Unix(1700000000, 0))
	s := editor.New(cfg, surface.NewCanvas(64, 64, color.RGBA{A: 0xff}), media.NewLibrary(), sched)
	t.Cleanup(s.Close)
	return s, sched
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "home":
		return tea.KeyMsg{Type: tea.KeyHome}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestSpaceTogglesPlayback(t *testing.T) {
	s, _ := newSession(t)
	m := New(s, 0)

	m, _ = update(t, m, key(" "))
	assert.True(t, m.snap.Playing)
	assert.True(t, s.Snapshot().Playing)

	m, _ = update(t, m, key(" "))
	assert.False(t, m.snap.Playing)
	assert.False(t, s.Snapshot().Playing)
}

func TestArrowsSeekBySecond(t *testing.T) {
	s, _ := newSession(t)
	m := New(s, 0)

	m, _ = update(t, m, key("right"))
	m, _ = update(t, m, key("right"))
	assert.Equal(t, 2000.0, m.snap.TimeMs)

	m, _ = update(t, m, key("left"))
	assert.Equal(t, 1000.0, m.snap.TimeMs)

	m, _ = update(t, m, key("left"))
	m, _ = update(t, m, key("left"))
	assert.Equal(t, 0.0, m.snap.TimeMs)

	m, _ = update(t, m, key("right"))
	m, _ = update(t, m, key("home"))
	assert.Equal(t, 0.0, s.Snapshot().TimeMs)
}

func TestTabCyclesSelection(t *testing.T) {
	s, _ := newSession(t)
	a, _, err := s.AddElement(scene.Content{Kind: scene.KindText, Text: "a"})
	require.NoError(t, err)
	b, _, err := s.AddElement(scene.Content{Kind: scene.KindText, Text: "b"})
	require.NoError(t, err)
	m := New(s, 0)

	var seen []string
	for range 3 {
		m, _ = update(t, m, key("tab"))
		seen = append(seen, m.snap.ActiveID)
	}
	assert.Equal(t, []string{a.ID, b.ID, ""}, seen)
	assert.Equal(t, "", s.Snapshot().ActiveID)
}

func TestTickRefreshesSnapshot(t *testing.T) {
	s, sched := newSession(t)
	m := New(s, 0)

	_, err := s.Play()
	require.NoError(t, err)
	sched.Advance(500 * time.Millisecond)

	m, cmd := update(t, m, tickMsg(time.Now()))
	assert.NotNil(t, cmd)
	assert.True(t, m.snap.Playing)
	assert.Equal(t, 500.0, m.snap.TimeMs)
}

func TestQuitPausesClock(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.Play()
	require.NoError(t, err)
	m := New(s, 0)

	m, cmd := update(t, m, key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.False(t, s.Snapshot().Playing)
	assert.Empty(t, m.View())
}

func TestExportLeaseSurfacesError(t *testing.T) {
	s, _ := newSession(t)
	lease, err := s.AcquireExport()
	require.NoError(t, err)
	defer lease.Release()
	m := New(s, 0)

	m, _ = update(t, m, key(" "))
	assert.ErrorIs(t, m.err, failure.ErrExportInProgress)
	assert.Contains(t, m.View(), "error:")
}

func TestViewListsElements(t *testing.T) {
	s, _ := newSession(t)
	el, _, err := s.AddElement(scene.Content{Kind: scene.KindText, Name: "Title", Text: "hi"})
	require.NoError(t, err)
	_, ok := s.UpdateTimeFrame(el.ID, scene.TimeFramePatch{End: ptr(int64(1500))})
	require.True(t, ok)
	s.SetActive(el.ID)

	m, _ := update(t, New(s, 0), key("right"))
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 30, Height: 20})
	view := m.View()

	assert.Contains(t, view, "00:01.000 / 00:05.000  paused")
	assert.Contains(t, view, "[####----------------]")
	assert.Contains(t, view, "> text   Title")
	assert.Contains(t, view, "00:00.000-00:01.500  visible")

	m, _ = update(t, m, key("right"))
	assert.Contains(t, m.View(), "hidden")
}

func ptr[T any](v T) *T { return &v }

func TestFormatting(t *testing.T) {
	assert.Equal(t, "01:05.250", formatMs(65250))
	assert.Equal(t, "[----]", progressBar(0, 0, 4))
	assert.Equal(t, "[####]", progressBar(9000, 5000, 4))
	assert.Equal(t, "abcd~", truncate("abcdefgh", 5))
	assert.Equal(t, "abc", truncate("abc", 5))
}
