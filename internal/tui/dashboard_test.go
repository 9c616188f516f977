package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/kestrelnet/netlab/internal/engine"
	"github.com/kestrelnet/netlab/internal/events"
	"github.com/kestrelnet/netlab/internal/model"
	"github.com/kestrelnet/netlab/internal/simclock"
	"github.com/kestrelnet/netlab/internal/topo"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	w := topo.New()
	d := w.AddDevice("h1", model.KindPC)
	_, err := w.AddInterface(d.ID, "eth0", w.GenerateMAC())
	require.NoError(t, err)

	eng := engine.New(w, simclock.NewDeterministic(time.Unix(0, 0), 1))
	eng.Events = events.NewHub()
	return New(eng)
}

func TestUpdateQuitsOnQOrCtrlC(t *testing.T) {
	m := newTestModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestUpdateTogglesPauseOnSpace(t *testing.T) {
	m := newTestModel(t)
	require.False(t, m.paused)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m = updated.(Model)
	require.True(t, m.paused)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m = updated.(Model)
	require.False(t, m.paused)
}

func TestUpdateAdvancesEngineOnFrameWhenNotPaused(t *testing.T) {
	m := newTestModel(t)
	tickBefore := m.Engine.Clock.Tick()

	updated, cmd := m.Update(frameMsg(time.Now()))
	m = updated.(Model)
	require.NotNil(t, cmd)
	require.Greater(t, m.Engine.Clock.Tick(), tickBefore, "a frame tick should advance the engine's clock")
}

func TestUpdateDoesNotAdvanceEngineWhilePaused(t *testing.T) {
	m := newTestModel(t)
	m.paused = true
	tickBefore := m.Engine.Clock.Tick()

	updated, _ := m.Update(frameMsg(time.Now()))
	m = updated.(Model)
	require.Equal(t, tickBefore, m.Engine.Clock.Tick())
}

func TestDrainEventsInsertsPublishedEventsIntoList(t *testing.T) {
	m := newTestModel(t)
	m.Engine.Events.Publish(events.Event{Type: events.ARPResolved, DeviceID: "h1"})

	// Give the buffered channel write a moment to land before draining.
	time.Sleep(10 * time.Millisecond)
	m.drainEvents()

	require.Equal(t, 1, len(m.events.Items()))
}

func TestFormatEventWithAndWithoutAttributes(t *testing.T) {
	bare := formatEvent(events.Event{Type: events.PacketDropped, DeviceID: "r1"})
	require.Equal(t, "[packet_dropped] device=r1", bare)

	withAttrs := formatEvent(events.Event{
		Type: events.STPConverged, DeviceID: "sw1",
		Attributes: map[string]any{"root": "sw1"},
	})
	require.Contains(t, withAttrs, "[stp_converged] device=sw1")
	require.Contains(t, withAttrs, "root=sw1")
}

func TestViewRendersDeviceAndStageCounts(t *testing.T) {
	m := newTestModel(t)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = updated.(Model)

	view := m.View()
	require.Contains(t, view, "netlab-sim")
	require.Contains(t, view, "h1")
	require.Contains(t, view, "RUNNING")
}

func TestViewShowsPausedStatus(t *testing.T) {
	m := newTestModel(t)
	m.paused = true
	require.Contains(t, m.View(), "PAUSED")
}
