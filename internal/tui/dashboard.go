// Package tui is a live terminal dashboard over a running engine.Engine:
// device/packet counts, per-stage in-flight totals, and a scrolling feed
// of events.Hub occurrences. Grounded on the teacher's
// internal/tui/dashboard.go (bubbletea Model/Init/Update/View shape,
// tea.Tick-driven refresh, lipgloss card layout) and history.go (a
// bubbles/list feed of recent occurrences) — rebuilt around topo.World
// and engine.Engine instead of firewall status/flows. The canvas/editor
// UI spec.md §1 calls out of scope; this is the terminal observer
// cmd/netlab-sim's "tui" subcommand drives, not that editor.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kestrelnet/netlab/internal/engine"
	"github.com/kestrelnet/netlab/internal/events"
	"github.com/kestrelnet/netlab/internal/model"
)

var (
	StyleApp      = lipgloss.NewStyle().Padding(1, 2)
	StyleTitle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	StyleSubtitle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	StyleCard     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Margin(0, 1, 1, 0)
	StyleGood     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	StyleBad      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	StyleWarn     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// tickInterval is how often the TUI drives the engine forward while
// running, independent of the engine's own simulated tick duration
// (spec.md §4.8 decouples the two).
const tickInterval = 100 * time.Millisecond

type frameMsg time.Time

type eventItem struct {
	text string
}

func (i eventItem) Title() string       { return i.text }
func (i eventItem) Description() string { return "" }
func (i eventItem) FilterValue() string { return i.text }

// Model is the dashboard's bubbletea model. It owns the engine's driver
// directly rather than polling an HTTP backend (the teacher's Backend
// interface abstracts a remote appliance; here the simulator and the
// dashboard share a process, so Model ticks engine.Driver itself).
type Model struct {
	Engine *engine.Engine
	driver *engine.Driver
	sub    <-chan events.Event

	events list.Model
	width  int
	height int
	paused bool
}

// New returns a dashboard Model over eng, subscribed to its event hub.
func New(eng *engine.Engine) Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Events"
	l.Styles.Title = StyleTitle
	l.SetShowStatusBar(false)

	var sub <-chan events.Event
	if eng.Events != nil {
		sub = eng.Events.Subscribe()
	}

	return Model{
		Engine: eng,
		driver: engine.NewDriver(eng),
		sub:    sub,
		events: l,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ", "p":
			m.paused = !m.paused
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.events.SetSize(msg.Width-4, msg.Height/2)
	case frameMsg:
		if !m.paused {
			m.driver.Advance(tickInterval)
			m.drainEvents()
		}
		return m, tea.Tick(tickInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
	}
	var cmd tea.Cmd
	m.events, cmd = m.events.Update(msg)
	return m, cmd
}

// drainEvents pulls everything currently buffered on the subscription
// channel into the visible list without blocking (the channel is
// buffered and lossy under backpressure, per events.Hub.Publish).
func (m *Model) drainEvents() {
	if m.sub == nil {
		return
	}
	for {
		select {
		case ev := <-m.sub:
			m.events.InsertItem(0, eventItem{text: formatEvent(ev)})
		default:
			return
		}
	}
}

func formatEvent(ev events.Event) string {
	var attrs []string
	for k, v := range ev.Attributes {
		attrs = append(attrs, fmt.Sprintf("%s=%v", k, v))
	}
	if len(attrs) == 0 {
		return fmt.Sprintf("[%s] device=%s", ev.Type, ev.DeviceID)
	}
	return fmt.Sprintf("[%s] device=%s %s", ev.Type, ev.DeviceID, strings.Join(attrs, " "))
}

func (m Model) View() string {
	status := StyleGood.Render("RUNNING")
	if m.paused {
		status = StyleWarn.Render("PAUSED")
	}
	header := StyleCard.Render(lipgloss.JoinVertical(lipgloss.Left,
		StyleTitle.Render("netlab-sim"),
		fmt.Sprintf("%s · tick %d · speed %.1fx", status, m.Engine.Clock.Tick(), m.Engine.Speed),
	))

	devicesCard := StyleCard.Render(lipgloss.JoinVertical(lipgloss.Left,
		StyleTitle.Render("Devices"),
		m.renderDevices(),
	))

	packetsCard := StyleCard.Render(lipgloss.JoinVertical(lipgloss.Left,
		StyleTitle.Render("In-flight packets"),
		m.renderStageCounts(),
	))

	top := lipgloss.JoinHorizontal(lipgloss.Top, devicesCard, packetsCard)
	footer := StyleSubtitle.Render("[space] pause/resume  [q] quit")

	return StyleApp.Render(lipgloss.JoinVertical(lipgloss.Left,
		header, top, m.events.View(), footer,
	))
}

func (m Model) renderDevices() string {
	devices := m.Engine.World.Devices()
	if len(devices) == 0 {
		return StyleSubtitle.Render("(no devices)")
	}
	var lines []string
	for _, d := range devices {
		lines = append(lines, fmt.Sprintf("%-14s %-8s %d iface", d.Name, d.Kind, len(d.InterfaceIDs)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderStageCounts() string {
	counts := map[model.Stage]int{}
	for _, p := range m.Engine.World.Packets() {
		counts[p.Stage]++
	}
	stages := []model.Stage{model.StageAtDevice, model.StageOnLink, model.StageBuffered, model.StageArrived, model.StageDropped}
	var lines []string
	for _, s := range stages {
		lines = append(lines, fmt.Sprintf("%-10s %d", s, counts[s]))
	}
	return strings.Join(lines, "\n")
}

// Run starts the bubbletea program and blocks until the user quits.
func Run(eng *engine.Engine) error {
	_, err := tea.NewProgram(New(eng), tea.WithAltScreen()).Run()
	return err
}
