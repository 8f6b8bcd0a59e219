// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/imSoTn/audioreact/internal/analysis"
)

// spikeFlashDuration keeps the spike indicator lit a little longer than
// the analyzer's own hold so it is visible at terminal refresh rates.
const spikeFlashDuration = 150 * time.Millisecond

var (
	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065"))

	volumeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB454"))

	disabledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555"))

	spikeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)
)

// MeterModel renders the live analysis output: one bar per band, a volume
// bar, a stereo direction indicator, and a spike flash. Results arrive on
// a channel the capture engine feeds without blocking.
type MeterModel struct {
	results <-chan analysis.Result

	latest     analysis.Result
	haveResult bool
	spikeUntil time.Time

	width int
	ready bool
}

type resultMsg analysis.Result

type resultsClosedMsg struct{}

// NewMeterModel wires a meter to an engine result feed.
func NewMeterModel(results <-chan analysis.Result) MeterModel {
	return MeterModel{results: results, latest: analysis.Result{Direction: 0.5}}
}

func (m MeterModel) Init() tea.Cmd {
	return waitForResult(m.results)
}

// waitForResult blocks on the feed and converts one result into a message.
// Reissued after every message so the meter tracks the capture cadence.
func waitForResult(ch <-chan analysis.Result) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-ch
		if !ok {
			return resultsClosedMsg{}
		}
		return resultMsg(res)
	}
}

func (m MeterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.ready = true

	case resultMsg:
		m.latest = analysis.Result(msg)
		m.haveResult = true
		if m.latest.Spike {
			m.spikeUntil = time.Now().Add(spikeFlashDuration)
		}
		return m, waitForResult(m.results)

	case resultsClosedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m MeterModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	barWidth := m.width - 24
	if barWidth < 10 {
		barWidth = 10
	}
	if barWidth > 60 {
		barWidth = 60
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Spectral Monitor"))
	if time.Now().Before(m.spikeUntil) {
		sb.WriteString("  ")
		sb.WriteString(spikeStyle.Render("● SPIKE"))
	}
	sb.WriteString("\n\n")

	if !m.haveResult {
		sb.WriteString(infoStyle.Render("Waiting for audio...\n"))
	}

	for i, power := range m.latest.Bands {
		sb.WriteString(renderBar(analysis.BandName(i), power, barWidth, barStyle))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(renderBar("Volume", m.latest.Volume, barWidth, volumeStyle))
	sb.WriteString("\n")
	sb.WriteString(renderDirection(m.latest.Direction, barWidth))
	sb.WriteString("\n\n")
	sb.WriteString(infoStyle.Render("q: Quit"))

	return sb.String()
}

// renderBar draws one labeled meter bar, clamping the value to [0,1].
func renderBar(label string, value float64, width int, style lipgloss.Style) string {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}

	filled := int(value * float64(width))
	bar := style.Render(strings.Repeat("█", filled)) +
		disabledStyle.Render(strings.Repeat("░", width-filled))

	return fmt.Sprintf("%-10s %s %.2f", label, bar, value)
}

// renderDirection draws the stereo balance track with a marker: left edge
// is 0, right edge 1, center 0.5.
func renderDirection(direction float64, width int) string {
	if direction < 0 {
		direction = 0
	}
	if direction > 1 {
		direction = 1
	}

	pos := int(direction * float64(width-1))
	track := []rune(strings.Repeat("─", width))
	track[pos] = '◆'

	return fmt.Sprintf("%-10s L%sR %.2f", "Direction", highlightStyle.Render(string(track)), direction)
}

// StartMeterUI runs the live meter until the user quits or the result feed
// closes.
func StartMeterUI(results <-chan analysis.Result) error {
	p := tea.NewProgram(NewMeterModel(results), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
