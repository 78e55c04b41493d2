// internal/tui/view.go
package tui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/AlverezYari/warpframe/internal/source"
	"github.com/AlverezYari/warpframe/internal/stream"
)

// Style definitions
var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("250")).
			Padding(0, 1)

	mainContentStyle = lipgloss.NewStyle().
				Padding(1, 0)

	tabStyle = lipgloss.NewStyle().
			Padding(0, 1)

	activeTabStyle = tabStyle.
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0"))

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View renders the UI
func (m Model) View() string {
	timeStr := m.currentTime.Format("Mon Jan 2 15:04:05 2006")

	headerContent := lipgloss.JoinHorizontal(
		lipgloss.Center,
		"warpframe",
		lipgloss.NewStyle().
			Width(max(m.width-11, 0)).
			Align(lipgloss.Right).
			Render(timeStr),
	)
	header := headerStyle.Width(m.width).Render(headerContent)

	tabs := m.renderTabs()

	var mainContent string
	if m.activeTab == logsTab {
		mainContent = m.logViewport.View()
	} else {
		mainContent = mainContentStyle.Render(m.renderActiveTabContent())
	}

	statusBar := statusBarStyle.Width(m.width).Render(
		fmt.Sprintf("Status: %s | Tab or Num 1-5: Switch Views | Press q to quit", m.status),
	)

	return fmt.Sprintf("%s\n%s\n%s\n%s", header, tabs, mainContent, statusBar)
}

// Helper function to render tabs
func (m Model) renderTabs() string {
	var renderedTabs []string

	for _, t := range m.tabs {
		style := tabStyle
		if t.id == m.activeTab {
			style = activeTabStyle
		}
		renderedTabs = append(renderedTabs, style.Render(t.title))
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		renderedTabs...,
	)
}

// Helper function to render active tab content
func (m Model) renderActiveTabContent() string {
	switch m.activeTab {
	case pipelineTab:
		return m.renderPipeline()
	case settingsTab:
		return m.renderSettings()
	case sessionsTab:
		return renderSessions(m.snap.sessions, m.currentTime)
	case serverTab:
		return m.renderServer()
	}
	return ""
}

func (m Model) renderPipeline() string {
	st := m.snap.stats
	state := warnStyle.Render(st.State.String())
	if st.State == source.StateDecoding {
		state = okStyle.Render(st.State.String())
	}
	return fmt.Sprintf("Decode Loop:\n"+
		"• State: %s\n"+
		"• Source: %s\n"+
		"• Resolution: %dx%d\n"+
		"• Frames Read: %d\n"+
		"• Open Failures: %d\n"+
		"• Reopens: %d\n"+
		"• Source Switches: %d\n"+
		"• Uptime: %s",
		state, st.Source, st.Width, st.Height, st.FramesRead,
		st.OpenFailures, st.Reopens, st.Switches,
		m.currentTime.Sub(m.startTime).Truncate(time.Second))
}

func (m Model) renderSettings() string {
	s := m.snap.settings
	var content strings.Builder
	content.WriteString("Transform Settings:\n")
	fmt.Fprintf(&content, "• Video Source: %s\n", s.VideoSource)
	names := [4]string{"Top Left", "Top Right", "Bottom Right", "Bottom Left"}
	for i, c := range s.Corners() {
		fmt.Fprintf(&content, "• %s: (%g, %g)\n", names[i], c.X, c.Y)
	}
	fmt.Fprintf(&content, "• Brightness: %g%%\n", s.Brightness)
	fmt.Fprintf(&content, "• Contrast: %g%%\n", s.Contrast)
	fmt.Fprintf(&content, "• Saturation: %g%% %s\n", s.Saturation, dimStyle.Render("(not applied)"))
	fmt.Fprintf(&content, "• Rotation: %g°", s.Rotation)
	return content.String()
}

func renderSessions(sessions []stream.SessionInfo, now time.Time) string {
	if len(sessions) == 0 {
		return "Stream Sessions:\n" + dimStyle.Render("No viewers connected")
	}
	sessions = slices.Clone(sessions)
	slices.SortFunc(sessions, func(a, b stream.SessionInfo) int {
		return a.Started.Compare(b.Started)
	})

	var content strings.Builder
	fmt.Fprintf(&content, "Stream Sessions (%d):\n", len(sessions))
	for _, s := range sessions {
		fmt.Fprintf(&content, "• %s %-9s %-21s sent=%d skipped=%d up=%s\n",
			s.ID[:min(8, len(s.ID))], s.Transport, s.Remote, s.Sent, s.Skipped,
			now.Sub(s.Started).Truncate(time.Second))
	}
	return strings.TrimSuffix(content.String(), "\n")
}

func (m Model) renderServer() string {
	status := warnStyle.Render("Stopped")
	if m.snap.running {
		status = okStyle.Render("Running")
	}
	return fmt.Sprintf("Web Server Status:\n"+
		"• Status: %s\n"+
		"• Address: %s\n"+
		"• Press 's' to start/stop server",
		status, m.snap.addr)
}
