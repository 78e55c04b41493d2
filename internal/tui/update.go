// internal/tui/update.go
package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// chromeHeight is the number of lines used by the header, tabs, padding and
// status bar around the active tab.
const chromeHeight = 6

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logViewport.Width = msg.Width
		m.logViewport.Height = max(msg.Height-chromeHeight, 1)

	case tickMsg:
		m.currentTime = time.Time(msg)
		m.refresh()
		return m, timeTickCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "1":
			m.activeTab = pipelineTab
		case "2":
			m.activeTab = settingsTab
		case "3":
			m.activeTab = sessionsTab
		case "4":
			m.activeTab = serverTab
		case "5":
			m.activeTab = logsTab
		case "tab":
			// Cycle through tabs
			m.activeTab = (m.activeTab + 1) % tabType(len(m.tabs))

		case "s":
			if m.activeTab == serverTab {
				m.toggleServer()
				m.refresh()
			}
		case "v":
			if m.activeTab == logsTab {
				m.verbosity = (m.verbosity + 1) % (VerbosityDebug + 1)
				m.status = fmt.Sprintf("Log verbosity: %s", m.verbosity)
				m.refresh()
			}

		default:
			if m.activeTab == logsTab {
				var cmd tea.Cmd
				m.logViewport, cmd = m.logViewport.Update(msg)
				return m, cmd
			}
		}

	case tea.MouseMsg:
		if m.activeTab == logsTab {
			var cmd tea.Cmd
			m.logViewport, cmd = m.logViewport.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *Model) toggleServer() {
	srv := m.deps.Server
	if srv.IsRunning() {
		if err := srv.Stop(); err != nil {
			m.status = fmt.Sprintf("Error stopping server: %v", err)
		} else {
			m.status = "Server stopped"
		}
		return
	}
	if err := srv.Start(); err != nil {
		m.status = fmt.Sprintf("Error starting server: %v", err)
	} else {
		m.status = fmt.Sprintf("Server started on %s", srv.Addr())
	}
}
