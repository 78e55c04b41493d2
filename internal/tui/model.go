// internal/tui/model.go
package tui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AlverezYari/warpframe/internal/settings"
	"github.com/AlverezYari/warpframe/internal/source"
	"github.com/AlverezYari/warpframe/internal/stream"
)

type tabType int

const (
	pipelineTab tabType = iota
	settingsTab
	sessionsTab
	serverTab
	logsTab
)

type tab struct {
	title string
	id    tabType
}

// Logging Setup

type Verbosity int

const (
	VerbosityError Verbosity = iota
	VerbosityInfo
	VerbosityDebug
)

func (v Verbosity) String() string {
	switch v {
	case VerbosityError:
		return "error"
	case VerbosityDebug:
		return "debug"
	default:
		return "info"
	}
}

const maxLogLines = 1000

// LogBuffer keeps the most recent log lines. Add is safe to call from any
// goroutine and is meant to be used as the logging callback.
type LogBuffer struct {
	mu    sync.Mutex
	lines []logLine
}

type logLine struct {
	level string
	text  string
}

func NewLogBuffer() *LogBuffer {
	return &LogBuffer{}
}

func (b *LogBuffer) Add(level, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, logLine{level: level, text: fmt.Sprintf("[%s] %s", level, message)})

	// Cap log buffer size
	if len(b.lines) > maxLogLines {
		b.lines = b.lines[len(b.lines)-maxLogLines:]
	}
}

// Render joins the buffered lines visible at verbosity v.
func (b *LogBuffer) Render(v Verbosity) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var sb strings.Builder
	for _, l := range b.lines {
		if !v.shows(l.level) {
			continue
		}
		sb.WriteString(l.text)
		sb.WriteByte('\n')
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func (v Verbosity) shows(level string) bool {
	switch v {
	case VerbosityDebug:
		return true
	case VerbosityInfo:
		return level != "DEBUG"
	case VerbosityError:
		return level == "ERROR"
	default:
		return false
	}
}

// Sources the monitor reads from. The concrete types live in the source,
// settings, stream and server packages.
type (
	LoopStatus interface {
		Stats() source.Stats
	}
	SettingsReader interface {
		Read() settings.Settings
	}
	SessionLister interface {
		List() []stream.SessionInfo
	}
	ServerControl interface {
		Start() error
		Stop() error
		IsRunning() bool
		Addr() string
	}
)

// Deps wires the monitor to the running pipeline.
type Deps struct {
	Loop     LoopStatus
	Settings SettingsReader
	Sessions SessionLister
	Server   ServerControl
	Logs     *LogBuffer
}

// Msg types
type tickMsg time.Time

// snapshot is everything a view renders, refreshed on every tick.
type snapshot struct {
	stats    source.Stats
	settings settings.Settings
	sessions []stream.SessionInfo
	running  bool
	addr     string
}

// Model holds our application state
type Model struct {
	deps        Deps
	width       int
	height      int
	status      string
	startTime   time.Time
	currentTime time.Time
	activeTab   tabType
	tabs        []tab
	snap        snapshot
	logViewport viewport.Model
	verbosity   Verbosity
}

// New returns a Model with initial state
func New(deps Deps) Model {
	if deps.Logs == nil {
		deps.Logs = NewLogBuffer()
	}
	now := time.Now()
	m := Model{
		deps:        deps,
		status:      "Running",
		startTime:   now,
		currentTime: now,
		activeTab:   pipelineTab,
		tabs: []tab{
			{title: "Pipeline", id: pipelineTab},
			{title: "Settings", id: settingsTab},
			{title: "Sessions", id: sessionsTab},
			{title: "Server", id: serverTab},
			{title: "Logs", id: logsTab},
		},
		logViewport: func() viewport.Model {
			vp := viewport.New(0, 10)
			vp.MouseWheelEnabled = true
			vp.YPosition = 0
			return vp
		}(),
		verbosity: VerbosityInfo,
	}
	m.refresh()
	return m
}

// Init runs any initial IO
func (m Model) Init() tea.Cmd {
	return timeTickCmd()
}

// refresh polls the pipeline and reloads the log pane.
func (m *Model) refresh() {
	m.snap = snapshot{
		stats:    m.deps.Loop.Stats(),
		settings: m.deps.Settings.Read(),
		sessions: m.deps.Sessions.List(),
		running:  m.deps.Server.IsRunning(),
		addr:     m.deps.Server.Addr(),
	}

	atBottom := m.logViewport.AtBottom()
	m.logViewport.SetContent(m.deps.Logs.Render(m.verbosity))
	if atBottom {
		m.logViewport.GotoBottom()
	}
}

// Helper command for time updates
func timeTickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
