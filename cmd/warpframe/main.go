// cmd/warpframe/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AlverezYari/warpframe/internal/config"
	"github.com/AlverezYari/warpframe/internal/events"
	"github.com/AlverezYari/warpframe/internal/frameslot"
	"github.com/AlverezYari/warpframe/internal/logging"
	"github.com/AlverezYari/warpframe/internal/server"
	"github.com/AlverezYari/warpframe/internal/settings"
	"github.com/AlverezYari/warpframe/internal/source"
	"github.com/AlverezYari/warpframe/internal/stream"
	"github.com/AlverezYari/warpframe/internal/transform"
	"github.com/AlverezYari/warpframe/internal/tui"
	"github.com/AlverezYari/warpframe/pkg/video"
)

func main() {
	defaultPath, err := config.DefaultPath()
	if err != nil {
		fmt.Printf("Error getting user config directory: %v\n", err)
		os.Exit(1)
	}

	configPath := flag.String("config", defaultPath, "path to the YAML config file")
	useTUI := flag.Bool("tui", false, "run the terminal monitor")
	initConfig := flag.Bool("init-config", false, "write the default config to -config and exit")
	flag.Parse()

	if *initConfig {
		if err := config.Save(*configPath, config.Default()); err != nil {
			fmt.Printf("Error writing config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default config to %s\n", *configPath)
		return
	}

	if err := run(*configPath, *useTUI); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, useTUI bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logs := tui.NewLogBuffer()
	logOpts := logging.Options{File: cfg.Log.File, Stderr: !useTUI, Level: cfg.Log.Level}
	if useTUI {
		logOpts.Callback = logs.Add
	}
	logger, closeLog, err := logging.New(logOpts)
	if err != nil {
		return err
	}
	defer closeLog()

	file := settings.NewFile(cfg.SettingsPath)
	initial, err := file.Load(settings.Default(cfg.Video.DefaultSource))
	if err != nil {
		return fmt.Errorf("error loading settings: %w", err)
	}

	opener := video.NewFileOpener(cfg.Video.Dir)
	if err := probe(opener, initial.VideoSource); err != nil {
		logger.Error("failed to open initial video source", "source", initial.VideoSource, "dir", cfg.Video.Dir, "error", err)
		return err
	}

	emitter, err := events.Connect(cfg.MQTT, logger)
	if err != nil {
		// Events are optional; the pipeline runs without a broker.
		logger.Warn("event emitter disabled", "error", err)
	}
	defer emitter.Close()

	store := settings.NewStore(initial, file)
	var notifier source.Notifier
	if emitter != nil {
		store.Observe(emitter.SettingsReplaced)
		notifier = emitter
	}

	slot := frameslot.New()
	loop := source.New(opener, store, slot, source.Config{
		FPS:        cfg.Video.FPS,
		RetryDelay: cfg.Video.RetryDelay,
	}, logger, notifier)

	streamer := stream.NewStreamer(slot, store, transform.NewRenderer(cfg.Video.JPEGQuality), stream.Config{
		Interval: time.Duration(float64(time.Second) / cfg.Video.FPS),
	}, logger)

	srv := server.New(server.Options{
		Addr:           cfg.Addr(),
		VideoDir:       cfg.Video.Dir,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, store, streamer, loop, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loop.Start(ctx); err != nil {
		return err
	}
	defer loop.Stop()

	if err := srv.Start(); err != nil {
		return err
	}
	defer func() {
		if srv.IsRunning() {
			srv.Stop()
		}
	}()

	logger.Info("warpframe running", "addr", srv.Addr(), "source", initial.VideoSource, "tui", useTUI)

	if useTUI {
		return runTUI(ctx, tui.Deps{
			Loop:     loop,
			Settings: store,
			Sessions: streamer.Registry(),
			Server:   srv,
			Logs:     logs,
		})
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// probe checks that the initial source can be opened before anything starts.
func probe(opener video.Opener, name string) error {
	capture, err := opener.Open(name)
	if err != nil {
		return err
	}
	return capture.Close()
}

func runTUI(ctx context.Context, deps tui.Deps) error {
	p := tea.NewProgram(
		tui.New(deps),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
