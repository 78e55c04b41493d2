// Package events publishes pipeline events (settings replaced, source opened)
// to an MQTT broker.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/AlverezYari/warpframe/internal/config"
	"github.com/AlverezYari/warpframe/internal/settings"
)

const (
	publishTimeout = 2 * time.Second
	queueSize      = 64
)

// publisher is the subset of mqtt.Client the emitter needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// SettingsEvent is published after every settings replacement.
type SettingsEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	SourceChanged bool              `json:"sourceChanged"`
	Settings      settings.Settings `json:"settings"`
}

// SourceEvent is published whenever the decode loop opens a source.
type SourceEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
}

type outbound struct {
	topic    string
	retained bool
	payload  []byte
}

// Emitter publishes events. A nil *Emitter is valid and drops everything.
// Events are queued and sent in order by one goroutine, so callers never wait
// on the broker.
type Emitter struct {
	client publisher
	prefix string
	qos    byte
	logger *slog.Logger
	queue  chan outbound
	done   chan struct{}

	mu        sync.Mutex
	closed    bool
	published uint64
	errors    uint64
}

func newEmitter(client publisher, cfg config.MQTTConfig, logger *slog.Logger) *Emitter {
	e := &Emitter{
		client: client,
		prefix: cfg.TopicPrefix,
		qos:    cfg.QoS,
		logger: logger.With("component", "events"),
		queue:  make(chan outbound, queueSize),
		done:   make(chan struct{}),
	}
	go e.run()
	return e
}

// Connect dials the broker configured in cfg. It returns nil, nil when no
// broker is configured.
func Connect(cfg config.MQTTConfig, logger *slog.Logger) (*Emitter, error) {
	if cfg.Broker == "" {
		return nil, nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		logger.Info("mqtt connection established", "broker", cfg.Broker, "client_id", cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", "broker", cfg.Broker, "error", err)
	}

	client := mqtt.NewClient(opts)
	logger.Info("connecting to mqtt broker", "broker", cfg.Broker)

	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	return newEmitter(client, cfg, logger), nil
}

// Topic returns the full topic for an event name.
func (e *Emitter) Topic(name string) string {
	if e.prefix == "" {
		return name
	}
	return e.prefix + "/" + name
}

// SettingsReplaced matches settings.Observer.
func (e *Emitter) SettingsReplaced(old, new settings.Settings) {
	if e == nil {
		return
	}
	e.publish("settings", SettingsEvent{
		Timestamp:     time.Now(),
		SourceChanged: old.VideoSource != new.VideoSource,
		Settings:      new,
	}, true)
}

// SourceOpened implements source.Notifier.
func (e *Emitter) SourceOpened(name string, width, height int) {
	if e == nil {
		return
	}
	e.publish("source", SourceEvent{
		Timestamp: time.Now(),
		Source:    name,
		Width:     width,
		Height:    height,
	}, true)
}

// Stats returns how many events were published and how many failed.
func (e *Emitter) Stats() (published, failed uint64) {
	if e == nil {
		return 0, 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.published, e.errors
}

// Close stops the sender, waiting briefly for queued events, and disconnects
// from the broker.
func (e *Emitter) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	select {
	case <-e.done:
	case <-time.After(publishTimeout):
		e.logger.Warn("closing with events still queued")
	}
	if c, ok := e.client.(mqtt.Client); ok {
		c.Disconnect(250)
	}
}

// publish queues an event and never blocks. A full queue drops the event.
func (e *Emitter) publish(name string, event any, retained bool) {
	payload, err := json.Marshal(event)
	if err != nil {
		e.logger.Error("failed to marshal event", "event", name, "error", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.queue <- outbound{topic: e.Topic(name), retained: retained, payload: payload}:
	default:
		e.errors++
		e.logger.Warn("event queue full, dropping event", "event", name)
	}
}

func (e *Emitter) run() {
	defer close(e.done)
	for msg := range e.queue {
		token := e.client.Publish(msg.topic, e.qos, msg.retained, msg.payload)
		ok := token.WaitTimeout(publishTimeout)

		e.mu.Lock()
		if !ok || token.Error() != nil {
			e.errors++
			e.logger.Warn("failed to publish event", "topic", msg.topic, "error", token.Error(), "timeout", !ok)
		} else {
			e.published++
		}
		e.mu.Unlock()
	}
}
