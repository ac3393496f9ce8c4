package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dewansh/dewhome-core/internal/automation"
	"github.com/dewansh/dewhome-core/internal/device"
	"github.com/dewansh/dewhome-core/internal/infrastructure/mqtt"
)

const (
	commandTimeout   = 5 * time.Second
	defaultQueueSize = 256
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("bridge: already started")

// MQTTClient is the subset of the MQTT client the bridge needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Telemetry records time-series points. Writes must not block.
type Telemetry interface {
	WriteDeviceState(deviceID int64, high bool, pin int, at time.Time)
	WriteActionExecution(actionID int64, status string, durationMS int64, stepsFailed int, at time.Time)
}

// Actuator applies device commands.
type Actuator interface {
	Apply(ctx context.Context, id int64, cmd device.Command, source string) (*device.Device, error)
}

// DeviceLister lists the current devices for the initial state publish.
type DeviceLister interface {
	ListDevices() []device.Device
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Bridge. MQTT and Telemetry are each optional.
type Options struct {
	MQTT      MQTTClient
	Telemetry Telemetry
	Devices   Actuator
	Lister    DeviceLister
	QoS       byte
	QueueSize int
}

type outbound struct {
	topic    string
	payload  []byte
	retained bool
}

// Bridge implements device.Observer and automation.ExecutionObserver.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt      MQTTClient
	telemetry Telemetry
	devices   Actuator
	lister    DeviceLister
	qos       byte
	topics    mqtt.Topics

	queue   chan outbound
	dropped int64

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  bool
	stopOnce sync.Once

	logger Logger
}

// New creates a bridge. Call Start before events are published.
func New(opts Options) *Bridge {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		mqtt:      opts.MQTT,
		telemetry: opts.Telemetry,
		devices:   opts.Devices,
		lister:    opts.Lister,
		qos:       opts.QoS,
		queue:     make(chan outbound, size),
		ctx:       ctx,
		cancel:    cancel,
		logger:    noopLogger{},
	}
}

// SetLogger sets the bridge logger.
func (b *Bridge) SetLogger(logger Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// Start launches the publish worker, subscribes to device commands and
// publishes the current state of every device.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	b.started = true
	b.mu.Unlock()

	b.wg.Add(1)
	go b.publishLoop()

	if b.mqtt == nil {
		return nil
	}

	if b.devices != nil {
		if err := b.mqtt.Subscribe(b.topics.AllDeviceCommands(), b.qos, b.handleCommand); err != nil {
			return fmt.Errorf("subscribing to device commands: %w", err)
		}
	}

	if b.lister != nil {
		now := time.Now()
		for _, d := range b.lister.ListDevices() {
			if err := ctx.Err(); err != nil {
				return err
			}
			b.enqueueState(device.StateChange{Device: d, Source: device.SourceStartup, At: now})
		}
	}

	b.logger.Info("bridge started", "qos", b.qos)
	return nil
}

// Stop drains queued messages and stops the worker.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.cancel()
		b.mu.Lock()
		if b.started {
			close(b.queue)
		}
		b.mu.Unlock()
		b.wg.Wait()
		b.logger.Info("bridge stopped")
	})
}

// DeviceStateChanged implements device.Observer.
func (b *Bridge) DeviceStateChanged(_ context.Context, change device.StateChange) {
	if b.telemetry != nil {
		b.telemetry.WriteDeviceState(change.Device.ID, change.Device.State.IsHigh(), change.Device.PinNumber, change.At)
	}
	b.enqueueState(change)
}

// ActionExecuted implements automation.ExecutionObserver.
func (b *Bridge) ActionExecuted(_ context.Context, a *automation.Action, exec *automation.Execution) {
	if exec == nil {
		return
	}
	msg := newActionEventMessage(a, exec)

	if b.telemetry != nil {
		at := exec.StartedAt
		if exec.CompletedAt != nil {
			at = *exec.CompletedAt
		}
		b.telemetry.WriteActionExecution(exec.ActionID, msg.Status, msg.DurationMS, exec.StepsFailed, at)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("marshal action event", "action_id", exec.ActionID, "error", err)
		return
	}
	b.enqueue(outbound{topic: b.topics.ActionEvent(exec.ActionID), payload: payload})
}

// Dropped returns how many messages were discarded because the queue was full.
func (b *Bridge) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *Bridge) enqueueState(change device.StateChange) {
	payload, err := json.Marshal(newDeviceStateMessage(change))
	if err != nil {
		b.logger.Error("marshal device state", "device_id", change.Device.ID, "error", err)
		return
	}
	b.enqueue(outbound{topic: b.topics.DeviceState(change.Device.ID), payload: payload, retained: true})
}

func (b *Bridge) enqueue(msg outbound) {
	if b.mqtt == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started || b.ctx.Err() != nil {
		return
	}
	select {
	case b.queue <- msg:
	default:
		b.dropped++
		b.logger.Warn("mqtt publish queue full, dropping message", "topic", msg.topic)
	}
}

func (b *Bridge) publishLoop() {
	defer b.wg.Done()
	for msg := range b.queue {
		if b.mqtt == nil || !b.mqtt.IsConnected() {
			b.logger.Debug("mqtt not connected, skipping publish", "topic", msg.topic)
			continue
		}
		if err := b.mqtt.Publish(msg.topic, msg.payload, b.qos, msg.retained); err != nil {
			b.logger.Warn("mqtt publish failed", "topic", msg.topic, "error", err)
		}
	}
}

// handleCommand applies a device command received over MQTT. Errors are
// returned to the MQTT client, which logs them.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	id, err := mqtt.ParseDeviceCommand(topic)
	if err != nil {
		return err
	}

	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("device %d: invalid command payload: %w", id, err)
	}
	cmd, err := device.ParseCommand(msg.Action)
	if err != nil {
		return fmt.Errorf("device %d: %w", id, err)
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	d, err := b.devices.Apply(ctx, id, cmd, device.SourceMQTT)
	if err != nil {
		return fmt.Errorf("device %d: %w", id, err)
	}
	b.logger.Debug("mqtt command applied", "device_id", id, "action", cmd, "state", d.State)
	return nil
}
