package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dewansh/dewhome-core/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "dewhome-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     30,
		},
	}
}

func TestTopics(t *testing.T) {
	var topics Topics
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"device state", topics.DeviceState(7), "dewhome/state/device/7"},
		{"device command", topics.DeviceCommand(12), "dewhome/command/device/12"},
		{"all commands", topics.AllDeviceCommands(), "dewhome/command/device/+"},
		{"action event", topics.ActionEvent(3), "dewhome/event/action/3"},
		{"system status", topics.SystemStatus(), "dewhome/system/status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseDeviceCommand(t *testing.T) {
	tests := []struct {
		topic   string
		want    int64
		wantErr bool
	}{
		{topic: "dewhome/command/device/1", want: 1},
		{topic: "dewhome/command/device/42", want: 42},
		{topic: "dewhome/command/device/", wantErr: true},
		{topic: "dewhome/command/device/0", wantErr: true},
		{topic: "dewhome/command/device/-3", wantErr: true},
		{topic: "dewhome/command/device/abc", wantErr: true},
		{topic: "dewhome/command/device/1/extra", wantErr: true},
		{topic: "dewhome/state/device/1", wantErr: true},
		{topic: "other/command/device/1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, err := ParseDeviceCommand(tt.topic)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTopic) {
					t.Fatalf("ParseDeviceCommand() error = %v, want ErrInvalidTopic", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDeviceCommand() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseDeviceCommand() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "core", Password: "pw"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "dewhome-test" {
		t.Errorf("ClientID = %q, want dewhome-test", opts.ClientID)
	}
	if opts.Username != "core" || opts.Password != "pw" {
		t.Errorf("credentials = %q/%q, want core/pw", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if opts.MaxReconnectInterval != 30*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 30s", opts.MaxReconnectInterval)
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers[0] = %v, want ssl://127.0.0.1:8883", opts.Servers[0])
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig = nil, want TLS configured")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "dewhome-test")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false, want true")
	}
	if opts.WillTopic != "dewhome/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}

	var msg statusMessage
	if err := json.Unmarshal(opts.WillPayload, &msg); err != nil {
		t.Fatalf("will payload: %v", err)
	}
	if msg.Status != "offline" || msg.Reason != "unexpected_disconnect" || msg.ClientID != "dewhome-test" {
		t.Errorf("will payload = %+v", msg)
	}
}

func TestDisconnectedClient(t *testing.T) {
	c := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}

	if c.IsConnected() {
		t.Error("IsConnected() = true for client without connection")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
	if err := c.PublishEvent("dewhome/test", []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishEvent() = %v, want ErrNotConnected", err)
	}
	noop := func(string, []byte) error { return nil }
	if err := c.Subscribe("dewhome/#", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() = %v, want ErrNotConnected", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}

	if err := c.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("dewhome/x", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("qos 3: %v, want ErrInvalidQoS", err)
	}
	big := make([]byte, maxPayloadSize+1)
	if err := c.Publish("dewhome/x", big, 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("oversized payload: %v, want ErrPublishFailed", err)
	}
	if err := c.Subscribe("dewhome/x", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler: %v, want ErrSubscribeFailed", err)
	}
}

func TestHealthCheck_CancelledContext(t *testing.T) {
	c := &Client{cfg: testConfig()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() = %v, want context.Canceled", err)
	}
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu     sync.Mutex
	warns  []string
	errors []string
}

func (l *recordingLogger) Info(string, ...any) {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func TestWrapHandler(t *testing.T) {
	msg := fakeMessage{topic: "dewhome/command/device/3", payload: []byte(`{"action":"on"}`)}

	t.Run("without logger", func(t *testing.T) {
		c := &Client{cfg: testConfig()}
		c.wrapHandler(func(string, []byte) error { panic("boom") })(nil, msg)
	})

	t.Run("handler error and panic are logged", func(t *testing.T) {
		c := &Client{cfg: testConfig()}
		log := &recordingLogger{}
		c.SetLogger(log)

		c.wrapHandler(func(string, []byte) error { return errors.New("unknown device") })(nil, msg)
		c.wrapHandler(func(string, []byte) error { panic("boom") })(nil, msg)

		if len(log.warns) != 1 {
			t.Errorf("warnings = %v, want one", log.warns)
		}
		if len(log.errors) != 1 {
			t.Errorf("errors = %v, want one", log.errors)
		}
	})
}

var _ pahomqtt.Message = fakeMessage{}
