package mqtt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/verdantlabs/pestguard-core/internal/infrastructure/config"
)

func testMQTTConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "pestguard-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
		},
	}
}

// ─── Topics ─────────────────────────────────────────────────────────────────

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"detection", topics.Detection(), "pestguard/detection"},
		{"system status", topics.SystemStatus(), "pestguard/system/status"},
		{"sensor state", topics.SensorState("temp_1"), "pestguard/sensor/temp_1/state"},
		{"all sensor states", topics.AllSensorStates(), "pestguard/sensor/+/state"},
		{"actuator state", topics.ActuatorState(3), "pestguard/actuator/3/state"},
		{"action executed", topics.ActionExecuted(), "pestguard/action/executed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, tt.got)
			}
		})
	}
}

// ─── Options ────────────────────────────────────────────────────────────────

func TestBuildClientOptions(t *testing.T) {
	cfg := testMQTTConfig()
	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("expected 1 broker, got %d", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://localhost:1883" {
		t.Errorf("expected tcp://localhost:1883, got %q", got)
	}
	if opts.ClientID != "pestguard-test" {
		t.Errorf("expected client id pestguard-test, got %q", opts.ClientID)
	}
	if !opts.AutoReconnect {
		t.Error("auto-reconnect not enabled")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testMQTTConfig()
	cfg.Broker.TLS = true
	opts := buildClientOptions(cfg)

	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("expected ssl scheme with TLS enabled, got %q", got)
	}
	if opts.TLSConfig == nil {
		t.Error("TLS config not set")
	}
}

func TestBuildClientOptions_Credentials(t *testing.T) {
	cfg := testMQTTConfig()
	cfg.Auth.Username = "rig"
	cfg.Auth.Password = "secret"
	opts := buildClientOptions(cfg)

	if opts.Username != "rig" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
}

// ─── Status payloads ────────────────────────────────────────────────────────

func TestStatusPayloads(t *testing.T) {
	var online map[string]string
	if err := json.Unmarshal([]byte(buildOnlinePayload("rig-1")), &online); err != nil {
		t.Fatalf("online payload not valid JSON: %v", err)
	}
	if online["status"] != "online" || online["client_id"] != "rig-1" {
		t.Errorf("unexpected online payload: %v", online)
	}

	var offline map[string]string
	if err := json.Unmarshal([]byte(buildOfflinePayload("rig-1")), &offline); err != nil {
		t.Fatalf("offline payload not valid JSON: %v", err)
	}
	if offline["status"] != "offline" || offline["reason"] != "graceful_shutdown" {
		t.Errorf("unexpected offline payload: %v", offline)
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testMQTTConfig())
	configureLWT(opts, "rig-1")

	if !opts.WillEnabled {
		t.Fatal("will not enabled")
	}
	if opts.WillTopic != "pestguard/system/status" {
		t.Errorf("unexpected will topic %q", opts.WillTopic)
	}
	if !strings.Contains(string(opts.WillPayload), "unexpected_disconnect") {
		t.Errorf("will payload missing crash reason: %s", opts.WillPayload)
	}
	if !opts.WillRetained {
		t.Error("will must be retained")
	}
}

// ─── Validation (no broker required) ────────────────────────────────────────

func TestPublish_Validation(t *testing.T) {
	c := &Client{cfg: testMQTTConfig(), subscriptions: make(map[string]subscription)}

	if err := c.Publish("", []byte("x"), 1, false); err != ErrInvalidTopic {
		t.Errorf("empty topic: expected ErrInvalidTopic, got %v", err)
	}
	if err := c.Publish("pestguard/detection", []byte("x"), 3, false); err != ErrInvalidQoS {
		t.Errorf("bad qos: expected ErrInvalidQoS, got %v", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := &Client{cfg: testMQTTConfig(), subscriptions: make(map[string]subscription)}

	if err := c.Subscribe("", 1, func(string, []byte) error { return nil }); err != ErrInvalidTopic {
		t.Errorf("empty topic: expected ErrInvalidTopic, got %v", err)
	}
	if err := c.Subscribe("pestguard/detection", 1, nil); err == nil {
		t.Error("nil handler: expected error")
	}
}
