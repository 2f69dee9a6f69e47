// Package agent – mqtt.go implements the broker-based LLM transport.
// Each request opens its own connection, subscribes a reply topic
// derived from a fresh correlation ID, publishes the request, and
// waits for the matching reply under a deadline. One connection per
// request keeps the single-threaded runtime free of broker state.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// requestIDToken is the placeholder in the response topic template
// replaced with the request's correlation ID.
const requestIDToken = "{request_id}"

// connectTimeout bounds the initial broker handshake.
const connectTimeout = 10 * time.Second

// ErrMQTTTimeout is returned when no matching reply arrives in time.
var ErrMQTTTimeout = errors.New("no broker reply within deadline")

// MQTTTransport delivers chat requests over an MQTT broker.
type MQTTTransport struct {
	cfg    MQTTConfig
	newID  func() string
	logger *slog.Logger
}

// NewMQTTTransport creates a broker transport.
func NewMQTTTransport(cfg MQTTConfig, logger *slog.Logger) *MQTTTransport {
	return &MQTTTransport{
		cfg:    cfg,
		newID:  uuid.NewString,
		logger: logger.With("component", "llm_mqtt"),
	}
}

// Complete publishes the request and waits for the correlated reply.
func (t *MQTTTransport) Complete(ctx context.Context, req ChatRequest) (json.RawMessage, error) {
	requestID := t.newID()
	req.ID = requestID
	replyTopic := strings.ReplaceAll(t.cfg.ResponseTopicTemplate, requestIDToken, requestID)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling broker request: %w", err)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", t.cfg.Broker, t.cfg.Port)).
		SetClientID("pocketclaw_" + requestID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(false)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(connectTimeout) || token.Error() != nil {
		return nil, fmt.Errorf("connecting to broker: %w", tokenErr(token))
	}
	defer client.Disconnect(250)

	// Buffered so a late reply can't leak the handler goroutine.
	replies := make(chan json.RawMessage, 1)
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		var probe struct {
			ID string `json:"id"`
		}
		body := msg.Payload()
		if err := json.Unmarshal(body, &probe); err != nil {
			t.logger.Warn("undecodable broker reply", "topic", msg.Topic(), "error", err)
			return
		}
		if probe.ID != requestID {
			return
		}
		select {
		case replies <- json.RawMessage(body):
		default:
		}
	}

	if token := client.Subscribe(replyTopic, 0, handler); !token.WaitTimeout(connectTimeout) || token.Error() != nil {
		return nil, fmt.Errorf("subscribing %s: %w", replyTopic, tokenErr(token))
	}
	if token := client.Publish(t.cfg.RequestTopic, 0, false, payload); !token.WaitTimeout(connectTimeout) || token.Error() != nil {
		return nil, fmt.Errorf("publishing request: %w", tokenErr(token))
	}

	t.logger.Debug("broker request published", "request_id", requestID, "reply_topic", replyTopic)

	select {
	case raw := <-replies:
		return raw, nil
	case <-time.After(t.cfg.Timeout()):
		return nil, ErrMQTTTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// tokenErr extracts the error from a token, covering the WaitTimeout
// case where the operation never completed.
func tokenErr(token mqtt.Token) error {
	if err := token.Error(); err != nil {
		return err
	}
	return errors.New("operation timed out")
}

// NewTransport builds the transport stack from config: plain HTTP,
// plain MQTT, or MQTT with HTTP fallback.
func NewTransport(cfg *Config, apiKey string, logger *slog.Logger) Transport {
	httpTransport := NewHTTPTransport(cfg.LLM.HTTP, apiKey, logger)
	if strings.ToLower(cfg.LLM.Mode) != "mqtt" {
		return httpTransport
	}

	mqttTransport := NewMQTTTransport(cfg.LLM.MQTT, logger)
	if cfg.LLM.FallbackToHTTP {
		return NewFallbackTransport(mqttTransport, httpTransport, logger)
	}
	return mqttTransport
}
