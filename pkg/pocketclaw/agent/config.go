// Package agent – config.go defines the configuration structures for
// the PocketClaw assistant.
package agent

import "time"

// Config holds all assistant configuration.
type Config struct {
	// Agent configures identity and runtime behavior.
	Agent AgentConfig `yaml:"agent"`

	// User identifies the device owner.
	User UserConfig `yaml:"user"`

	// LLM configures the language-model backend.
	LLM LLMConfig `yaml:"llm"`

	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging"`

	// Onboarding tracks first-run setup state.
	Onboarding OnboardingConfig `yaml:"onboarding"`
}

// LoggingConfig selects log verbosity and output shape.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// AgentConfig holds identity and runtime loop settings.
type AgentConfig struct {
	// Name is the assistant name used in the system prompt.
	Name string `yaml:"name"`

	// DataDir is where the JSON documents and the audit database live.
	DataDir string `yaml:"data_dir"`

	// PollIntervalSeconds is the runtime tick spacing.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`

	// InboxFetchLimit is how many recent SMS the poller inspects per tick.
	InboxFetchLimit int `yaml:"inbox_fetch_limit"`

	// MaintenanceSchedule is a cron expression (or @daily style shorthand)
	// for the housekeeping routine: audit pruning and task cleanup.
	MaintenanceSchedule string `yaml:"maintenance_schedule"`
}

// UserConfig identifies the owner.
type UserConfig struct {
	// PhoneNumber is the owner's number. Inbound messages are matched
	// against it by suffix; final answers are delivered to it.
	PhoneNumber string `yaml:"phone_number"`
}

// LLMConfig selects and configures the model transport.
type LLMConfig struct {
	// Mode is "http" or "mqtt".
	Mode string `yaml:"mode"`

	// FallbackToHTTP retries over HTTP when an MQTT request times out
	// or the broker is unreachable.
	FallbackToHTTP bool `yaml:"fallback_to_http"`

	// HTTP configures the chat-completions endpoint.
	HTTP HTTPConfig `yaml:"http"`

	// MQTT configures the broker transport.
	MQTT MQTTConfig `yaml:"mqtt"`
}

// HTTPConfig is the chat-completions endpoint configuration.
type HTTPConfig struct {
	ServerURL      string `yaml:"server_url"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (c HTTPConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MQTTConfig is the broker transport configuration. Requests are
// published to RequestTopic; each request subscribes its own reply
// topic derived from ResponseTopicTemplate and a correlation ID.
type MQTTConfig struct {
	Broker                string `yaml:"broker"`
	Port                  int    `yaml:"port"`
	TimeoutSeconds        int    `yaml:"timeout_seconds"`
	RequestTopic          string `yaml:"request_topic"`
	ResponseTopicTemplate string `yaml:"response_topic_template"`
}

// Timeout returns the reply wait deadline as a duration.
func (c MQTTConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 45 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// OnboardingConfig tracks whether first-run setup has completed.
type OnboardingConfig struct {
	Completed bool `yaml:"completed"`
}

// DefaultConfig returns the baseline configuration. Loading overlays
// the YAML file on top of these values.
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:                "PocketClaw",
			DataDir:             "data",
			PollIntervalSeconds: 5,
			InboxFetchLimit:     20,
			MaintenanceSchedule: "@daily",
		},
		LLM: LLMConfig{
			Mode:           "http",
			FallbackToHTTP: true,
			HTTP: HTTPConfig{
				ServerURL:      "http://127.0.0.1:8080/v1/chat/completions",
				Model:          "qwen2.5",
				TimeoutSeconds: 30,
			},
			MQTT: MQTTConfig{
				Broker:                "127.0.0.1",
				Port:                  1883,
				TimeoutSeconds:        45,
				RequestTopic:          "inference/request",
				ResponseTopicTemplate: "inference/response/{request_id}",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// PollInterval returns the runtime tick spacing as a duration.
func (c *Config) PollInterval() time.Duration {
	if c.Agent.PollIntervalSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Agent.PollIntervalSeconds) * time.Second
}
