package bus

import "time"

// ForwarderConfig is the configuration for the Kafka event forwarder.
type ForwarderConfig struct {
	// Brokers is the Kafka cluster bootstrap list (required).
	Brokers []string `mapstructure:"brokers"`

	// ClientID identifies this forwarder in broker logs and metrics.
	// default: "datakit-bus"
	ClientID string `mapstructure:"client_id"`

	// TopicPrefix is prepended to every forwarded topic. Local topic
	// separators (":") are rewritten to "." to form legal Kafka topic
	// names, so "cache:put" becomes "<prefix>cache.put".
	// default: "datakit."
	TopicPrefix string `mapstructure:"topic_prefix"`

	// FlushTimeout bounds the final delivery flush during Close.
	// default: 10s
	FlushTimeout time.Duration `mapstructure:"flush_timeout"`
}

// DefaultForwarderConfig returns the default forwarder configuration.
// Brokers has no default and must be set explicitly.
func DefaultForwarderConfig() *ForwarderConfig {
	return &ForwarderConfig{
		ClientID:     "datakit-bus",
		TopicPrefix:  "datakit.",
		FlushTimeout: 10 * time.Second,
	}
}

// MergeDefaults returns a copy of c with zero fields filled from
// DefaultForwarderConfig.
func (c *ForwarderConfig) MergeDefaults() *ForwarderConfig {
	out := *c
	defaults := DefaultForwarderConfig()
	if out.ClientID == "" {
		out.ClientID = defaults.ClientID
	}
	if out.TopicPrefix == "" {
		out.TopicPrefix = defaults.TopicPrefix
	}
	if out.FlushTimeout == 0 {
		out.FlushTimeout = defaults.FlushTimeout
	}
	return &out
}

// Validate checks that the configuration is usable.
func (c *ForwarderConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrInvalidConfig("brokers are required")
	}
	if c.FlushTimeout < 0 {
		return ErrInvalidConfig("flush_timeout cannot be negative")
	}
	return nil
}
