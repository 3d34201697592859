package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 4, cfg.Engine.FeedbackWorkers)
	assert.Equal(t, 256, cfg.Engine.FeedbackQueueSize)
	assert.Equal(t, 15*time.Minute, cfg.Engine.CacheTTL)
	assert.Equal(t, 30*time.Minute, cfg.Engine.LearningIdleTTL)
	assert.Equal(t, "enhancement-feedback", cfg.Kafka.Topics.Feedback)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "enhancement-feedback-applied", cfg.Kafka.Topics.Applied)
	assert.Equal(t, []string{"*"}, cfg.Security.CORS.AllowedOrigins)
	assert.False(t, cfg.Security.RateLimit.Enabled)
	assert.Equal(t, time.Minute, cfg.Security.RateLimit.Window)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ENGINE_FEEDBACK_WORKERS", "9")
	t.Setenv("LOGGING_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Engine.FeedbackWorkers)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	valid := Config{Engine: EngineConfig{FeedbackWorkers: 1, FeedbackQueueSize: 1}}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no workers", func(c *Config) { c.Engine.FeedbackWorkers = 0 }},
		{"no queue", func(c *Config) { c.Engine.FeedbackQueueSize = 0 }},
		{"negative top n", func(c *Config) { c.Engine.DefaultTopN = -1 }},
		{"negative idle ttl", func(c *Config) { c.Engine.LearningIdleTTL = -time.Second }},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true }},
		{"rate limit without window", func(c *Config) {
			c.Security.RateLimit = RateLimitConfig{Enabled: true, Requests: 10}
		}},
		{"rate limit without requests", func(c *Config) {
			c.Security.RateLimit = RateLimitConfig{Enabled: true, Window: time.Minute}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
