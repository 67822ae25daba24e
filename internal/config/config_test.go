package config

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-service/internal/events"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, "sync", cfg.Analytics.Mode)
	assert.Equal(t, 10*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, 0.5, cfg.Analytics.WeakConcept.Threshold)
	assert.Equal(t, 10, cfg.Analytics.WeakConcept.TopN)
	assert.Equal(t, 2, cfg.Analytics.WeakConcept.MinSamples)
	assert.Equal(t, 0.7, cfg.Grading.ShortAnswerThreshold)
	assert.False(t, cfg.Grading.MultipleChoicePartialCredit)
	assert.False(t, cfg.Auth.Enabled())
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("ANALYTICS_MODE", "ASYNC")
	t.Setenv("ANALYTICS_CACHE_TTL", "90s")
	t.Setenv("WEAK_CONCEPT_TOP_N", "3")
	t.Setenv("GRADING_MATCHING_PARTIAL_CREDIT", "true")
	t.Setenv("GRADING_SHORT_ANSWER_THRESHOLD", "0.6")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, "async", cfg.Analytics.Mode)
	assert.Equal(t, 90*time.Second, cfg.Analytics.CacheTTL)
	assert.Equal(t, 3, cfg.Analytics.WeakConcept.TopN)
	assert.True(t, cfg.Grading.MatchingPartialCredit)
	assert.Equal(t, 0.6, cfg.Grading.ShortAnswerThreshold)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.GetKafkaBrokers())
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"storage driver", map[string]string{"STORAGE_DRIVER": "sqlite"}},
		{"analytics mode", map[string]string{"ANALYTICS_MODE": "batch"}},
		{"async without events", map[string]string{"ANALYTICS_MODE": "async", "EVENTS_ENABLED": "false"}},
		{"short answer threshold", map[string]string{"GRADING_SHORT_ANSWER_THRESHOLD": "1.5"}},
		{"weak concept top n", map[string]string{"WEAK_CONCEPT_TOP_N": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			_, err := LoadConfig()

			assert.Error(t, err)
		})
	}
}

func TestEventConfig_CreateEventTransport(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		config         EventConfig
		wantMock       bool
		wantSubscriber bool
	}{
		{"disabled", EventConfig{Enabled: false, Publisher: PublisherKafka}, true, false},
		{"mock", EventConfig{Enabled: true, Publisher: PublisherMock}, true, false},
		{"unknown falls back to mock", EventConfig{Enabled: true, Publisher: "nats"}, true, false},
		{"gochannel", EventConfig{Enabled: true, Publisher: PublisherGoChannel, Topic: "quiz.attempts"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher, subscriber, err := tt.config.CreateEventTransport(logger)
			require.NoError(t, err)
			defer publisher.Close()

			_, isMock := publisher.(*events.MockEventPublisher)
			assert.Equal(t, tt.wantMock, isMock)
			assert.Equal(t, tt.wantSubscriber, subscriber != nil)
		})
	}
}
