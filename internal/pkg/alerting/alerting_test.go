package alerting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
)

func TestNewAlerter(t *testing.T) {
	logger := logging.NewNopLogger()

	a, err := NewAlerter(DefaultConfig(), logger)
	require.NoError(t, err)
	assert.IsType(t, &NopAlerter{}, a, "по умолчанию alerting отключён")

	cfg := DefaultConfig()
	cfg.Enabled = true
	a, err = NewAlerter(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &NopAlerter{}, a, "без webhook канала NopAlerter")

	cfg.Webhook = webhookConfig("https://hooks.example.com/alert")
	a, err = NewAlerter(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &WebhookAlerter{}, a)

	cfg.Webhook.URLs = nil
	_, err = NewAlerter(cfg, logger)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	assert.NoError(t, NewNopAlerter().Send(context.Background(), Alert{}))
}

func TestNewAlerter_NegativeWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.RateLimitWindow = -time.Second

	_, err := NewAlerter(cfg, logging.NewNopLogger())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRateLimiter_Window(t *testing.T) {
	r := NewRateLimiter(50 * time.Millisecond)

	assert.True(t, r.Allow("A"))
	assert.False(t, r.Allow("A"))
	assert.True(t, r.Allow("B"))

	assert.Eventually(t, func() bool { return r.Allow("A") }, time.Second, 10*time.Millisecond,
		"после окончания окна алерт снова разрешён")

	r.Reset("B")
	assert.True(t, r.Allow("B"))
}

func TestRateLimiter_Concurrent(t *testing.T) {
	r := NewRateLimiter(time.Hour)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Allow("SAME") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, allowed)
}
