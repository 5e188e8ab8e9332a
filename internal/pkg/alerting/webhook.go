package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
	"github.com/Kargones/ci-telemetry/internal/pkg/urlutil"
)

// Значения WebhookConfig по умолчанию.
const (
	DefaultWebhookTimeout = 10 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryBackoff   = time.Second
)

const (
	maxRetryBackoff = 30 * time.Second
	// maxResponseBodySize ограничивает тело ответа, попадающее в ошибку.
	maxResponseBodySize = 1024
	payloadSource       = "ci-telemetry"
)

// WebhookConfig содержит настройки webhook канала.
type WebhookConfig struct {
	Enabled bool
	URLs    []string
	Headers map[string]string
	Timeout time.Duration

	// MaxRetries — число повторов после первой попытки, только для сетевых ошибок и 5xx.
	MaxRetries int

	// RetryBackoff — пауза перед первым повтором, дальше удваивается до 30s.
	RetryBackoff time.Duration
}

// Validate проверяет URL (только http и https) и заголовки (без управляющих
// символов кроме HTAB).
func (w *WebhookConfig) Validate() error {
	if !w.Enabled {
		return nil
	}
	if len(w.URLs) == 0 {
		return fmt.Errorf("%w: webhook канал включён без URL", ErrInvalidConfig)
	}
	for _, raw := range w.URLs {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("%w: webhook URL %s должен быть http(s) с host", ErrInvalidConfig, urlutil.MaskURL(raw))
		}
	}
	for key, value := range w.Headers {
		if hasControlChars(key) || hasControlChars(value) {
			return fmt.Errorf("%w: заголовок %q содержит управляющие символы", ErrInvalidConfig, key)
		}
	}
	return nil
}

func hasControlChars(s string) bool {
	for _, r := range s {
		if r != '\t' && (r <= 0x1f || r == 0x7f) {
			return true
		}
	}
	return false
}

// HTTPClient — часть http.Client, используемая WebhookAlerter.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookPayload — JSON тело webhook запроса.
type WebhookPayload struct {
	ErrorCode string    `json:"error_code"`
	Message   string    `json:"message"`
	TraceID   string    `json:"trace_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component,omitempty"`
	Backend   string    `json:"backend,omitempty"`
	Severity  Severity  `json:"severity"`
	Source    string    `json:"source"`
	Hostname  string    `json:"hostname,omitempty"`
}

// WebhookAlerter отправляет алерт на каждый URL канала, независимо друг от друга.
type WebhookAlerter struct {
	cfg        WebhookConfig
	limiter    *RateLimiter
	logger     logging.Logger
	httpClient HTTPClient
	hostname   string
	now        func() time.Time
}

// NewWebhookAlerter создаёт WebhookAlerter. При limiter == nil отправляется каждый алерт.
func NewWebhookAlerter(cfg WebhookConfig, limiter *RateLimiter, logger logging.Logger) (*WebhookAlerter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultWebhookTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	host, err := os.Hostname()
	if err != nil {
		host = ""
	}

	return &WebhookAlerter{
		cfg:        cfg,
		limiter:    limiter,
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		hostname:   host,
		now:        time.Now,
	}, nil
}

// SetHTTPClient подменяет HTTP клиент.
func (w *WebhookAlerter) SetHTTPClient(client HTTPClient) {
	w.httpClient = client
}

// Send доставляет алерт. Всегда возвращает nil.
func (w *WebhookAlerter) Send(ctx context.Context, alert Alert) error {
	if w.limiter != nil && !w.limiter.Allow(alert.ErrorCode) {
		w.logger.Debug("алерт подавлен rate limiter", "error_code", alert.ErrorCode)
		return nil
	}

	body, err := json.Marshal(w.payload(alert))
	if err != nil {
		w.logger.Error("не удалось сериализовать алерт", "error", err.Error(), "error_code", alert.ErrorCode)
		return nil
	}

	delivered := 0
	for i, target := range w.cfg.URLs {
		if ctx.Err() != nil {
			w.logger.Debug("отправка алерта отменена",
				"error_code", alert.ErrorCode,
				"remaining_urls", len(w.cfg.URLs)-i,
			)
			return nil
		}
		if err := w.deliver(ctx, target, body); err != nil {
			w.logger.Error("ошибка отправки webhook алерта",
				"error", err.Error(),
				"url", urlutil.MaskURL(target),
				"error_code", alert.ErrorCode,
			)
			continue
		}
		delivered++
	}

	if delivered == 0 {
		w.logger.Warn("алерт не доставлен ни на один URL",
			"error_code", alert.ErrorCode,
			"urls_total", len(w.cfg.URLs),
		)
		return nil
	}
	w.logger.Info("алерт отправлен",
		"error_code", alert.ErrorCode,
		"severity", string(alert.Severity),
		"urls_success", delivered,
		"urls_total", len(w.cfg.URLs),
	)
	return nil
}

func (w *WebhookAlerter) payload(alert Alert) WebhookPayload {
	ts := alert.Timestamp
	if ts.IsZero() {
		ts = w.now()
	}
	return WebhookPayload{
		ErrorCode: alert.ErrorCode,
		Message:   alert.Message,
		TraceID:   alert.TraceID,
		Timestamp: ts,
		Component: alert.Component,
		Backend:   alert.Backend,
		Severity:  alert.Severity,
		Source:    payloadSource,
		Hostname:  w.hostname,
	}
}

// deliver отправляет body на target с экспоненциальными повторами.
// Ответ 4xx означает ошибку конфигурации webhook и не повторяется.
func (w *WebhookAlerter) deliver(ctx context.Context, target string, body []byte) error {
	// WithMaxRetries(0) означает бесконечные повторы, поэтому ноль отдельно.
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if w.cfg.MaxRetries > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = w.cfg.RetryBackoff
		exp.MaxInterval = maxRetryBackoff
		exp.Multiplier = 2
		exp.RandomizationFactor = 0
		exp.MaxElapsedTime = 0
		policy = backoff.WithMaxRetries(exp, uint64(w.cfg.MaxRetries))
	}

	attempt := 0
	return backoff.RetryNotify(
		func() error {
			attempt++
			err := w.post(ctx, target, body)
			var he *httpError
			if errors.As(err, &he) && he.StatusCode < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}
			return err
		},
		backoff.WithContext(policy, ctx),
		func(err error, next time.Duration) {
			w.logger.Debug("повтор отправки webhook",
				"attempt", attempt,
				"next_in", next.String(),
				"error", err.Error(),
				"url", urlutil.MaskURL(target),
			)
		},
	)
}

// httpError — ответ webhook'а с кодом вне 2xx.
type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func (w *WebhookAlerter) post(ctx context.Context, target string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", payloadSource)
	for key, value := range w.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		// Ошибка net/http содержит полный URL вместе с токеном в query.
		return errors.New(urlutil.RedactError(err))
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &httpError{StatusCode: resp.StatusCode, Body: string(data)}
}
