package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	datadog "gopkg.in/zorkian/go-datadog-api.v2"

	"github.com/Kargones/ci-telemetry/internal/pkg/alerting"
	"github.com/Kargones/ci-telemetry/internal/pkg/apperrors"
	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
	"github.com/Kargones/ci-telemetry/internal/pkg/tracing"
	"github.com/Kargones/ci-telemetry/internal/pkg/urlutil"
)

// Пути API относительно APIURL.
const (
	pathSeries   = "v1/series"
	pathEvents   = "v1/events"
	pathCheckRun = "v1/check_run"
	pathValidate = "v1/validate"
)

// maxResponseBodySize — сколько байт ответа читается для проверки статуса.
const maxResponseBodySize = 64 * 1024

// HTTPClient — backend прямого HTTP API.
// Каждый вызов выполняет один запрос без повторов.
type HTTPClient struct {
	core
	apiURL  string
	apiKey  string
	client  *http.Client
	alerter alerting.Alerter
}

var _ Client = (*HTTPClient)(nil)

// seriesPayload — тело POST v1/series.
type seriesPayload struct {
	Series []datadog.Metric `json:"series"`
}

// checkRun — тело POST v1/check_run. У datadog.Check timestamp строковый,
// а API ожидает unix-время числом.
type checkRun struct {
	Check     string   `json:"check"`
	HostName  string   `json:"host_name"`
	Status    int      `json:"status"`
	Timestamp int64    `json:"timestamp"`
	Tags      []string `json:"tags"`
}

// NewHTTPClient создаёт HTTPClient. cfg должен пройти Validate.
func NewHTTPClient(cfg Config, deps Deps) *HTTPClient {
	deps = deps.withDefaults()
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPClient{
		core:    newCore(BackendHTTP, cfg.FlushInterval, deps),
		apiURL:  cfg.normalizedAPIURL(),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		alerter: deps.Alerter,
	}
}

// Event отправляет событие.
func (c *HTTPClient) Event(ctx context.Context, e Event) bool {
	e = withDefaults(e, c.now())
	payload := datadog.Event{
		Title:      datadog.String(e.Title),
		Text:       datadog.String(e.Text),
		Time:       datadog.Int(int(e.Date.Unix())),
		Priority:   datadog.String(string(e.Priority)),
		AlertType:  datadog.String(string(e.AlertType)),
		Host:       datadog.String(c.host(e.Hostname)),
		SourceType: datadog.String(SourceType),
		Tags:       e.Tags.Strings(),
	}
	if e.AggregationKey != "" {
		payload.Aggregation = datadog.String(e.AggregationKey)
	}
	return c.submit(ctx, "event", pathEvents, payload)
}

// Gauge отправляет одно значение gauge метрики.
func (c *HTTPClient) Gauge(ctx context.Context, name string, value float64, hostname string, t tags.Set) bool {
	return c.sendSample(ctx, Sample{Name: name, Value: value, Hostname: hostname, Tags: t, Kind: KindGauge})
}

// ServiceCheck отправляет статус service check.
func (c *HTTPClient) ServiceCheck(ctx context.Context, name string, status CheckStatus, hostname string, t tags.Set) bool {
	tagList := t.Strings()
	if tagList == nil {
		tagList = []string{}
	}
	return c.submit(ctx, "service_check", pathCheckRun, checkRun{
		Check:     name,
		HostName:  c.host(hostname),
		Status:    int(status),
		Timestamp: c.now().Unix(),
		Tags:      tagList,
	})
}

// FlushCounters сбрасывает общий counter.Store как rate метрики.
func (c *HTTPClient) FlushCounters(ctx context.Context) {
	c.flush(ctx, c.sendSample)
}

func (c *HTTPClient) sendSample(ctx context.Context, s Sample) bool {
	m := datadog.Metric{
		Metric: datadog.String(s.Name),
		Points: []datadog.DataPoint{{
			datadog.Float64(float64(c.now().Unix())),
			datadog.Float64(s.Value),
		}},
		Type: datadog.String(string(s.Kind)),
		Host: datadog.String(c.host(s.Hostname)),
		Tags: s.Tags.Strings(),
	}
	if s.Kind == KindRate && s.Interval > 0 {
		m.Interval = datadog.Int(int(s.Interval))
	}
	return c.submit(ctx, string(s.Kind), pathSeries, seriesPayload{Series: []datadog.Metric{m}})
}

// Validate проверяет API ключ запросом GET v1/validate.
func (c *HTTPClient) Validate(ctx context.Context) bool {
	body, err := c.do(ctx, http.MethodGet, pathValidate, nil)
	if err == nil {
		var resp struct {
			Valid bool `json:"valid"`
		}
		if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil || !resp.Valid {
			err = apperrors.NewAppError(apperrors.ErrTelemetryBadResponse, "validate: ответ без valid=true", jsonErr)
		}
	}
	if err != nil {
		c.handleError(ctx, "validate", err)
		return false
	}
	c.logger.Info("API ключ подтверждён backend'ом", "api_url", urlutil.MaskURL(c.apiURL))
	return true
}

// Close освобождает простаивающие соединения.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// submit отправляет payload и проверяет {"status":"ok"} в ответе.
func (c *HTTPClient) submit(ctx context.Context, kind, path string, payload any) bool {
	ctx, span := tracing.Start(ctx, "telemetry.http."+kind)
	defer span.End()

	data, err := json.Marshal(payload)
	if err != nil {
		err = apperrors.NewAppError(apperrors.ErrTelemetryEncode, "не удалось сериализовать "+kind, err)
		tracing.RecordError(span, err)
		c.handleError(ctx, kind, err)
		return c.record(kind, false)
	}

	body, err := c.do(ctx, http.MethodPost, path, data)
	if err == nil {
		err = checkStatusOK(body)
	}
	if err != nil {
		tracing.RecordError(span, err)
		c.handleError(ctx, kind, err)
		return c.record(kind, false)
	}
	return c.record(kind, true)
}

// do выполняет запрос и классифицирует ответ. Тело ответа ограничено maxResponseBodySize.
func (c *HTTPClient) do(ctx context.Context, method, path string, data []byte) ([]byte, error) {
	target := c.apiURL + path + "?api_key=" + url.QueryEscape(c.apiKey)

	var reqBody io.Reader
	if data != nil {
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTelemetryTransport, "некорректный запрос", errors.New(urlutil.RedactError(err)))
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "ci-telemetry/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTelemetryTransport, method+" "+path, errors.New(urlutil.RedactError(err)))
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidAPIKey
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, apperrors.NewAppError(apperrors.ErrTelemetryHTTP,
			fmt.Sprintf("%s %s: HTTP %d", method, path, resp.StatusCode), nil)
	case readErr != nil:
		return nil, apperrors.NewAppError(apperrors.ErrTelemetryTransport, "чтение ответа", readErr)
	}
	return body, nil
}

func checkStatusOK(body []byte) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Status != "ok" {
		return apperrors.NewAppError(apperrors.ErrTelemetryBadResponse, "ответ без status=ok", err)
	}
	return nil
}

// handleError логирует ошибку; отклонённый ключ дополнительно поднимает алерт.
func (c *HTTPClient) handleError(ctx context.Context, kind string, err error) {
	traceID := tracing.TraceIDFromContext(ctx)
	if errors.Is(err, ErrInvalidAPIKey) {
		c.logger.Error("backend отклонил API ключ (HTTP 403), телеметрия не доставляется",
			"kind", kind,
			"api_url", urlutil.MaskURL(c.apiURL),
			"error_code", apperrors.ErrTelemetryAuth,
			"trace_id", traceID,
		)
		_ = c.alerter.Send(ctx, alerting.Alert{
			ErrorCode: apperrors.ErrTelemetryAuth,
			Message:   "backend отклонил API ключ, телеметрия сборок не доставляется",
			TraceID:   traceID,
			Component: "telemetry.http",
			Backend:   urlutil.MaskURL(c.apiURL),
			Severity:  alerting.SeverityCritical,
		})
		return
	}
	c.logger.Warn("не удалось отправить телеметрию",
		"kind", kind,
		"error", err.Error(),
		"error_code", apperrors.CodeOf(err),
		"trace_id", traceID,
	)
}
