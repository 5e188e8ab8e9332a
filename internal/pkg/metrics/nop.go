package metrics

import (
	"context"
	"net/http"
	"time"
)

// NopCollector используется при выключенных метриках.
type NopCollector struct{}

// NewNopCollector создаёт NopCollector.
func NewNopCollector() *NopCollector {
	return &NopCollector{}
}

func (*NopCollector) RecordEmission(string, string, bool) {}

func (*NopCollector) RecordFlush(int, time.Duration) {}

func (*NopCollector) RecordIngest(string, int, time.Duration) {}

// Handler отвечает 404, чтобы scraper видел выключенные метрики.
func (*NopCollector) Handler() http.Handler {
	return http.NotFoundHandler()
}

func (*NopCollector) Push(context.Context) error {
	return nil
}
