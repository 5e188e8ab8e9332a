package telemetry

import (
	"errors"

	"github.com/Kargones/ci-telemetry/internal/pkg/apperrors"
)

// ErrInvalidAPIKey — backend ответил 403 на запрос с API ключом.
var ErrInvalidAPIKey = apperrors.NewAppError(apperrors.ErrTelemetryAuth, "backend отклонил API ключ", nil)

// Ошибки конфигурации.
var (
	ErrUnknownBackend   = errors.New("telemetry: unknown backend (expected http or agent)")
	ErrAPIURLInvalid    = errors.New("telemetry: api url must be an absolute http(s) url")
	ErrAPIKeyRequired   = errors.New("telemetry: api key is required for http backend")
	ErrAgentAddress     = errors.New("telemetry: agent host/port or socket path is required for agent backend")
	ErrFlushInterval    = errors.New("telemetry: flush interval must be a whole number of seconds, at least 1s")
	ErrHTTPTimeout      = errors.New("telemetry: http timeout must be positive")
	ErrAgentUnavailable = errors.New("telemetry: agent client is not running")
)
