// Package output предоставляет структуры и интерфейсы для форматирования
// результатов команд CLI в JSON и текстовом формате.
package output

import (
	"time"

	"github.com/Kargones/ci-telemetry/internal/pkg/apperrors"
)

// StatusSuccess и StatusError: возможные значения поля Status в Result.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIVersion — версия формата результата.
const APIVersion = "v1"

// Result представляет структурированный результат выполнения команды.
// Используется для сериализации в JSON (CT_OUTPUT_FORMAT=json)
// или для формирования человекочитаемого вывода (CT_OUTPUT_FORMAT=text).
type Result struct {
	// Status содержит статус выполнения: "success" или "error".
	Status string `json:"status"`

	// Command содержит имя выполненной команды.
	Command string `json:"command"`

	// Data содержит command-specific payload.
	Data any `json:"data,omitempty"`

	// Error содержит информацию об ошибке (только при status="error").
	Error *ErrorInfo `json:"error,omitempty"`

	// Metadata содержит метаданные выполнения.
	Metadata *Metadata `json:"metadata,omitempty"`
}

// ErrorInfo содержит информацию об ошибке в структурированном виде.
// ВАЖНО: Message НЕ ДОЛЖЕН содержать секреты!
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Metadata содержит метаданные выполнения команды.
type Metadata struct {
	// DurationMs — время выполнения команды в миллисекундах.
	DurationMs int64 `json:"duration_ms"`

	// APIVersion — версия формата результата.
	APIVersion string `json:"api_version"`
}

func newMetadata(start time.Time) *Metadata {
	return &Metadata{
		DurationMs: time.Since(start).Milliseconds(),
		APIVersion: APIVersion,
	}
}

// Success формирует успешный результат команды.
func Success(command string, data any, start time.Time) *Result {
	return &Result{
		Status:   StatusSuccess,
		Command:  command,
		Data:     data,
		Metadata: newMetadata(start),
	}
}

// Failure формирует результат с ошибкой. Код берётся из AppError в цепочке,
// для прочих ошибок используется fallbackCode.
func Failure(command string, err error, fallbackCode string, data any, start time.Time) *Result {
	code := apperrors.CodeOf(err)
	if code == "" {
		code = fallbackCode
	}
	return &Result{
		Status:   StatusError,
		Command:  command,
		Data:     data,
		Error:    &ErrorInfo{Code: code, Message: err.Error()},
		Metadata: newMetadata(start),
	}
}
