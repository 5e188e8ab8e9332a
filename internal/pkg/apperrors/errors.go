// Package apperrors предоставляет структурированные ошибки приложения.
// Переименован из errors чтобы избежать конфликта со стандартной библиотекой.
package apperrors

import (
	"errors"
	"fmt"
)

// Коды ошибок в иерархическом формате: CATEGORY.SPECIFIC_ERROR.
// Позволяет grep по категориям: `grep "TELEMETRY\."` для всех ошибок доставки.
const (
	// Category: CONFIG, ошибки загрузки и парсинга конфигурации.
	ErrConfigLoad     = "CONFIG.LOAD_FAILED"
	ErrConfigParse    = "CONFIG.PARSE_FAILED"
	ErrConfigValidate = "CONFIG.VALIDATION_FAILED"

	// Category: TELEMETRY, ошибки доставки телеметрии в backend.
	ErrTelemetryTransport   = "TELEMETRY.TRANSPORT_FAILED"
	ErrTelemetryAuth        = "TELEMETRY.AUTH_FAILED"
	ErrTelemetryHTTP        = "TELEMETRY.HTTP_FAILED"
	ErrTelemetryBadResponse = "TELEMETRY.BAD_RESPONSE"
	ErrTelemetryEncode      = "TELEMETRY.ENCODE_FAILED"

	// Category: INGEST, ошибки приёма уведомлений от хоста.
	ErrIngestDecode   = "INGEST.DECODE_FAILED"
	ErrIngestValidate = "INGEST.VALIDATION_FAILED"

	// Category: STORE, ошибки хранилища истории сборок.
	ErrStoreConnect = "STORE.CONNECT_FAILED"
	ErrStoreQuery   = "STORE.QUERY_FAILED"
)

// AppError представляет структурированную ошибку приложения.
// Реализует error interface и поддерживает wrapping через Unwrap().
//
// ВАЖНО: Message НЕ ДОЛЖЕН содержать секреты (API ключи, пароли DSN).
//
// Пример использования:
//
//	return apperrors.NewAppError(apperrors.ErrTelemetryAuth,
//	    "backend отклонил API ключ",
//	    err)
type AppError struct {
	// Code — машиночитаемый код ошибки в формате CATEGORY.SPECIFIC.
	Code string `json:"code"`

	// Message — человекочитаемое описание ошибки.
	Message string `json:"message"`

	// Cause — wrapped оригинальная ошибка.
	// Не сериализуется в JSON.
	Cause error `json:"-"`
}

// Error реализует интерфейс error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap возвращает wrapped ошибку для errors.Is/As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is считает две AppError равными при совпадении кода.
// Позволяет использовать sentinel-значения вида &AppError{Code: ...} в errors.Is.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// NewAppError создаёт новый AppError с заданным кодом, сообщением и причиной.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf возвращает код первой AppError в цепочке или пустую строку.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
