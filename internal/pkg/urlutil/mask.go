// Package urlutil предоставляет утилиты для безопасной работы с URL.
package urlutil

import (
	"errors"
	"net/url"
	"strings"
)

// MaskURL маскирует URL для безопасного логирования.
// Скрывает path и query параметры, которые могут содержать токены или credentials.
// Пример: "https://hooks.slack.com/services/XXX/YYY/ZZZ" → "https://hooks.slack.com/***"
func MaskURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***invalid-url***"
	}
	return u.Scheme + "://" + u.Host + "/***"
}

// secretParams — query параметры, значения которых не должны попадать в логи.
var secretParams = []string{"api_key", "application_key", "token"}

// RedactQuery заменяет значения секретных query параметров на "***",
// сохраняя путь: "https://api/v1/series?api_key=abc" → "https://api/v1/series?api_key=***".
func RedactQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "***invalid-url***"
	}
	q := u.Query()
	changed := false
	for _, p := range secretParams {
		if q.Has(p) {
			q.Set(p, "***")
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return strings.ReplaceAll(u.String(), "%2A%2A%2A", "***")
}

// RedactError возвращает текст ошибки без секретов из URL.
// *url.Error от net/http содержит полный URL запроса, включая api_key.
func RedactError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.URL != "" {
		msg = strings.ReplaceAll(msg, uerr.URL, RedactQuery(uerr.URL))
	}
	return msg
}
