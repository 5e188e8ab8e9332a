// Package build описывает запись о сборке, над которой работают метрики истории.
package build

import "strings"

// Result — итог сборки в терминах хоста CI.
type Result string

// Допустимые значения Result. Пустая строка означает, что сборка ещё выполняется.
const (
	ResultSuccess  Result = "SUCCESS"
	ResultFailure  Result = "FAILURE"
	ResultUnstable Result = "UNSTABLE"
	ResultAborted  Result = "ABORTED"
	ResultNotBuilt Result = "NOT_BUILT"
	ResultRunning  Result = ""
)

// ParseResult разбирает строку результата без учёта регистра.
// Неизвестное значение возвращается с ok=false и ResultRunning.
func ParseResult(s string) (Result, bool) {
	switch r := Result(strings.ToUpper(strings.TrimSpace(s))); r {
	case ResultSuccess, ResultFailure, ResultUnstable, ResultAborted, ResultNotBuilt, ResultRunning:
		return r, true
	default:
		return ResultRunning, false
	}
}

// Completed сообщает, завершена ли сборка.
func (r Result) Completed() bool {
	return r != ResultRunning
}

// Built сообщает, была ли сборка действительно собрана (для ссылки previousBuiltBuild).
func (r Result) Built() bool {
	return r != ResultRunning && r != ResultNotBuilt
}

// NotFailed сообщает, что завершённая сборка не упала (для ссылки previousNotFailedBuild).
func (r Result) NotFailed() bool {
	return r.Completed() && r != ResultFailure
}

// String реализует fmt.Stringer; для выполняющейся сборки возвращает "RUNNING".
func (r Result) String() string {
	if r == ResultRunning {
		return "RUNNING"
	}
	return string(r)
}
