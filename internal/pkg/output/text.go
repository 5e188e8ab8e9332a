package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// TextWriter печатает Result для человека: строка статуса, ошибка и поля
// Data по одному на строку в порядке имён.
type TextWriter struct{}

func NewTextWriter() *TextWriter {
	return &TextWriter{}
}

func (*TextWriter) Write(w io.Writer, result *Result) error {
	if result == nil {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", result.Command, result.Status)
	if result.Error != nil {
		fmt.Fprintf(&b, "Error [%s]: %s\n", result.Error.Code, result.Error.Message)
	}
	if result.Data != nil {
		fields, err := dataFields(result.Data)
		if err != nil {
			return fmt.Errorf("не удалось сериализовать Data: %w", err)
		}
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, fields[k])
		}
	}
	if result.Metadata != nil && result.Metadata.DurationMs > 0 {
		fmt.Fprintf(&b, "Время выполнения: %s\n", formatDuration(result.Metadata.DurationMs))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// dataFields раскладывает Data по JSON именам полей. Не-объект печатается
// одним полем value.
func dataFields(data any) (map[string]string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return map[string]string{"value": string(raw)}, nil
	}
	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		var s string
		if json.Unmarshal(v, &s) == nil {
			fields[k] = s
			continue
		}
		fields[k] = string(v)
	}
	return fields, nil
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dмс", ms)
	}
	sec := ms / 1000
	if sec < 60 {
		return fmt.Sprintf("%.1fс", float64(ms)/1000)
	}
	return fmt.Sprintf("%dм %dс", sec/60, sec%60)
}
