package output

import (
	"encoding/json"
	"io"
	"strings"
)

// Форматы вывода, значение CT_OUTPUT_FORMAT.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Writer печатает Result команды.
type Writer interface {
	Write(w io.Writer, result *Result) error
}

// NewWriter возвращает Writer для format без учёта регистра.
// Неизвестный или пустой формат даёт TextWriter.
func NewWriter(format string) Writer {
	if strings.EqualFold(strings.TrimSpace(format), FormatJSON) {
		return NewJSONWriter()
	}
	return NewTextWriter()
}

// JSONWriter печатает Result как JSON с отступами, одним документом на строку.
type JSONWriter struct{}

func NewJSONWriter() *JSONWriter {
	return &JSONWriter{}
}

func (*JSONWriter) Write(w io.Writer, result *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
