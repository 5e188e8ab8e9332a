package ingest

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Имена схем payload'ов.
const (
	schemaBuild         = "build.json"
	schemaNode          = "node.json"
	schemaSecurity      = "security.json"
	schemaConfigChanged = "config_changed.json"
	schemaHostStatus    = "host_status.json"
)

// schemaBaseURL — базовый URL ресурсов схем. Схемы загружаются из embed.FS, сеть не используется.
const schemaBaseURL = "https://ci-telemetry.local/schemas/"

//go:embed schemas/*.json
var schemaFS embed.FS

// validator проверяет тела запросов по встроенным JSON Schema.
type validator struct {
	schemas map[string]*jsonschema.Schema
}

// newValidator компилирует все встроенные схемы.
func newValidator() (*validator, error) {
	names := []string{schemaBuild, schemaNode, schemaSecurity, schemaConfigChanged, schemaHostStatus}
	c := jsonschema.NewCompiler()
	for _, name := range names {
		data, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("чтение схемы %s: %w", name, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("разбор схемы %s: %w", name, err)
		}
		if err := c.AddResource(schemaBaseURL+name, doc); err != nil {
			return nil, fmt.Errorf("регистрация схемы %s: %w", name, err)
		}
	}

	v := &validator{schemas: make(map[string]*jsonschema.Schema, len(names))}
	for _, name := range names {
		sch, err := c.Compile(schemaBaseURL + name)
		if err != nil {
			return nil, fmt.Errorf("компиляция схемы %s: %w", name, err)
		}
		v.schemas[name] = sch
	}
	return v, nil
}

// validate проверяет body по схеме name.
func (v *validator) validate(name string, body []byte) error {
	sch, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("неизвестная схема %s", name)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}
