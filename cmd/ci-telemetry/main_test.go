package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/ci-telemetry/internal/constants"
)

// isolateEnv снимает все CT_* переменные на время теста.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, constants.EnvPrefix) {
			continue
		}
		require.NoError(t, os.Unsetenv(key))
		t.Cleanup(func() { _ = os.Setenv(key, value) })
	}
}

func decodeResult(t *testing.T, out []byte) map[string]any {
	t.Helper()
	var res map[string]any
	require.NoError(t, json.Unmarshal(out, &res), string(out))
	return res
}

func TestRun_Version(t *testing.T) {
	isolateEnv(t)
	t.Setenv(constants.EnvOutputFormat, "json")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"version"}, &stdout, &stderr)

	assert.Equal(t, exitOK, code)
	res := decodeResult(t, stdout.Bytes())
	assert.Equal(t, "success", res["status"])
	assert.Equal(t, constants.ServiceName, res["data"].(map[string]any)["service"])
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"deploy"}, &stdout, &stderr)

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), `"deploy"`)
}

func TestRun_ConfigError(t *testing.T) {
	isolateEnv(t)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"validate"}, &stdout, &stderr)

	assert.Equal(t, exitConfig, code, "http backend без API ключа не запускается")
	assert.Contains(t, stderr.String(), "CONFIG.VALIDATION_FAILED")
}

func TestRun_Validate(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode int
		wantOK   bool
	}{
		{name: "valid key", status: http.StatusOK, body: `{"valid": true}`, wantCode: exitOK, wantOK: true},
		{name: "rejected key", status: http.StatusForbidden, body: `{"errors": ["Forbidden"]}`, wantCode: exitInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/validate", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			isolateEnv(t)
			t.Setenv("CT_API_URL", srv.URL+"/")
			t.Setenv("CT_API_KEY", "secret-key")
			t.Setenv("CT_LOG_LEVEL", "error")
			t.Setenv(constants.EnvOutputFormat, "json")

			var stdout, stderr bytes.Buffer
			code := run(context.Background(), []string{"validate"}, &stdout, &stderr)

			assert.Equal(t, tt.wantCode, code)
			res := decodeResult(t, stdout.Bytes())
			data := res["data"].(map[string]any)
			assert.Equal(t, tt.wantOK, data["valid"])
			assert.Equal(t, "http", data["backend"])
			assert.NotContains(t, stdout.String(), "secret-key")
		})
	}
}

func TestRun_ServeStopsOnCancel(t *testing.T) {
	isolateEnv(t)
	t.Setenv("CT_BACKEND", "agent")
	t.Setenv("CT_INGEST_LISTEN_ADDR", "127.0.0.1:0")
	t.Setenv("CT_LOG_LEVEL", "error")

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(300*time.Millisecond, cancel)
	defer timer.Stop()

	var stdout, stderr bytes.Buffer
	code := run(ctx, nil, &stdout, &stderr)

	assert.Equal(t, exitOK, code)
}
