package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Kargones/ci-telemetry/internal/adapter/buildstore"
	"github.com/Kargones/ci-telemetry/internal/entity/build"
	"github.com/Kargones/ci-telemetry/internal/listener"
	"github.com/Kargones/ci-telemetry/internal/pkg/apperrors"
	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
	"github.com/Kargones/ci-telemetry/internal/pkg/tracing"
)

// buildPayload — тело /v1/builds/* и /v1/scm/checkout.
type buildPayload struct {
	Job         string              `json:"job"`
	Number      int                 `json:"number"`
	StartTimeMs int64               `json:"start_time_ms"`
	DurationMs  int64               `json:"duration_ms"`
	Result      string              `json:"result"`
	Hostname    string              `json:"hostname"`
	Node        string              `json:"node"`
	UserID      string              `json:"user_id"`
	Tags        map[string][]string `json:"tags"`
}

func (p buildPayload) entry() buildstore.Entry {
	result, _ := build.ParseResult(p.Result)
	return buildstore.Entry{
		Job:        p.Job,
		Number:     p.Number,
		StartedAt:  p.StartTimeMs,
		DurationMs: p.DurationMs,
		Result:     result,
		Hostname:   p.Hostname,
		Tags:       tags.FromMap(p.Tags),
	}
}

func (p buildPayload) snapshot() *build.Snapshot {
	e := p.entry()
	return &build.Snapshot{
		JobName:     e.Job,
		BuildNumber: e.Number,
		StartedAt:   e.StartedAt,
		DurationMs:  e.DurationMs,
		Status:      e.Result,
		Host:        e.Hostname,
		TagSet:      e.Tags,
	}
}

type nodePayload struct {
	Name  string `json:"name"`
	Cause string `json:"cause"`
}

type securityPayload struct {
	UserID string `json:"user_id"`
}

type configChangedPayload struct {
	File   string `json:"file"`
	UserID string `json:"user_id"`
}

// errorResponse — тело ответа с ошибкой.
type errorResponse struct {
	Error *apperrors.AppError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func accepted(w http.ResponseWriter) {
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, status int, appErr *apperrors.AppError) {
	s.logger.Warn("уведомление отклонено",
		"path", r.URL.Path,
		"status", status,
		"error_code", appErr.Code,
		"error", appErr.Error(),
		"trace_id", tracing.TraceIDFromContext(r.Context()),
	)
	writeJSON(w, status, errorResponse{Error: appErr})
}

// decode читает тело с ограничением размера, проверяет по схеме и разбирает в dst.
// При ошибке ответ уже записан и возвращается false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.reject(w, r, http.StatusRequestEntityTooLarge,
				apperrors.NewAppError(apperrors.ErrIngestDecode, "тело запроса превышает допустимый размер", nil))
			return false
		}
		s.reject(w, r, http.StatusBadRequest, apperrors.NewAppError(apperrors.ErrIngestDecode, "не удалось прочитать тело запроса", err))
		return false
	}
	if err := s.validator.validate(schema, body); err != nil {
		s.reject(w, r, http.StatusBadRequest, apperrors.NewAppError(apperrors.ErrIngestValidate, "payload не соответствует схеме "+schema, err))
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		s.reject(w, r, http.StatusBadRequest, apperrors.NewAppError(apperrors.ErrIngestDecode, "некорректный JSON", err))
		return false
	}
	return true
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var p buildPayload
	if !s.decode(w, r, schemaBuild, &p) {
		return
	}
	ctx := r.Context()

	if mux.Vars(r)["phase"] == "started" {
		s.deps.Listener.OnStarted(ctx, listener.Build{Record: p.snapshot(), Node: p.Node, UserID: p.UserID})
		accepted(w)
		return
	}

	e := p.entry()
	if !e.Result.Completed() {
		s.reject(w, r, http.StatusBadRequest,
			apperrors.NewAppError(apperrors.ErrIngestValidate, "завершённая сборка должна иметь result", nil))
		return
	}
	s.saveBuild(ctx, e)
	s.deps.Listener.OnCompleted(ctx, listener.Build{
		Record: s.deps.Resolver.Record(ctx, e),
		Node:   p.Node,
		UserID: p.UserID,
	})
	accepted(w)
}

// saveBuild сохраняет сборку до расчёта метрик истории. Ошибка хранилища не
// отклоняет уведомление: метрики считаются по уже сохранённой истории.
func (s *Server) saveBuild(ctx context.Context, e buildstore.Entry) {
	if err := s.deps.Store.Save(ctx, e); err != nil {
		s.logger.Warn("не удалось сохранить сборку в историю",
			"job", e.Job,
			"build", e.Number,
			"error", err.Error(),
			"error_code", apperrors.CodeOf(err),
		)
	}
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var p buildPayload
	if !s.decode(w, r, schemaBuild, &p) {
		return
	}
	s.deps.Listener.OnCheckout(r.Context(), listener.Build{Record: p.snapshot(), Node: p.Node, UserID: p.UserID})
	accepted(w)
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	state, ok := listener.ParseNodeState(mux.Vars(r)["state"])
	if !ok {
		s.reject(w, r, http.StatusNotFound, apperrors.NewAppError(apperrors.ErrIngestValidate, "неизвестное состояние узла", nil))
		return
	}
	var p nodePayload
	if !s.decode(w, r, schemaNode, &p) {
		return
	}
	s.deps.Listener.OnNode(r.Context(), listener.NodeEvent{Name: p.Name, State: state, Cause: p.Cause})
	accepted(w)
}

func (s *Server) handleSecurity(w http.ResponseWriter, r *http.Request) {
	kind, ok := listener.ParseSecurityKind(mux.Vars(r)["kind"])
	if !ok {
		s.reject(w, r, http.StatusNotFound, apperrors.NewAppError(apperrors.ErrIngestValidate, "неизвестный тип события безопасности", nil))
		return
	}
	var p securityPayload
	if !s.decode(w, r, schemaSecurity, &p) {
		return
	}
	s.deps.Listener.OnSecurity(r.Context(), listener.SecurityEvent{Kind: kind, UserID: p.UserID})
	accepted(w)
}

func (s *Server) handleConfigChanged(w http.ResponseWriter, r *http.Request) {
	var p configChangedPayload
	if !s.decode(w, r, schemaConfigChanged, &p) {
		return
	}
	s.deps.Listener.OnConfigChanged(r.Context(), listener.ConfigChange{File: p.File, UserID: p.UserID})
	accepted(w)
}

func (s *Server) handleHostStatus(w http.ResponseWriter, r *http.Request) {
	var p listener.HostStatus
	if !s.decode(w, r, schemaHostStatus, &p) {
		return
	}
	if s.deps.Status != nil {
		s.deps.Status.Update(p)
	}
	accepted(w)
}
