package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/cache"
	"github.com/textveil/textveil/internal/events"
	"github.com/textveil/textveil/internal/masking"
	"github.com/textveil/textveil/internal/rules"
	"github.com/textveil/textveil/internal/similarity"
	"github.com/textveil/textveil/internal/transform"
)

const maxBodyBytes = 10 << 20

type anonymizeRequest struct {
	Text    string           `json:"text"`
	Rules   []masking.Rule   `json:"rules,omitempty"`
	Options *masking.Options `json:"options,omitempty"`
}

type restoreRequest struct {
	Text     string            `json:"text"`
	Mappings []masking.Mapping `json:"mappings"`
}

type transformRequest struct {
	Text      string             `json:"text"`
	Presets   []transform.Preset `json:"presets"`
	Rules     []masking.Rule     `json:"rules,omitempty"`
	Options   *masking.Options   `json:"options,omitempty"`
	ImageData string             `json:"imageData,omitempty"`
}

type transformResponse struct {
	OutputText       string            `json:"outputText,omitempty"`
	QRImage          string            `json:"qrImage,omitempty"`
	RecordSourceText *string           `json:"recordSourceText,omitempty"`
	RecordTargetText string            `json:"recordTargetText,omitempty"`
	Mappings         []masking.Mapping `json:"mappings"`
}

type similarityRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, transform.ErrMissingImageData),
		errors.Is(err, transform.ErrInvalidBase64),
		errors.Is(err, transform.ErrInvalidURL),
		errors.Is(err, rules.ErrUnsupportedVersion),
		errors.Is(err, rules.ErrMissingData),
		errors.Is(err, rules.ErrInvalidRule):
		return http.StatusBadRequest
	case errors.Is(err, transform.ErrQRNotDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rules.ErrDuplicateOriginal),
		errors.Is(err, rules.ErrDuplicateTarget):
		return http.StatusConflict
	case errors.Is(err, rules.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if err == io.EOF {
			writeError(w, http.StatusBadRequest, "empty request body")
		} else {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		}
		return false
	}
	return true
}

// resolveRules returns inline rules when the request carries them, otherwise
// the persisted rule set.
func (s *Server) resolveRules(r *http.Request, inline []masking.Rule) ([]masking.Rule, error) {
	if inline != nil {
		return inline, nil
	}
	if s.deps.Rules == nil {
		return nil, nil
	}
	return s.deps.Rules.List(r.Context())
}

func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	var req anonymizeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	opts := s.defaultOptions()
	if req.Options != nil {
		opts = *req.Options
	}

	ruleSet, err := s.resolveRules(r, req.Rules)
	if err != nil {
		s.logger.Error("Failed to load rules", zap.Error(err))
		writeError(w, statusForError(err), "failed to load rules")
		return
	}

	var key string
	if s.deps.Cache != nil {
		key = cache.Key(s.cacheKeyPrefix(), req.Text, ruleSet, opts)
		if cached := s.deps.Cache.Get(r.Context(), key); cached != nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	started := time.Now()
	result := s.engine.Anonymize(req.Text, ruleSet, opts)
	elapsed := time.Since(started)

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Set(r.Context(), key, &result); err != nil {
			s.logger.Warn("Failed to cache result", zap.Error(err))
		}
	}

	if s.deps.Autosave != nil {
		source := req.Text
		s.deps.Autosave.Schedule(&source, result.MaskedText, result.Mappings)
	}

	s.broadcastMasking(r, result, elapsed)

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) broadcastMasking(r *http.Request, result masking.Result, elapsed time.Duration) {
	if s.deps.Hub == nil {
		return
	}

	categories := make(map[string]int)
	for _, m := range result.Mappings {
		categories[m.Kind.String()]++
	}

	s.deps.Hub.BroadcastEvent(events.Event{
		Type:      events.EventTypeMasking,
		Timestamp: time.Now(),
		RequestID: requestID(r.Context()),
		Data: events.MaskingEvent{
			RequestID:    requestID(r.Context()),
			MappingCount: len(result.Mappings),
			Categories:   categories,
			ProcessingMS: float64(elapsed.Microseconds()) / 1000,
		},
	})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if !decodeBody(w, r, &req) {
		return
	}

	restored := masking.Restore(req.Text, req.Mappings)
	writeJSON(w, http.StatusOK, map[string]string{"text": restored})
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	var req transformRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var imageData []byte
	if req.ImageData != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ImageData)
		if err != nil {
			writeError(w, http.StatusBadRequest, "imageData is not valid base64")
			return
		}
		imageData = decoded
	}

	opts := s.defaultOptions()
	if req.Options != nil {
		opts = *req.Options
	}

	ruleSet, err := s.resolveRules(r, req.Rules)
	if err != nil {
		s.logger.Error("Failed to load rules", zap.Error(err))
		writeError(w, statusForError(err), "failed to load rules")
		return
	}

	started := time.Now()
	out, err := s.pipeline.Run(req.Text, req.Presets, ruleSet, opts, imageData)
	elapsed := time.Since(started)

	s.broadcastPipeline(r, req.Presets, err, elapsed)

	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	resp := transformResponse{
		OutputText:       out.OutputText,
		RecordSourceText: out.RecordSourceText,
		RecordTargetText: out.RecordTargetText,
		Mappings:         out.Mappings,
	}
	if len(out.QRImage) > 0 {
		resp.QRImage = base64.StdEncoding.EncodeToString(out.QRImage)
	}

	if s.deps.Autosave != nil && out.RecordTargetText != "" {
		s.deps.Autosave.Schedule(out.RecordSourceText, out.RecordTargetText, out.Mappings)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) broadcastPipeline(r *http.Request, presets []transform.Preset, runErr error, elapsed time.Duration) {
	if s.deps.Hub == nil {
		return
	}

	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.String()
	}

	evt := events.PipelineEvent{
		RequestID:    requestID(r.Context()),
		Presets:      names,
		Succeeded:    runErr == nil,
		ProcessingMS: float64(elapsed.Microseconds()) / 1000,
	}
	if runErr != nil {
		evt.FailureKind = runErr.Error()
	}

	s.deps.Hub.BroadcastEvent(events.Event{
		Type:      events.EventTypePipeline,
		Timestamp: time.Now(),
		RequestID: requestID(r.Context()),
		Data:      evt,
	})
}

func (s *Server) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	var req similarityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]float64{"score": similarity.Score(req.A, req.B)})
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, transform.Groups())
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rules == nil {
		writeError(w, http.StatusNotFound, "rule store disabled")
		return
	}

	list, err := s.deps.Rules.List(r.Context())
	if err != nil {
		s.logger.Error("Failed to list rules", zap.Error(err))
		writeError(w, statusForError(err), "failed to list rules")
		return
	}
	if list == nil {
		list = []masking.Rule{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rules == nil {
		writeError(w, http.StatusNotFound, "rule store disabled")
		return
	}

	var rule masking.Rule
	if !decodeBody(w, r, &rule) {
		return
	}

	created, err := s.deps.Rules.Create(r.Context(), rule)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rules == nil {
		writeError(w, http.StatusNotFound, "rule store disabled")
		return
	}

	var rule masking.Rule
	if !decodeBody(w, r, &rule) {
		return
	}
	rule.ID = mux.Vars(r)["id"]

	if err := s.deps.Rules.Update(r.Context(), rule); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rules == nil {
		writeError(w, http.StatusNotFound, "rule store disabled")
		return
	}

	if err := s.deps.Rules.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportRules(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rules == nil {
		writeError(w, http.StatusNotFound, "rule store disabled")
		return
	}

	list, err := s.deps.Rules.List(r.Context())
	if err != nil {
		s.logger.Error("Failed to list rules for export", zap.Error(err))
		writeError(w, statusForError(err), "failed to list rules")
		return
	}

	data, err := rules.Export(list)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="textveil-rules.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleImportRules(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rules == nil {
		writeError(w, http.StatusNotFound, "rule store disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	imported, err := rules.Import(data)
	if err != nil {
		// Every import failure is a payload problem, including parse errors
		// that carry no sentinel.
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	var created []masking.Rule
	for _, rule := range imported {
		saved, err := s.deps.Rules.Create(r.Context(), rule)
		if err != nil {
			// Duplicates already present in the store are skipped, not
			// treated as a failed import.
			if errors.Is(err, rules.ErrDuplicateOriginal) || errors.Is(err, rules.ErrDuplicateTarget) {
				s.logger.Debug("Skipping duplicate imported rule",
					zap.String("original", rule.Original))
				continue
			}
			writeError(w, statusForError(err), err.Error())
			return
		}
		created = append(created, saved)
	}
	if created == nil {
		created = []masking.Rule{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"imported": len(created),
		"skipped":  len(imported) - len(created),
		"rules":    created,
	})
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusNotFound, "history store disabled")
		return
	}

	limit := 50
	records, err := s.deps.History.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list history", zap.Error(err))
		writeError(w, statusForError(err), "failed to list history")
		return
	}
	writeJSON(w, http.StatusOK, records)
}
