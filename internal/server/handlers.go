package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/docveil/docveil/internal/anonymizer"
	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/feedback"
	"github.com/docveil/docveil/internal/pipeline"
	"github.com/docveil/docveil/internal/registry"
)

type detectRequest struct {
	Text       string `json:"text"`
	DocumentID string `json:"documentId,omitempty"`
	Language   string `json:"language,omitempty"`
}

type anonymizeRequest struct {
	Text       string `json:"text"`
	Filename   string `json:"filename,omitempty"`
	DocumentID string `json:"documentId,omitempty"`
	Language   string `json:"language,omitempty"`
}

type anonymizeResponse struct {
	Redacted string              `json:"redacted"`
	Mapping  *anonymizer.Mapping `json:"mapping"`
	Result   *pipeline.Result    `json:"result"`
}

type recognizerInfo struct {
	Name        string   `json:"name"`
	Priority    int      `json:"priority"`
	Specificity string   `json:"specificity"`
	EntityTypes []string `json:"entityTypes"`
	Languages   []string `json:"languages,omitempty"`
	Countries   []string `json:"countries,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "docveil",
		"recognizers": s.engine.Registry().Len(),
		"ml_enabled":  s.config.ML.Enabled,
		"country":     s.config.Engine.DefaultCountry,
		"language":    s.config.Engine.DefaultLanguage,
	})
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result := s.engine.Detect(r.Context(), req.Text, req.DocumentID, req.Language)

	if s.hub != nil {
		s.hub.BroadcastDetection(req.DocumentID, result)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	var req anonymizeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result := s.engine.Detect(r.Context(), req.Text, req.DocumentID, req.Language)
	redacted, mapping := s.engine.Anonymize(req.Filename, req.Text, result.Entities)

	if s.hub != nil {
		s.hub.BroadcastDetection(req.DocumentID, result)
	}
	writeJSON(w, http.StatusOK, anonymizeResponse{
		Redacted: redacted,
		Mapping:  mapping,
		Result:   result,
	})
}

func (s *Server) handleRecognizers(w http.ResponseWriter, r *http.Request) {
	recs, err := s.engine.Registry().Filtered(registry.Filter{
		Country:    r.URL.Query().Get("country"),
		Language:   r.URL.Query().Get("language"),
		EntityType: r.URL.Query().Get("entity_type"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]recognizerInfo, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recognizerInfo{
			Name:        rec.Name(),
			Priority:    rec.Priority(),
			Specificity: rec.Specificity().String(),
			EntityTypes: rec.EntityTypes(),
			Languages:   rec.Languages(),
			Countries:   rec.Countries(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFeedbackSave(w http.ResponseWriter, r *http.Request) {
	var c feedback.Correction
	if !s.decodeBody(w, r, &c) {
		return
	}
	if c.DocumentID == "" || c.OldType == "" {
		writeError(w, http.StatusBadRequest, "documentId and oldType are required")
		return
	}
	if c.EntityID == "" {
		c.EntityID = entity.NewID()
	}

	if err := s.feedback.Save(r.Context(), &c); err != nil {
		s.logger.Error("Failed to save correction", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save correction")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleFeedbackStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.feedback.Stats(r.Context())
	if err != nil {
		s.logger.Error("Failed to load feedback stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// decodeBody reads a bounded JSON body into dst; on failure it writes the
// error response and returns false.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
