package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/raaihank/trace-sentinel/internal/privacy"
	"github.com/raaihank/trace-sentinel/internal/spanscan"
	"github.com/raaihank/trace-sentinel/internal/websocket"
	"go.uber.org/zap"
)

// ScanResponse is returned by every scan endpoint
type ScanResponse struct {
	RequestID     string           `json:"request_id"`
	Findings      privacy.Findings `json:"findings"`
	TotalFindings int              `json:"total_findings"`
	Notifications []string         `json:"notifications,omitempty"`
	ProcessingMS  float64          `json:"processing_ms"`
}

// MaskResponse is returned by the span masking endpoint
type MaskResponse struct {
	ScanResponse
	Span *spanscan.Span `json:"span"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"timestamp":  time.Now().UTC(),
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"goroutines": goroutines(),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":              s.config.Application.Name,
		"version":           Version,
		"finders":           s.components.Engine.FinderNames(),
		"whitelist_source":  s.config.Whitelist.Source,
		"whitelist_entries": s.components.WhitelistEntries(),
		"recorder_enabled":  s.components.Recorder != nil,
		"log_level":         s.logger.Level(),
	})
}

func (s *Server) handleScanSpan(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	span, ok := s.decodeSpan(w, r)
	if !ok {
		return
	}

	findings, notifications := s.components.Spans.Inspect(span)
	s.components.Metrics.IncScan("span")
	resp := s.respond(r, "span", span, findings, false, start)
	resp.Notifications = notifications
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMaskSpan(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	span, ok := s.decodeSpan(w, r)
	if !ok {
		return
	}

	masked, findings := s.components.Masker.MaskWithFindings(span)
	s.components.Metrics.IncScan("span")
	writeJSON(w, http.StatusOK, MaskResponse{
		ScanResponse: s.respond(r, "span", span, findings, len(findings) > 0, start),
		Span:         masked,
	})
}

func (s *Server) handleScanJSON(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	findings := s.components.JSON.Scan(body)
	s.components.Metrics.IncScan("json")
	writeJSON(w, http.StatusOK, s.respond(r, "json", nil, findings, false, start))
}

func (s *Server) handleScanXML(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	findings := s.components.XML.Scan(body)
	s.components.Metrics.IncScan("xml")
	writeJSON(w, http.StatusOK, s.respond(r, "xml", nil, findings, false, start))
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	if s.components.Recorder == nil {
		http.Error(w, "Recorder disabled", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, s.components.Recorder.String())
}

// respond updates the counters, broadcasts a detection event when anything
// was found and builds the response body
func (s *Server) respond(r *http.Request, source string, span *spanscan.Span, findings privacy.Findings, masked bool, start time.Time) ScanResponse {
	requestID := getRequestID(r.Context())
	elapsed := float64(time.Since(start).Nanoseconds()) / 1e6
	total := findings.Count()

	s.totalScans.Add(1)
	if total > 0 {
		s.totalDetections.Add(int64(total))

		detection := websocket.SecretDetectionEvent{
			RequestID:     requestID,
			Source:        source,
			Findings:      findings,
			TotalFindings: total,
			Masked:        masked,
			ProcessingMS:  elapsed,
		}
		if span != nil {
			detection.Service = span.ServiceName
			detection.Operation = span.OperationName
		}
		s.wsHub.BroadcastEvent(websocket.Event{
			Type:      websocket.EventTypeSecretDetection,
			Timestamp: time.Now(),
			RequestID: requestID,
			Data:      detection,
		})

		s.logger.WithRequestID(requestID).Debug("Secrets detected",
			zap.String("source", source),
			zap.Strings("finders", findings.Names()),
			zap.Int("total_findings", total),
		)
	}

	return ScanResponse{
		RequestID:     requestID,
		Findings:      findings,
		TotalFindings: total,
		ProcessingMS:  elapsed,
	}
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if s.config.Server.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		s.logger.WithRequestID(getRequestID(r.Context())).Error("Failed to read request body", zap.Error(err))
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func (s *Server) decodeSpan(w http.ResponseWriter, r *http.Request) (*spanscan.Span, bool) {
	body, ok := s.readBody(w, r)
	if !ok {
		return nil, false
	}
	var span spanscan.Span
	if err := json.Unmarshal(body, &span); err != nil {
		http.Error(w, "Invalid span: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return &span, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
