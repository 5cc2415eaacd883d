package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/coffersTech/nanotel/internal/logcat"
	"github.com/coffersTech/nanotel/internal/pattern"
	"github.com/coffersTech/nanotel/internal/runstore"
	"github.com/coffersTech/nanotel/pkg/telparse"
)

type analyzeResponse struct {
	telparse.Report
	RunIDs []string `json:"run_ids,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQueries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, telparse.Queries())
}

func (s *Server) handleTaxonomy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version": pattern.TaxonomyVersion,
		"rules":   pattern.Table(),
	})
}

// handleAnalyze runs one query. The body is a JSON array of records, JSON lines,
// or {"records": [...], "peer": [...]} for two-device queries. URL parameters
// become query parameters; save=true records the run.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	query := chi.URLParam(r, "query")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, "Body exceeds "+strconv.FormatInt(tooBig.Limit, 10)+" bytes", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	in, err := s.decodeRecords(body)
	if err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	params := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	save := params["save"] == "true"
	delete(params, "save")

	in.Params = params
	in.Subscription = s.sub
	rep, err := telparse.Run(query, in, s.opts)
	switch {
	case errors.Is(err, telparse.ErrUnknownQuery):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := analyzeResponse{Report: rep}
	if save && s.runs != nil {
		for _, res := range rep.Results {
			run := runstore.FromSummary(query, "http", res.TaxonomyVersion, res.Summary, res.Violation)
			if err := s.runs.Save(r.Context(), run); err != nil {
				s.logger.Error("failed to save run",
					slog.String("request_id", RequestID(r.Context())),
					slog.Any("error", err))
				http.Error(w, "Failed to save run", http.StatusInternalServerError)
				return
			}
			resp.RunIDs = append(resp.RunIDs, run.ID)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeRecords fills Records and, when the body names one, Peer. An explicit
// "peer": [] still counts as a supplied peer.
func (s *Server) decodeRecords(body []byte) (telparse.Input, error) {
	var in telparse.Input
	p := s.parser.Get()
	defer s.parser.Put(p)

	recBytes, peerBytes := body, []byte(nil)
	if v, perr := p.ParseBytes(body); perr == nil && v.Get("records") != nil {
		recBytes = v.Get("records").MarshalTo(nil)
		if pv := v.Get("peer"); pv != nil {
			peerBytes = pv.MarshalTo(nil)
		}
	}

	var err error
	if in.Records, err = logcat.DecodeJSON(p, recBytes); err != nil {
		return in, err
	}
	if peerBytes != nil {
		in.HasPeer = true
		if in.Peer, err = logcat.DecodeJSON(p, peerBytes); err != nil {
			return in, err
		}
	}
	return in, nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		http.Error(w, "Run history disabled", http.StatusNotFound)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.runs.List(r.Context(), r.URL.Query().Get("query"), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*runstore.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		http.Error(w, "Run history disabled", http.StatusNotFound)
		return
	}
	run, err := s.runs.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, runstore.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
