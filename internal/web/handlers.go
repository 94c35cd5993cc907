package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/esrs-tools/csvprep/internal/logging"
	"github.com/esrs-tools/csvprep/internal/pipeline"
	"github.com/esrs-tools/csvprep/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// processResponse is returned by handleProcess once a run is accepted.
type processResponse struct {
	RunID string `json:"run_id"`
}

// artifactInfo describes one downloadable output in a result response.
type artifactInfo struct {
	Name        string `json:"name"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int    `json:"size_bytes"`
	URL         string `json:"url"`
}

// resultResponse is the JSON view of a finished run.
type resultResponse struct {
	RunID         string         `json:"run_id"`
	Success       bool           `json:"success"`
	Logs          []string       `json:"logs"`
	InitialRows   int            `json:"initial_rows"`
	DroppedCols   int            `json:"dropped_columns"`
	DuplicateRows int            `json:"duplicates_removed"`
	RemainingRows int            `json:"remaining_rows"`
	PrimaryRows   int            `json:"primary_rows"`
	OverflowRows  int            `json:"overflow_rows"`
	DurationMs    int64          `json:"duration_ms"`
	Error         string         `json:"error,omitempty"`
	Artifacts     []artifactInfo `json:"artifacts"`
}

// handleIndex serves the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.IndexPage().Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("index render failed", "error", err)
	}
}

// handleProcess accepts a CSV upload and starts an asynchronous run.
// Responds with the run ID; progress and results are fetched separately.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		respondError(w, r, err, http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errors.New("no file provided"), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".csv" && ext != ".txt" {
		respondError(w, r,
			fmt.Errorf("unsupported file type: %s", ext),
			http.StatusUnsupportedMediaType)
		return
	}

	// Read the whole upload up front. The multipart file is backed by the
	// request and becomes invalid once this handler returns, while the run
	// continues in the background.
	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, err, http.StatusRequestEntityTooLarge)
		return
	}

	runID, err := s.service.StartRun(r.Context(), header.Filename, data)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrTooManyRuns) {
			status = http.StatusServiceUnavailable
		}
		respondError(w, r, err, status)
		return
	}

	logging.WithFields(r.Context(), "run_id", runID, "file", header.Filename).
		Info("run accepted", "bytes", len(data))

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, processResponse{RunID: runID})
}

// handleRunProgress streams run progress as Server-Sent Events. Each event
// carries a JSON snapshot; the stream ends when the run reaches a terminal
// phase or the client disconnects.
func (s *Server) handleRunProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	updates, err := s.service.SubscribeProgress(runID)
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case <-r.Context().Done():
			return
		case progress, open := <-updates:
			if !open {
				fmt.Fprint(w, "event: done\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			payload, err := json.Marshal(progressEvent(progress))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// progressEvent augments a progress snapshot with its derived percentage
// for the SSE payload.
func progressEvent(p pipeline.RunProgress) map[string]any {
	return map[string]any{
		"run_id":    p.RunID,
		"file_name": p.FileName,
		"phase":     p.Phase,
		"step":      p.Step,
		"percent":   p.Percent(),
		"error":     p.Error,
	}
}

// handleRunResult returns the final outcome of a run as JSON, blocking
// until the run completes.
func (s *Server) handleRunResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	res, err := s.service.Result(runID)
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, buildResultResponse(runID, res))
}

// buildResultResponse converts a pipeline result into its JSON view.
func buildResultResponse(runID string, res *pipeline.Result) resultResponse {
	resp := resultResponse{
		RunID:         runID,
		Success:       res.Success,
		Logs:          res.Logs,
		InitialRows:   res.InitialRows,
		DroppedCols:   res.DroppedCols,
		DuplicateRows: res.DuplicateRows,
		RemainingRows: res.RemainingRows,
		PrimaryRows:   res.PrimaryRows,
		OverflowRows:  res.OverflowRows,
		DurationMs:    res.Duration.Milliseconds(),
		Error:         res.Error,
		Artifacts:     make([]artifactInfo, 0, len(res.Artifacts)),
	}

	for name, artifact := range res.Artifacts {
		resp.Artifacts = append(resp.Artifacts, artifactInfo{
			Name:        name,
			FileName:    artifact.SuggestedFileName,
			ContentType: artifact.ContentType,
			SizeBytes:   len(artifact.Payload),
			URL:         fmt.Sprintf("/api/run/%s/artifact/%s", runID, name),
		})
	}
	// Map iteration order is random; keep the primary artifact first.
	sort.Slice(resp.Artifacts, func(i, j int) bool {
		ri, rj := resp.Artifacts[i].Name, resp.Artifacts[j].Name
		if (ri == pipeline.ArtifactPrimary) != (rj == pipeline.ArtifactPrimary) {
			return ri == pipeline.ArtifactPrimary
		}
		return ri < rj
	})

	return resp
}

// handleRunArtifact serves one output file of a successful run as a
// download.
func (s *Server) handleRunArtifact(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	name := chi.URLParam(r, "name")

	artifact, err := s.service.Artifact(runID, name)
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", artifact.SuggestedFileName))
	w.Header().Set("Content-Length", fmt.Sprint(len(artifact.Payload)))
	w.Write(artifact.Payload)
}

// handleCancelRun aborts an in-progress run.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	if err := s.service.CancelRun(runID); err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]string{"status": "cancelling"})
}

// handleRunFragment renders the result panel for a finished run as an HTML
// fragment the frontend swaps into the page.
func (s *Server) handleRunFragment(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	res, err := s.service.Result(runID)
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.RunResult(runID, res).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("result fragment render failed", "error", err)
	}
}

// handleStatus reports run-limiter occupancy, useful for health checks.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.LimiterStatus())
}
