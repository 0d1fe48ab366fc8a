package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/maastricht-university/session-analysis/metrics"
	"github.com/maastricht-university/session-analysis/orchestrator"
)

type jobRequest struct {
	APIURL string `json:"api_url"`
}

type jobAccepted struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	TargetURL string `json:"target_url"`
	JobID     string `json:"job_id"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) formula(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metrics.Formula())
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target := strings.TrimSpace(req.APIURL)
	if u, err := url.Parse(target); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, http.StatusBadRequest, "api_url must be an http(s) URL")
		return
	}

	job := orchestrator.NewURLJob(target)
	if err := s.launch(r.Context(), job); err != nil {
		s.log.WithError(err).Error("job not queued")
		writeError(w, http.StatusInternalServerError, "failed to queue job")
		return
	}
	writeJSON(w, http.StatusAccepted, jobAccepted{
		Status:    "queued",
		Message:   "Analysis job submitted successfully.",
		TargetURL: target,
		JobID:     job.ID,
	})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	job, err := s.pipe.StageUpload(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save upload")
		return
	}
	if err := s.launch(r.Context(), job); err != nil {
		s.log.WithError(err).Error("job not queued")
		s.pipe.Discard(job)
		writeError(w, http.StatusInternalServerError, "failed to queue job")
		return
	}
	writeJSON(w, http.StatusAccepted, jobAccepted{
		Status:    "queued",
		Message:   "Upload received; analysis started.",
		TargetURL: header.Filename,
		JobID:     job.ID,
	})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := s.jobs.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
