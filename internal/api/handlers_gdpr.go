package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/botfold/botfold/internal/jobs"
)

type gdprRequest struct {
	SubjectID string `json:"subjectId"`
}

type gdprResponse struct {
	JobID  string      `json:"jobId"`
	Status jobs.Status `json:"status"`
}

// handleGDPRExport queues a subject access request. The export itself
// runs in the background; callers poll the job endpoint for completion.
func (s *Server) handleGDPRExport(w http.ResponseWriter, r *http.Request) {
	s.enqueueGDPR(w, r, jobs.KindExport)
}

// handleGDPRDelete queues erasure of the tenant's data.
func (s *Server) handleGDPRDelete(w http.ResponseWriter, r *http.Request) {
	s.enqueueGDPR(w, r, jobs.KindDelete)
}

func (s *Server) enqueueGDPR(w http.ResponseWriter, r *http.Request, kind jobs.Kind) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}

	var req gdprRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SubjectID == "" {
		req.SubjectID = tenant
	}

	job, err := s.queue.Enqueue(kind, tenant, req.SubjectID)
	if err != nil {
		if errors.Is(err, jobs.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, CodeQueueUnavailable,
				"compliance queue is saturated, retry later")
			return
		}
		writeError(w, http.StatusInternalServerError, CodeQueueUnavailable, "failed to enqueue job")
		return
	}

	s.log.Info("gdpr job queued", "tenant", tenant, "kind", kind, "job_id", job.ID)
	writeJSON(w, http.StatusAccepted, gdprResponse{JobID: job.ID, Status: job.Status})
}

func (s *Server) handleGDPRJobStatus(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.tenant(w, r)
	if !ok {
		return
	}
	job, found := s.queue.Get(chi.URLParam(r, "id"))
	if !found || job.Tenant != tenant {
		// hide other tenants' jobs behind the same 404
		writeError(w, http.StatusNotFound, CodeNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}
