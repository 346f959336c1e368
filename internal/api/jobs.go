package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitebaker/internal/site"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 500
)

// listBakes handles GET /v1/bakes?status=&limit=&offset=. It returns
// {"jobs": [...]} newest first, or 400 for invalid filters.
func (s *Server) listBakes(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultJobLimit, maxJobLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status site.JobStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		if status, err = parseStatus(raw); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	jobs, err := s.jobStore.ListJobs(r.Context())
	if err != nil {
		s.logger.Error("list jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	filtered := make([]site.BakeJob, 0, len(jobs))
	for _, job := range jobs {
		if status == "" || job.Status == status {
			filtered = append(filtered, job)
		}
	}
	start := min(offset, len(filtered))
	end := min(start+limit, len(filtered))
	writeJSON(w, http.StatusOK, map[string]any{"jobs": filtered[start:end]})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseStatus(input string) (site.JobStatus, error) {
	switch strings.ToLower(input) {
	case "queued":
		return site.JobStatusQueued, nil
	case "running":
		return site.JobStatusRunning, nil
	case "succeeded", "success":
		return site.JobStatusSucceeded, nil
	case "failed", "error", "failure":
		return site.JobStatusFailed, nil
	default:
		return "", errors.New("invalid status")
	}
}
