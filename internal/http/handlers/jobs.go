package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"veostudio/internal/domain"
)

type submitBatchRequest struct {
	domain.GenerationConfig
	TemplateID string `json:"template_id,omitempty"`
}

type batchResponse struct {
	BatchID           string       `json:"batch_id"`
	Items             []domain.Job `json:"items"`
	ProgressEstimated bool         `json:"progress_estimated"`
}

type jobListResponse struct {
	Items             []domain.Job `json:"items"`
	IsGenerating      bool         `json:"is_generating"`
	ProgressEstimated bool         `json:"progress_estimated"`
}

func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, jobListResponse{
		Items:             a.Session.Orchestrator().Jobs().List(),
		IsGenerating:      a.Session.Orchestrator().IsGenerating(),
		ProgressEstimated: true,
	})
}

// SubmitBatch starts a batch. A template, when named, fills the prompt,
// aspect ratio and negative prompt the request leaves empty.
func (a *App) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req submitBatchRequest
	if err := decode(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	cfg := req.GenerationConfig
	if id := strings.TrimSpace(req.TemplateID); id != "" {
		tpl, ok := a.Session.Templates().Get(id)
		if !ok {
			a.fail(w, r, fmt.Errorf("template %s: %w", id, domain.ErrNotFound))
			return
		}
		if strings.TrimSpace(cfg.Prompt) == "" {
			cfg.Prompt = tpl.Prompt
		}
		if cfg.AspectRatio == "" {
			cfg.AspectRatio = tpl.AspectRatio
		}
		if strings.TrimSpace(cfg.NegativePrompt) == "" {
			cfg.NegativePrompt = tpl.NegativePrompt
		}
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = domain.MinBatchSize
	}

	jobs, err := a.Session.SubmitBatch(r.Context(), cfg)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().Str("batch_id", jobs[0].BatchID).Int("jobs", len(jobs)).Msg("handlers: batch accepted")
	a.json(w, http.StatusAccepted, batchResponse{BatchID: jobs[0].BatchID, Items: jobs, ProgressEstimated: true})
}

func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := a.Session.Job(id)
	if !ok {
		a.fail(w, r, fmt.Errorf("job %s: %w", id, domain.ErrNotFound))
		return
	}
	a.json(w, http.StatusOK, job)
}

// Playback returns the key-augmented URL of a completed job, or redirects
// to it when ?redirect=1 is given.
func (a *App) Playback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	url, err := a.Session.PlaybackURL(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	if r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"job_id": id, "url": url})
}
