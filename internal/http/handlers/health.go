package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"credential":    a.Session.Credential().State,
		"is_generating": a.Session.Orchestrator().IsGenerating(),
	})
}
