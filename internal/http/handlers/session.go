package handlers

import (
	"net/http"

	"veostudio/internal/middleware"
)

func (a *App) SessionSnapshot(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Session.Snapshot(middleware.LocaleFromContext(r.Context())))
}
