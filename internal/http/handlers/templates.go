package handlers

import (
	"net/http"

	"veostudio/internal/domain"
)

func (a *App) ListTemplates(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string][]domain.Template{"items": a.Session.Templates().List()})
}

func (a *App) SaveTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl domain.Template
	if err := decode(w, r, &tpl); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	saved, err := a.Session.SaveTemplate(tpl)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, saved)
}
