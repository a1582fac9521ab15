package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"veostudio/internal/domain"
)

type createCharacterRequest struct {
	Name      string `json:"name"`
	ImageData string `json:"image_data"`
}

func (a *App) ListCharacters(w http.ResponseWriter, r *http.Request) {
	items := a.Session.Characters().List()
	if r.URL.Query().Get("include_image") == "false" {
		for i := range items {
			items[i].ReferenceImageData = ""
		}
	}
	a.json(w, http.StatusOK, map[string][]domain.Character{"items": items})
}

func (a *App) CreateCharacter(w http.ResponseWriter, r *http.Request) {
	var req createCharacterRequest
	if err := decode(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	char, err := a.Session.AddCharacter(req.Name, req.ImageData)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, char)
}

func (a *App) DeleteCharacter(w http.ResponseWriter, r *http.Request) {
	if err := a.Session.DeleteCharacter(chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
