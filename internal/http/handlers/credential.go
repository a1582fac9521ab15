package handlers

import (
	"net/http"
)

type selectCredentialRequest struct {
	APIKey string `json:"api_key,omitempty"`
}

func (a *App) CredentialStatus(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Session.Credential())
}

// SelectCredential runs the host selector. The optional api_key is handed
// to hosts that accept a key up front.
func (a *App) SelectCredential(w http.ResponseWriter, r *http.Request) {
	var req selectCredentialRequest
	if err := decode(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := a.Session.SelectCredential(r.Context(), req.APIKey); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.Session.Credential())
}
