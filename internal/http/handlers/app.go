package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"veostudio/internal/domain"
	"veostudio/internal/infra"
	"veostudio/internal/middleware"
	"veostudio/internal/studio"
)

// maxBodyBytes leaves room for a base64 reference image.
const maxBodyBytes = 32 << 20

type App struct {
	Session *studio.Session
	Logger  infra.Logger
}

func NewApp(session *studio.Session, logger infra.Logger) *App {
	return &App{Session: session, Logger: logger}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// fail maps a domain error onto a status code and error code.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	locale := middleware.LocaleFromContext(r.Context())
	switch {
	case errors.Is(err, domain.ErrCredentialUnavailable):
		a.error(w, http.StatusPreconditionRequired, "credential_required", studio.Localize(studio.MessageCredentialRequired, locale))
	case errors.Is(err, domain.ErrHostCapabilityUnavailable):
		a.error(w, http.StatusServiceUnavailable, "credential_selector_unavailable", studio.Localize(domain.NoticeSelectorFailed, locale))
	case errors.Is(err, domain.ErrInvalidConfig),
		errors.Is(err, domain.ErrInvalidCharacter),
		errors.Is(err, domain.ErrInvalidTemplate):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrJobNotCompleted):
		a.error(w, http.StatusConflict, "job_not_completed", err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("handlers: request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("payload exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("invalid payload: %s", strings.TrimPrefix(err.Error(), "json: "))
	}
	return nil
}
