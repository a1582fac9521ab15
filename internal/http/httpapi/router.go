package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"veostudio/internal/http/handlers"
	"veostudio/internal/infra"
	"veostudio/internal/middleware"
	"veostudio/internal/studio"
)

// RouterOptions carries the cross-cutting settings the middleware chain needs.
type RouterOptions struct {
	Logger          infra.Logger
	DefaultLocale   string
	AllowedOrigins  []string
	CountryLookup   middleware.CountryLookup
	SubmitRateLimit int
	Metrics         http.Handler
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		middleware.RequestID,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, studio.SupportedLocales, opts.CountryLookup),
	)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/openapi.json", app.OpenAPIJSON)
		r.Get("/docs", app.OpenAPIDocs)
		r.Get("/session", app.SessionSnapshot)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", app.ListJobs)
			r.With(middleware.RateLimit(opts.SubmitRateLimit, time.Minute)).Post("/", app.SubmitBatch)
			r.Get("/{id}", app.GetJob)
			r.Get("/{id}/playback", app.Playback)
		})

		r.Route("/characters", func(r chi.Router) {
			r.Get("/", app.ListCharacters)
			r.Post("/", app.CreateCharacter)
			r.Delete("/{id}", app.DeleteCharacter)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", app.ListTemplates)
			r.Post("/", app.SaveTemplate)
		})

		r.Get("/credential", app.CredentialStatus)
		r.Post("/credential/select", app.SelectCredential)
	})

	return r
}
