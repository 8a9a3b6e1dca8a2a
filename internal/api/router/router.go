package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/anatoliahealth/medtour-crm/internal/http/middleware"
	"github.com/anatoliahealth/medtour-crm/internal/leads"
	"github.com/anatoliahealth/medtour-crm/internal/normalize"
	"github.com/anatoliahealth/medtour-crm/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger           *logging.Logger
	LeadsHandler     *leads.Handler
	NormalizeHandler *normalize.Handler

	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	IntakeRateLimit float64
	IntakeRateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}

		// Lead intake from clinic websites. Org comes from a header set by
		// the embedding form; the endpoint is rate limited per IP.
		if cfg.LeadsHandler != nil {
			rate, burst := cfg.IntakeRateLimit, cfg.IntakeRateBurst
			if rate <= 0 {
				rate = 2
			}
			if burst <= 0 {
				burst = 5
			}
			public.With(
				httpmiddleware.RateLimit(rate, burst),
				httpmiddleware.RequireOrg,
			).Post("/leads/web", cfg.LeadsHandler.CreateWebLead)
		}
	})

	// Admin endpoints
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

		admin.Route("/clinics/{orgID}/leads", func(lr chi.Router) {
			if cfg.LeadsHandler != nil {
				lr.Get("/", cfg.LeadsHandler.ListLeads)
				lr.Get("/{leadID}", cfg.LeadsHandler.GetLead)
				lr.Get("/{leadID}/notes", cfg.LeadsHandler.ListNotes)
				lr.Post("/{leadID}/notes", cfg.LeadsHandler.AddNote)
			}
			if cfg.NormalizeHandler != nil {
				lr.Post("/{leadID}/normalize", cfg.NormalizeHandler.Normalize)
				lr.Get("/{leadID}/canonical", cfg.NormalizeHandler.Canonical)
			}
		})
	})

	return r
}
