package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"edulearn-quiz-service/internal/logger"
)

// RouterDeps wires the HTTP surface.
type RouterDeps struct {
	Handlers       *Handlers
	Progress       *ProgressWSHandler
	Auth           Authenticator
	Limiter        Limiter
	AllowedOrigins []string
	TrustedProxies TrustedProxies
	Log            *logger.Logger
}

// NewRouter builds the full handler: request logging, CORS, rate limiting on /api, auth on protected routes.
func NewRouter(d RouterDeps) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	if d.Limiter != nil {
		api.Use(rateLimit(d.Limiter, d.TrustedProxies, d.Log))
	}
	api.HandleFunc("/auth/register", d.Handlers.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", d.Handlers.Login).Methods(http.MethodPost)
	api.HandleFunc("/topics", d.Handlers.Topics).Methods(http.MethodGet)
	api.HandleFunc("/health", d.Handlers.Health).Methods(http.MethodGet)

	protected := api.NewRoute().Subrouter()
	protected.Use(requireAuth(d.Auth, d.Log))
	protected.HandleFunc("/quiz/generate", d.Handlers.GenerateQuiz).Methods(http.MethodPost)
	protected.HandleFunc("/quiz/submit", d.Handlers.SubmitQuiz).Methods(http.MethodPost)
	protected.HandleFunc("/user/dashboard", d.Handlers.Dashboard).Methods(http.MethodGet)
	protected.HandleFunc("/tutor/chat", d.Handlers.TutorChat).Methods(http.MethodPost)

	ws := router.PathPrefix("/ws").Subrouter()
	ws.Use(requireAuth(d.Auth, d.Log))
	ws.HandleFunc("/progress", d.Progress.ServeWS).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: len(d.AllowedOrigins) > 0,
		MaxAge:           300,
	})
	// Outermost, so 404s, 405s and preflights are logged as well.
	return requestLogger(d.Log)(c.Handler(router))
}
