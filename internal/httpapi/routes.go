package httpapi

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tap-to-win/internal/ledger"
	"github.com/DoyleJ11/tap-to-win/internal/lobby"
	"github.com/DoyleJ11/tap-to-win/internal/ws"
)

type Options struct {
	Logger          *zap.Logger
	OwnerID         ledger.UserID
	EmptyDrawStatus int
	AllowedOrigins  []string
	// Static overrides the embedded assets when set.
	Static fs.FS
}

func SetupRoutes(lb *lobby.Lobby, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.EmptyDrawStatus == 0 {
		opts.EmptyDrawStatus = http.StatusOK
	}
	static := opts.Static
	if static == nil {
		static = Assets()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler)

	// Game routes
	r.Post("/tap", Tap(lb, log))
	r.Get("/draw", Draw(lb, log, opts.EmptyDrawStatus))
	r.Post("/buy", Buy(lb, opts.OwnerID, log))
	r.Post("/balance", Balance(lb, log))
	r.Get("/reset", Reset(lb, log))
	r.Get("/round", Round(lb, log))

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(lb, log))

	// Everything else is the frontend
	r.Get("/*", Static(static))
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
