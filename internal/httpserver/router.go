package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"estatehub/internal/obs"
	"estatehub/internal/security"
	"estatehub/internal/service"
	"estatehub/internal/ws"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps carries everything the router wires into handlers.
type Deps struct {
	DB                   Pinger
	Log                  *slog.Logger
	Tokens               *security.TokenService
	Inquiries            *service.InquiryService
	Messages             *service.MessageService
	Hub                  *ws.Hub
	CORSOrigins          []string
	InquiryRatePerMinute int

	// TrustProxy honours X-Forwarded-For and X-Real-IP. Enable only behind a
	// proxy that overwrites them, or clients can dodge the per-IP limiter.
	TrustProxy bool
}

// NewRouter constructs the main HTTP router and wires routes and middleware.
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	r := chi.NewRouter()

	r.Use(obs.RequestID)
	if d.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(obs.AccessLog(log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", obs.RequestIDHeader},
		ExposedHeaders:   []string{obs.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "estatehub messaging API", "version": "1.0.0"})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.DB.PingContext(ctx); err != nil {
				log.WarnContext(r.Context(), "health check failed", "err", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	errs := errorWriter{log: log}
	limiter := newIPLimiter(d.InquiryRatePerMinute, time.Minute)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.With(OptionalAuth(d.Tokens, errs), limiter.Middleware(errs)).
			Post("/inquiries", handleSubmitInquiry(d.Inquiries, errs))

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(d.Tokens, errs))

			r.Get("/inquiries/received", handleListReceivedInquiries(d.Inquiries, errs))
			r.Get("/inquiries/sent", handleListSentInquiries(d.Inquiries, errs))
			r.Patch("/inquiries/{inquiryID}/status", handleUpdateInquiryStatus(d.Inquiries, errs))
			r.Delete("/inquiries/{inquiryID}", handleDeleteInquiry(d.Inquiries, errs))

			r.Get("/conversations", handleListConversations(d.Messages, errs))
			r.Get("/conversations/{conversationID}/messages", handleListMessages(d.Messages, errs))
			r.Post("/conversations/{conversationID}/messages", handleSendMessage(d.Messages, errs))
			r.Put("/conversations/{conversationID}/messages/read", handleMarkRead(d.Messages, errs))

			r.Get("/messages/unread-count", handleUnreadCount(d.Messages, errs))
			r.Delete("/messages/{messageID}", handleDeleteMessage(d.Messages, errs))
		})
	})

	if d.Hub != nil {
		r.Get("/ws", ws.MakeHandler(d.Hub, d.Tokens, d.Messages, d.CORSOrigins, log))
	}

	return r
}

// writeJSON is a small helper to send JSON responses.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
