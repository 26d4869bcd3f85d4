package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rewear/rewear/internal/auth"
	"github.com/rewear/rewear/internal/imaging"
	"github.com/rewear/rewear/internal/model"
)

// Options configures the API router.
type Options struct {
	Tokens         *auth.Tokens
	SignupPoints   int64
	MaxUploadFiles int
	Images         imaging.Processor
	AllowedOrigins []string
}

// NewRouter creates the API router with all endpoints registered and the
// request id, panic recovery, CORS and logging middleware applied.
func NewRouter(db *sql.DB, opts Options) http.Handler {
	if opts.MaxUploadFiles <= 0 {
		opts.MaxUploadFiles = model.MaxImages
	}

	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, Tokens: opts.Tokens, SignupPoints: opts.SignupPoints}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db}
	transfersHandler := &TransfersHandler{DB: db}
	swapsHandler := &SwapsHandler{DB: db}
	adminHandler := &AdminHandler{DB: db}
	uploadsHandler := &UploadsHandler{DB: db, Processor: opts.Images, MaxFiles: opts.MaxUploadFiles}

	authMW := AuthMiddleware(opts.Tokens, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public.
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			jsonError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /images/{key}", uploadsHandler.Serve)

	// Session and own account.
	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))
	mux.Handle("PUT /api/auth/password", authed(authHandler.ChangePassword))
	mux.Handle("GET /api/me", authed(usersHandler.Me))
	mux.Handle("PUT /api/me/profile", authed(usersHandler.UpdateProfile))
	mux.Handle("POST /api/me/avatar", authed(uploadsHandler.Avatar))
	mux.Handle("GET /api/me/stats", authed(usersHandler.Stats))
	mux.Handle("GET /api/me/items", authed(usersHandler.MyItems))
	mux.Handle("GET /api/me/activity", authed(transfersHandler.MyActivity))

	// Public profiles.
	mux.Handle("GET /api/profiles/{username}", authed(usersHandler.Profile))

	// Listings.
	mux.Handle("GET /api/items", authed(itemsHandler.List))
	mux.Handle("POST /api/items", authed(itemsHandler.Create))
	mux.Handle("GET /api/items/{id}", authed(itemsHandler.Get))
	mux.Handle("PUT /api/items/{id}", authed(itemsHandler.Update))
	mux.Handle("DELETE /api/items/{id}", authed(itemsHandler.Delete))
	mux.Handle("POST /api/items/{id}/like", authed(itemsHandler.Like))
	mux.Handle("GET /api/items/{id}/history", authed(transfersHandler.ItemHistory))
	mux.Handle("POST /api/uploads", authed(uploadsHandler.Upload))

	// Swaps.
	mux.Handle("POST /api/swaps", authed(swapsHandler.Create))
	mux.Handle("GET /api/swaps", authed(swapsHandler.List))
	mux.Handle("GET /api/swaps/{id}", authed(swapsHandler.Get))
	mux.Handle("POST /api/swaps/{id}/accept", authed(swapsHandler.Accept))
	mux.Handle("POST /api/swaps/{id}/reject", authed(swapsHandler.Reject))
	mux.Handle("POST /api/swaps/{id}/cancel", authed(swapsHandler.Cancel))
	mux.Handle("POST /api/swaps/{id}/complete", authed(swapsHandler.Complete))
	mux.Handle("POST /api/swaps/{id}/rate", authed(swapsHandler.Rate))

	// Moderation (admin only).
	mux.Handle("GET /api/admin/dashboard", admin(adminHandler.Dashboard))
	mux.Handle("GET /api/admin/items", admin(adminHandler.Items))
	mux.Handle("POST /api/admin/items/{id}/approve", admin(adminHandler.Approve))
	mux.Handle("POST /api/admin/items/{id}/reject", admin(adminHandler.Reject))
	mux.Handle("DELETE /api/admin/items/{id}", admin(adminHandler.Delete))

	// Users (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("GET /api/users/{id}", admin(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", admin(usersHandler.Update))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	var h http.Handler = mux
	if len(opts.AllowedOrigins) > 0 {
		h = cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{middleware.RequestIDHeader},
			AllowCredentials: false,
			MaxAge:           300,
		})(h)
	}
	h = LoggingMiddleware(h)
	h = middleware.Recoverer(h)
	h = middleware.RequestID(h)
	return h
}
