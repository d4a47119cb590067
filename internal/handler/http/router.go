package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/MarketplaceGo/pkg/health"
	"github.com/utafrali/MarketplaceGo/pkg/middleware"

	"github.com/utafrali/MarketplaceGo/internal/auth"
	"github.com/utafrali/MarketplaceGo/internal/domain"
	"github.com/utafrali/MarketplaceGo/internal/service"
)

// Services bundles the application services the router exposes.
type Services struct {
	User        *service.UserService
	Category    *service.CategoryService
	Catalog     *service.CatalogService
	Negotiation *service.NegotiationService
	Review      *service.ReviewService
}

// NewRouter creates a chi router with all marketplace routes registered.
func NewRouter(
	services Services,
	jwtManager *auth.JWTManager,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("marketplace"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Token validator that bridges to our internal JWTManager.
	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := jwtManager.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
		}, nil
	}

	authHandler := NewAuthHandler(services.User, logger)
	userHandler := NewUserHandler(services.User)
	categoryHandler := NewCategoryHandler(services.Category)
	catalogHandler := NewCatalogHandler(services.Catalog)
	negotiationHandler := NewNegotiationHandler(services.Negotiation)
	reviewHandler := NewReviewHandler(services.Review)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.RefreshToken)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))
			r.Post("/logout", authHandler.Logout)
			r.Post("/change-password", authHandler.ChangePassword)
		})
	})

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))

		r.Get("/me", userHandler.GetProfile)
		r.Put("/me", userHandler.UpdateProfile)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleAdmin))
			r.Get("/", userHandler.ListUsers)
			r.Get("/{id}", userHandler.GetUser)
			r.Put("/{id}/role", userHandler.AssignRole)
			r.Post("/{id}/deactivate", userHandler.DeactivateUser)
			r.Delete("/{id}", userHandler.DeleteUser)
		})
	})

	r.Route("/api/v1/categories", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Category reads are safe to cache at the edge.
		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl(300))
			r.Get("/", categoryHandler.List)
			r.Get("/{id}", categoryHandler.Get)
			r.Get("/slug/{slug}", categoryHandler.GetBySlug)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))
			r.Use(middleware.RequireRole(domain.RoleAdmin))
			r.Post("/", categoryHandler.Create)
			r.Put("/{id}", categoryHandler.Update)
			r.Delete("/{id}", categoryHandler.Delete)
		})
	})

	r.Route("/api/v1/services", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Public catalog reads
		r.Get("/", catalogHandler.List)
		r.Get("/{id}", catalogHandler.Get)
		r.Get("/{id}/reviews", reviewHandler.ListByService)
		r.Get("/{id}/reviews/summary", reviewHandler.Summary)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))
			r.Post("/", catalogHandler.Create)
			r.Put("/{id}", catalogHandler.Update)
			r.Delete("/{id}", catalogHandler.Delete)
			r.Post("/{id}/reviews", reviewHandler.Create)
		})
	})

	r.Route("/api/v1/negotiations", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))

		r.Post("/", negotiationHandler.Create)
		r.Get("/", negotiationHandler.List)
		r.Get("/{id}", negotiationHandler.Get)
		r.Put("/{id}/resolve", negotiationHandler.Resolve)
		r.Delete("/{id}", negotiationHandler.Cancel)
	})

	r.Route("/api/v1/reviews", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/{id}", reviewHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))
			r.Put("/{id}", reviewHandler.Update)
			r.Delete("/{id}", reviewHandler.Delete)
		})
	})

	return r
}
