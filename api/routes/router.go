package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aquaflowhq/aquaflow-backend/api/controllers"
	"github.com/aquaflowhq/aquaflow-backend/api/middleware"
	"github.com/aquaflowhq/aquaflow-backend/internal/cart"
	"github.com/aquaflowhq/aquaflow-backend/internal/engagement"
	"github.com/aquaflowhq/aquaflow-backend/internal/notifications"
	"github.com/aquaflowhq/aquaflow-backend/internal/orders"
	"github.com/aquaflowhq/aquaflow-backend/pkg/config"
	"github.com/aquaflowhq/aquaflow-backend/pkg/logger"
	"github.com/aquaflowhq/aquaflow-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	remote controllers.RemoteProber,
	redisClient *redis.Client,
	cartService *cart.Service,
	engagementManager *engagement.Manager,
	ordersService *orders.Service,
	notificationsService *notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, remote, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
			r.Put("/items", controllers.CartAddItem(cartService, logg))
			r.Patch("/items/{itemID}", controllers.CartUpdateAmount(cartService, logg))
			r.Delete("/items/{itemID}", controllers.CartRemoveItem(cartService, logg))
		})

		r.Route("/v1/engagement", func(r chi.Router) {
			r.Get("/", controllers.EngagementStatus(engagementManager, logg))
			r.Post("/start", controllers.EngagementStart(engagementManager, logg))
			r.Post("/resume", controllers.EngagementStart(engagementManager, logg))
			r.Post("/pause", controllers.EngagementPause(engagementManager, logg))
			r.Post("/visibility-lost", controllers.EngagementVisibilityLost(engagementManager, logg))
			r.Post("/skip", controllers.EngagementSkip(engagementManager, logg))
			r.Post("/finish", controllers.EngagementFinish(engagementManager, logg))
		})

		r.Post("/v1/checkout", controllers.Checkout(cartService, ordersService, engagementManager, logg))

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(ordersService, logg))
			r.Get("/{orderID}", controllers.OrderGet(ordersService, logg))
			r.Patch("/{orderID}/status", controllers.OrderUpdateStatus(ordersService, logg))
			r.Post("/{orderID}/cancel", controllers.OrderCancel(ordersService, logg))
		})

		r.Get("/v1/vendors/{vendorID}/orders", controllers.VendorOrders(ordersService, logg))

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.NotificationsList(notificationsService, logg))
			r.Post("/{notificationID}/read", controllers.NotificationMarkRead(notificationsService, logg))
		})
	})

	return r
}
