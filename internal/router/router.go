package router

import (
	"net/http"

	"storefront/internal/handler"
	"storefront/internal/middleware"
	"storefront/internal/session"

	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers served by the API.
type Handlers struct {
	Product *handler.ProductHandler
	Cart    *handler.CartHandler
	Order   *handler.OrderHandler
	Payment *handler.PaymentHandler
	Auth    *handler.AuthHandler
	Admin   *handler.AdminHandler
	Metrics http.Handler
}

// Options configures authentication for the router.
type Options struct {
	AdminAPIKey   string
	PaymentSecret string
	Sessions      *session.Manager
	SecureCookie  bool
	Observer      middleware.RequestObserver
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, opts Options, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, routed(fn))
	}

	// Health check endpoint (no authentication required)
	handle("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status": "healthy"}`))
	})
	if h.Metrics != nil {
		mux.Handle("GET /metrics", routed(h.Metrics))
	}

	handle("GET /api/products", h.Product.List)
	handle("GET /api/products/{slug}", h.Product.GetBySlug)

	handle("GET /api/cart", h.Cart.Get)
	handle("POST /api/cart/items", h.Cart.AddItem)
	handle("PATCH /api/cart/items", h.Cart.UpdateItem)
	handle("DELETE /api/cart/items", h.Cart.RemoveItem)

	handle("POST /api/auth/register", h.Auth.Register)
	handle("POST /api/auth/login", h.Auth.Login)
	handle("POST /api/auth/logout", h.Auth.Logout)

	handle("POST /api/orders", h.Order.Create)
	handle("GET /api/orders", h.Order.ListMine)
	handle("GET /api/orders/{orderNumber}", h.Order.Get)

	mux.Handle("POST /api/payments/callback",
		routed(middleware.PaymentCallbackAuth(opts.PaymentSecret, logger)(http.HandlerFunc(h.Payment.Callback))))

	admin := http.NewServeMux()
	adminHandle := func(pattern string, fn http.HandlerFunc) {
		admin.Handle(pattern, routed(fn))
	}
	adminHandle("POST /api/admin/products", h.Admin.CreateProduct)
	adminHandle("PUT /api/admin/products/{id}", h.Admin.UpdateProduct)
	adminHandle("DELETE /api/admin/products/{id}", h.Admin.DeleteProduct)
	adminHandle("POST /api/admin/products/{id}/restock", h.Admin.RestockProduct)
	adminHandle("GET /api/admin/orders", h.Admin.ListOrders)
	adminHandle("PATCH /api/admin/orders/{orderNumber}/status", h.Admin.UpdateOrderStatus)
	mux.Handle("/api/admin/", middleware.AdminAuth(opts.AdminAPIKey, logger)(admin))

	// Apply middleware in order: Recovery -> RequestID -> Logging -> Metrics -> CORS -> Identity
	var handler http.Handler = mux
	handler = middleware.Identity(opts.Sessions, opts.SecureCookie, logger)(handler)
	handler = middleware.CORS(handler)
	if opts.Observer != nil {
		handler = middleware.Metrics(opts.Observer)(handler)
	}
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(logger)(handler)

	return handler
}

// routed reports the matched pattern to the metrics middleware.
func routed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.SetRoute(r.Context(), r.Pattern)
		next.ServeHTTP(w, r)
	})
}
