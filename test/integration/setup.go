package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"
	"storefront/internal/session"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testAPIKey        = "test-api-key"
	testPaymentSecret = "test-payment-secret"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container with the application
// schema applied.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	// Create PostgreSQL container
	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	// Get connection string
	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := postgresContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	pool, err := database.NewPool(ctx, config.DatabaseConfig{
		Host:             host,
		Port:             port.Int(),
		User:             "testuser",
		Password:         "testpass",
		Database:         "testdb",
		MaxConnections:   20,
		MinConnections:   1,
		MaxConnLifetime:  300,
		StatementTimeout: 10 * time.Second,
		LockTimeout:      5 * time.Second,
		ApplicationName:  "storefront-integration",
		AutoMigrate:      true,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// testCatalog is seeded by SeedProducts. Prices are minor units.
var testCatalog = []model.Product{
	{ID: "P-SAREE-A", Slug: "saree-a", Name: "Saree A", Category: "sarees", Price: 2499, Stock: 1},
	{ID: "P-KURTA", Slug: "cotton-kurta", Name: "Cotton Kurta", Category: "kurtas", Price: 400, Stock: 10,
		Variants: []model.Variant{
			{Size: "M", Color: "indigo", Stock: 4},
			{Size: "L", Color: "indigo", Stock: 6, PriceDelta: 50},
		}},
	{ID: "P-TOTE", Slug: "jute-tote", Name: "Jute Tote", Category: "accessories", Price: 300, DiscountPrice: ptr(int64(250)), Stock: 20},
	{ID: "P-SCARF", Slug: "silk-scarf", Name: "Silk Scarf", Category: "accessories", Price: 700, Stock: 5},
}

func ptr[T any](v T) *T { return &v }

// SeedProducts inserts the test catalogue through the product repository.
func SeedProducts(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()
	repo := repository.NewProductRepository(pool, zerolog.Nop())
	now := time.Now().UTC()

	for _, p := range testCatalog {
		p := p
		p.CreatedAt, p.UpdatedAt = now, now
		p.Variants = append([]model.Variant(nil), p.Variants...)
		if err := repo.Create(ctx, &p); err != nil {
			t.Fatalf("failed to seed product %s: %v", p.ID, err)
		}
	}
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	if err := database.Truncate(context.Background(), pool); err != nil {
		t.Fatalf("failed to clean database: %v", err)
	}
}

// App is the service graph wired against a test database.
type App struct {
	Products repository.ProductRepository
	Carts    repository.CartRepository
	Orders   repository.OrderRepository
	Outbox   repository.OutboxRepository
	Ledger   repository.StockLedger

	ProductService service.ProductService
	CartService    service.CartService
	OrderService   service.OrderService
	AuthService    service.AuthService

	Metrics  *metrics.Metrics
	Sessions *session.Manager
	Handler  http.Handler
}

// NewApp wires repositories, services and the HTTP router the same way the
// API binary does, minus Redis and Kafka.
func NewApp(t *testing.T, pool *pgxpool.Pool) *App {
	t.Helper()

	logger := zerolog.Nop()
	m := metrics.New(prometheus.NewRegistry())

	app := &App{
		Products: repository.NewProductRepository(pool, logger),
		Carts:    repository.NewCartRepository(pool, logger),
		Orders:   repository.NewOrderRepository(pool, logger),
		Outbox:   repository.NewOutboxRepository(pool, logger),
		Ledger:   repository.NewStockLedger(m, logger),
		Metrics:  m,
		Sessions: session.NewManager("integration-secret-0123456789abcdef", time.Hour),
	}

	checkout := config.CheckoutConfig{
		FreeShippingThreshold: 1000,
		ShippingFee:           99,
		Currency:              "INR",
		OrderNumberPrefix:     "ORD",
	}

	app.ProductService = service.NewProductService(app.Products, app.Ledger, nil, logger)
	app.CartService = service.NewCartService(app.Carts, app.Products, logger)
	app.OrderService = service.NewOrderService(app.Orders, app.Carts, app.Ledger, app.Outbox, checkout, m, nil, logger)
	app.AuthService = service.NewAuthService(repository.NewUserRepository(pool, logger), logger)

	app.Handler = router.New(router.Handlers{
		Product: handler.NewProductHandler(app.ProductService, logger),
		Cart:    handler.NewCartHandler(app.CartService, logger),
		Order:   handler.NewOrderHandler(app.OrderService, logger),
		Payment: handler.NewPaymentHandler(app.OrderService, logger),
		Auth:    handler.NewAuthHandler(app.AuthService, app.CartService, app.Sessions, false, logger),
		Admin:   handler.NewAdminHandler(app.ProductService, app.OrderService, logger),
		Metrics: m.Handler(),
	}, router.Options{
		AdminAPIKey:   testAPIKey,
		PaymentSecret: testPaymentSecret,
		Sessions:      app.Sessions,
		Observer:      m,
	}, logger)

	return app
}
