package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/MikeMC777/ecom-saas/docs"
	"github.com/MikeMC777/ecom-saas/internal/auth"
	"github.com/MikeMC777/ecom-saas/internal/config"
	"github.com/MikeMC777/ecom-saas/internal/db"
	"github.com/MikeMC777/ecom-saas/internal/httpx"
	"github.com/MikeMC777/ecom-saas/internal/notify"
	"github.com/MikeMC777/ecom-saas/internal/order"
	"github.com/MikeMC777/ecom-saas/internal/pricing"
	"github.com/MikeMC777/ecom-saas/internal/product"
	"github.com/MikeMC777/ecom-saas/internal/tenant"
	"github.com/MikeMC777/ecom-saas/internal/user"
)

// @title        Storefront API
// @version      1.0
// @description  Tenant scoped catalog, customer accounts and order placement.
// @BasePath     /
func main() {
	cfg := config.Load()
	if err := pricing.Validate(); err != nil {
		log.Fatalf("[pricing] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()
	if cfg.Migrate {
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatalf("db migrate: %v", err)
		}
	}

	tokens, err := auth.NewTokens(cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}
	dispatcher, closeBroker, err := notify.NewDispatcher(cfg.AMQPURL, cfg.NotificationQueue)
	if err != nil {
		log.Fatalf("notify: %v", err)
	}
	defer closeBroker()

	orders := order.NewService(order.NewPGRepo(pool), dispatcher)
	catalog := product.NewPGRepo(pool)
	s := &server{
		users:      user.NewService(user.NewPGRepo(pool), tokens),
		products:   product.NewService(catalog),
		categories: product.NewCategoryService(catalog),
		orders:     orders,
	}

	r := newRouter(s, tenant.NewResolver(tenant.NewPGRepo(pool), cfg.PlatformHosts), tokens, cfg.CORSOrigins)

	srv := &http.Server{Addr: cfg.StorefrontAddr, Handler: r}
	go func() {
		log.Printf("storefront-service listening on %s", cfg.StorefrontAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		log.Printf("shutdown: %v", err)
	}
	orders.Wait()
}

func newRouter(s *server, resolver httpx.StoreResolver, tokens httpx.TokenParser, origins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger())
	if len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.GET("/healthz", httpx.Health)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api", httpx.Tenant(resolver), httpx.Authenticate(tokens))
	api.POST("/auth/register", registerHandler(s.users))
	api.POST("/auth/login", loginHandler(s.users))
	api.GET("/auth/me", httpx.RequireAuth(), meHandler(s.users))
	api.GET("/products", listProductsHandler(s.products))
	api.GET("/products/:id", getProductHandler(s.products))
	api.GET("/categories", listCategoriesHandler(s.categories))

	mine := api.Group("/orders", httpx.RequireAuth())
	mine.POST("", placeOrderHandler(s.orders))
	mine.GET("", listMyOrdersHandler(s.orders))
	mine.GET("/:id", getMyOrderHandler(s.orders))
	return r
}
