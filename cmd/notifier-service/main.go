package main

import (
	"context"
	"log"
	"net"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/stdlib"
	amqp "github.com/rabbitmq/amqp091-go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/MikeMC777/ecom-saas/internal/config"
	"github.com/MikeMC777/ecom-saas/internal/db"
	"github.com/MikeMC777/ecom-saas/internal/notify"
)

const serviceName = "notifier"

func main() {
	cfg := config.Load()

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
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	gs, hs := newGRPCServer()
	l, err := net.Listen("tcp", cfg.NotifierGRPCAddr)
	if err != nil {
		log.Fatal(err)
	}
	go func() {
		log.Printf("notifier-service grpc health listening on %s", cfg.NotifierGRPCAddr)
		if err := gs.Serve(l); err != nil {
			log.Printf("grpc serve: %v", err)
		}
	}()

	if cfg.AMQPURL == "" {
		log.Printf("[notify] AMQP_URL not set, consumer disabled")
	} else {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("amqp dial: %v", err)
		}
		defer conn.Close()

		h := notify.NewHandler(notify.LogMailer{}, notify.NewSQLEmailLogRepo(sqlDB))
		if err := notify.Consume(ctx, conn, cfg.NotificationQueue, h); err != nil {
			log.Fatalf("consume %s: %v", cfg.NotificationQueue, err)
		}
		log.Printf("[notify] consuming queue %s", cfg.NotificationQueue)
		go watch(conn, hs)
	}
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	<-ctx.Done()
	hs.Shutdown()
	gs.GracefulStop()
}

func newGRPCServer() (*grpc.Server, *health.Server) {
	gs := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs, hs
}

// watch reports NOT_SERVING once the broker connection is gone.
func watch(conn *amqp.Connection, hs *health.Server) {
	if err := <-conn.NotifyClose(make(chan *amqp.Error, 1)); err != nil {
		log.Printf("[notify] broker connection closed: %v", err)
	}
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
}
