package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/warin-ch/mediq/libs/auth"
	"github.com/warin-ch/mediq/libs/config"
	"github.com/warin-ch/mediq/libs/db"
	"github.com/warin-ch/mediq/libs/httpx"
	"github.com/warin-ch/mediq/libs/kafkax"
	otelx "github.com/warin-ch/mediq/libs/otel"
	"github.com/warin-ch/mediq/libs/runtime"
	"github.com/warin-ch/mediq/services/doctor-service/internal/handlers"
	"github.com/warin-ch/mediq/services/doctor-service/internal/outbox"
	"github.com/warin-ch/mediq/services/doctor-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "doctor-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	if err := startGrpcServer(ctx, logger, pool, repo); err != nil {
		logger.Error("grpc server init failed", "err", err)
	}

	var jwksClient *auth.JWKSClient
	if jwksURL := strings.TrimSpace(config.String("AUTH_JWKS_URL", "")); jwksURL != "" {
		jwksTTL := 5 * time.Minute
		if v, err := strconv.Atoi(config.String("AUTH_JWKS_TTL_SECONDS", "")); err == nil && v > 0 {
			jwksTTL = time.Duration(v) * time.Second
		}
		jwksClient = auth.NewJWKSClient(jwksURL, jwksTTL)
	}
	verifier := handlers.NewVerifier(config.String("AUTH_JWT_SECRET", ""), jwksClient)

	handler := handlers.New(repo, outboxRepo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/public/doctors", handler.List)
	mux.HandleFunc("/api/v1/admin/doctors", verifier.RequireRole(handler.Create, "admin"))
	mux.HandleFunc("/api/v1/admin/doctors/fee", verifier.RequireRole(handler.UpdateFee, "admin"))
	mux.HandleFunc("/api/v1/doctors/availability", verifier.RequireRole(handler.SetAvailability, "doctor", "admin"))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "doctor")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
