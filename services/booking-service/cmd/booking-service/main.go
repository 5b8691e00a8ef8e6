package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warin-ch/mediq/libs/auth"
	"github.com/warin-ch/mediq/libs/config"
	"github.com/warin-ch/mediq/libs/db"
	"github.com/warin-ch/mediq/libs/httpx"
	"github.com/warin-ch/mediq/libs/kafkax"
	otelx "github.com/warin-ch/mediq/libs/otel"
	"github.com/warin-ch/mediq/libs/runtime"
	"github.com/warin-ch/mediq/services/booking-service/internal/booking"
	"github.com/warin-ch/mediq/services/booking-service/internal/calendar"
	"github.com/warin-ch/mediq/services/booking-service/internal/consumer"
	"github.com/warin-ch/mediq/services/booking-service/internal/handlers"
	"github.com/warin-ch/mediq/services/booking-service/internal/hours"
	"github.com/warin-ch/mediq/services/booking-service/internal/inbox"
	"github.com/warin-ch/mediq/services/booking-service/internal/ledger"
	"github.com/warin-ch/mediq/services/booking-service/internal/outbox"
	"github.com/warin-ch/mediq/services/booking-service/internal/payments"
	"github.com/warin-ch/mediq/services/booking-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func slotConfigFromEnv() calendar.Config {
	cfg := calendar.DefaultConfig()
	if v, err := strconv.Atoi(config.String("SLOT_OPEN_HOUR", "")); err == nil {
		cfg.OpenHour = v
	}
	if v, err := strconv.Atoi(config.String("SLOT_CLOSE_HOUR", "")); err == nil {
		cfg.CloseHour = v
	}
	if v, err := strconv.Atoi(config.String("SLOT_STEP_MINUTES", "")); err == nil && v > 0 {
		cfg.Step = time.Duration(v) * time.Minute
	}
	if v, err := strconv.Atoi(config.String("SLOT_HORIZON_DAYS", "")); err == nil && v > 0 {
		cfg.HorizonDays = v
	}
	if v, err := strconv.Atoi(config.String("SLOT_LEAD_MINUTES", "")); err == nil && v >= 0 {
		cfg.Lead = time.Duration(v) * time.Minute
	}
	return cfg
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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

	doctorRepo := storage.NewDoctorRepository(pool)
	apptRepo := storage.NewAppointmentRepository(pool)
	slotLedger := ledger.NewPostgres(pool)
	outboxRepo := outbox.NewRepository(pool)

	svc := booking.NewService(doctorRepo, apptRepo, slotLedger, outboxRepo, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	if brokers := strings.TrimSpace(config.String("KAFKA_BROKERS", "")); brokers != "" {
		inboxRepo := inbox.NewRepository(pool)
		doctorConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
			Topic:   config.String("KAFKA_CONSUME_TOPIC", consumer.TopicDoctorUpdated),
		}, consumer.DoctorHandler(logger, doctorRepo))
		go doctorConsumer.Run(ctx)
	}

	hoursProvider, err := hours.NewProvider(config.String("DOCTOR_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("clinic hours provider init failed; using defaults", "err", err)
		hoursProvider = nil
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

	gateway := payments.NewStripeGateway(config.String("STRIPE_SECRET_KEY", ""))
	coordinator := payments.NewCoordinator(svc, gateway, payments.Config{
		SuccessURL: config.String("CHECKOUT_SUCCESS_URL", ""),
		CancelURL:  config.String("CHECKOUT_CANCEL_URL", ""),
	}, logger)

	webhookTolerance := 0
	if v, err := strconv.Atoi(config.String("STRIPE_WEBHOOK_TOLERANCE_SECONDS", "")); err == nil {
		webhookTolerance = v
	}

	bookingHandler := handlers.NewBookingHandler(svc, doctorRepo, slotLedger, hoursProvider, slotConfigFromEnv(), logger)
	paymentHandler := handlers.NewPaymentHandler(coordinator, svc, logger, handlers.PaymentConfig{
		StripeWebhookSecret:           config.String("STRIPE_WEBHOOK_SECRET", ""),
		StripeWebhookToleranceSeconds: webhookTolerance,
	})

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/public/doctors", bookingHandler.Doctors)
	mux.HandleFunc("/api/v1/public/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/appointments", verifier.RequireAuth(bookingHandler.Create))
	mux.HandleFunc("/api/v1/appointments/list", verifier.RequireAuth(bookingHandler.List))
	mux.HandleFunc("/api/v1/appointments/cancel", verifier.RequireAuth(bookingHandler.Cancel))
	mux.HandleFunc("/api/v1/payments/checkout", verifier.RequireAuth(paymentHandler.Checkout))
	mux.HandleFunc("/api/v1/payments/verify", verifier.RequireAuth(paymentHandler.Verify))
	// Stripe reaches this path without a JWT; signature verification is the auth.
	mux.HandleFunc("/webhooks/stripe", paymentHandler.StripeWebhook)

	limitPerMinute := 120
	if v, err := strconv.Atoi(config.String("RATE_LIMIT_PER_MINUTE", "")); err == nil && v > 0 {
		limitPerMinute = v
	}
	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB := 0
		if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil && v >= 0 {
			redisDB = v
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	corsMaxAgeSeconds := 600
	if v, err := strconv.Atoi(config.String("CORS_MAX_AGE_SECONDS", "")); err == nil && v > 0 {
		corsMaxAgeSeconds = v
	}
	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
			AllowCredentials: isTruthy(config.String("CORS_ALLOW_CREDENTIALS", "false")),
			MaxAge:           time.Duration(corsMaxAgeSeconds) * time.Second,
		}),
		rateLimitMW,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
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
