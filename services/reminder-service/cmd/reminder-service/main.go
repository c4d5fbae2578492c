package main

import (
	"context"
	"net/http"
	"time"

	"github.com/carepulse/portal/libs/config"
	"github.com/carepulse/portal/libs/db"
	"github.com/carepulse/portal/libs/httpx"
	"github.com/carepulse/portal/libs/kafkax"
	otelx "github.com/carepulse/portal/libs/otel"
	"github.com/carepulse/portal/libs/runtime"
	"github.com/carepulse/portal/services/reminder-service/internal/attendance"
	"github.com/carepulse/portal/services/reminder-service/internal/consumer"
	"github.com/carepulse/portal/services/reminder-service/internal/dispatcher"
	"github.com/carepulse/portal/services/reminder-service/internal/handlers"
	"github.com/carepulse/portal/services/reminder-service/internal/inbox"
	"github.com/carepulse/portal/services/reminder-service/internal/metrics"
	"github.com/carepulse/portal/services/reminder-service/internal/outbox"
	"github.com/carepulse/portal/services/reminder-service/internal/policy"
	"github.com/carepulse/portal/services/reminder-service/internal/storage"
	"github.com/carepulse/portal/services/reminder-service/migrations"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "reminder-service")
	port, err := config.Port("PORT", "8090")
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
	maxConns, err := config.Int("DB_MAX_CONNS", 10)
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(maxConns), AppName: service})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if config.Bool("DB_AUTO_MIGRATE", true) {
		if err := migrations.Apply(ctx, pool); err != nil {
			logger.Error("schema migration failed", "err", err)
			panic(err)
		}
	}

	var (
		rdb           *redis.Client
		policyBackend policy.Backend
		limiter       httpx.Limiter
	)
	limitPerMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		panic(err)
	}
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		redisDB, err := config.Int("REDIS_DB", 0)
		if err != nil {
			panic(err)
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()
		policyBackend = policy.NewRedisBackend(rdb, config.String("POLICY_KEY_PREFIX", policy.DefaultRedisPrefix))
		limiter = httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl:reminder"))
		logger.Info("policy store and rate limiting on redis", "redis_addr", addr)
	} else {
		policyBackend = policy.NewMemoryBackend()
		limiter = httpx.NewMemoryRateLimiter(limitPerMinute, time.Minute)
		logger.Warn("REDIS_ADDR not set; reminder policies are kept in memory, after a restart each appointment falls back to its booking opt-in")
	}

	appts := storage.NewAppointmentRepository(pool)
	policies := policy.NewStore(policyBackend, logger)
	outboxRepo := outbox.NewRepository(pool)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reminderMetrics := metrics.MustNewMetrics(registry)

	interval, err := config.Seconds("REMINDER_TICK_SECONDS", dispatcher.DefaultInterval)
	if err != nil {
		panic(err)
	}
	loop := dispatcher.New(appts, policies, newSender(logger), logger, dispatcher.Config{
		Interval: interval,
		Recorder: reminderMetrics,
		Observer: dispatcher.Observers{
			dispatcher.NewLogObserver(logger),
			reminderMetrics,
			outbox.NewObserver(outboxRepo, logger),
		},
	})
	defer loop.Stop()
	if _, err := loop.StartIfPending(ctx); err != nil {
		logger.Error("reminder loop not started", "err", err)
	}

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	if brokers != "" {
		booking := consumer.NewBookingHandler(appts, policies, loop, logger)
		eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "reminder-service"),
			Topic:   config.String("KAFKA_CONSUME_TOPIC", consumer.TopicAppointmentBooked),
		}, booking.Handle)
		go eventConsumer.Run(ctx)
	} else {
		logger.Warn("booking consumer disabled (no kafka brokers configured)")
	}

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	}
	if rdb != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: policy.RedisReadyCheck(rdb)})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	reminderHandler := handlers.NewReminderHandler(appts, policies, loop, logger)
	appointmentHandler := handlers.NewAppointmentHandler(attendance.NewHandler(appts, policies, logger), appts, logger)
	mux.HandleFunc("/api/v1/reminders/policy", reminderHandler.Policy)
	mux.HandleFunc("/api/v1/reminders/plan", reminderHandler.Plan)
	mux.HandleFunc("/api/v1/reminders/tick", reminderHandler.Tick)
	mux.HandleFunc("/api/v1/appointments/attended", appointmentHandler.Attended)
	mux.HandleFunc("/api/v1/appointments/no-show", appointmentHandler.NoShow)
	mux.HandleFunc("/api/v1/appointments/confirm", appointmentHandler.Confirm)

	requestTimeout, err := config.Seconds("REQUEST_TIMEOUT_SECONDS", 10*time.Second)
	if err != nil {
		panic(err)
	}
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(requestTimeout),
		httpx.RateLimit(limiter, logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)),
	)
	handler = otelhttp.NewHandler(handler, "reminder")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	_ = runtime.Serve(ctx, srv, 10*time.Second, logger)
}
