package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-carriers/internal/auth"
	"github.com/noah-isme/toko-carriers/internal/carrier"
	"github.com/noah-isme/toko-carriers/internal/config"
	"github.com/noah-isme/toko-carriers/internal/credentials"
	"github.com/noah-isme/toko-carriers/internal/health"
	"github.com/noah-isme/toko-carriers/internal/laposte"
	"github.com/noah-isme/toko-carriers/internal/mondialrelay"
	"github.com/noah-isme/toko-carriers/internal/obs"
	"github.com/noah-isme/toko-carriers/internal/ratelimit"
	"github.com/noah-isme/toko-carriers/internal/resilience"
	"github.com/noah-isme/toko-carriers/internal/security"
	"github.com/noah-isme/toko-carriers/internal/shipping"
)

const serviceName = "toko-carriers"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("service", serviceName).Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "toko")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   serviceName,
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if cfg.DBAutoMigrate {
		if err := credentials.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migrate database")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = serviceName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	outbound := &http.Client{Transport: obs.OutboundTransport(nil)}
	mrBreaker := newCarrierBreaker(cfg.Outbound, "mondial-relay", logger)
	lpBreaker := newCarrierBreaker(cfg.Outbound, "laposte", logger)

	mrClient := mondialrelay.NewClient(carrierHTTPClient(outbound, cfg.Outbound, mrBreaker), cfg.MondialRelayEndpoint)
	lpClient := laposte.NewClient(carrierHTTPClient(outbound, cfg.Outbound, lpBreaker), cfg.LaPosteBaseURL)

	resolver := credentials.Resolver{
		Store:    credentials.PGStore{DB: pool},
		Fallback: envCredentials(cfg.CarrierEnv),
	}
	registry := carrier.Default()

	locator := shipping.RelayLocator{
		Credentials: resolver,
		Client:      mrClient,
		MaxResults:  cfg.RelayPointsMaxResults,
	}
	publicHandler := &shipping.PublicHandler{Relays: locator, Registry: registry}
	adminHandler := &shipping.AdminHandler{
		Relays: locator,
		Tester: shipping.ConnectionTester{LaPoste: lpClient, MondialRelay: mrClient, Registry: registry},
		Tracker: shipping.Tracker{
			Provider: shipping.LaPosteProvider{Credentials: resolver, Client: lpClient},
			Registry: registry,
		},
		Labels:      shipping.LabelService{Credentials: resolver, Client: mrClient},
		Credentials: resolver,
		Registry:    registry,
		Breakers:    []*resilience.Breaker{mrBreaker, lpBreaker},
	}

	authService, err := auth.NewService(auth.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authMiddleware := auth.Middleware{Service: authService, AccessCookie: "access_token"}

	relayLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:"},
		Config: ratelimit.Config{
			Key:    ratelimit.ClientIPKey("relay"),
			Window: cfg.RelayLimit.Window,
			Max:    cfg.RelayLimit.Max,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("relay rate limiter unavailable")
		},
		Rejected: http.HandlerFunc(publicHandler.RelayPointsThrottled),
	}
	bodyLimit := security.BodyLimit{Max: 64 << 10}
	publicHeaders := security.Headers{Enable: true, EnableHSTS: cfg.IsProduction(), HSTSMaxAge: 31536000}
	adminHeaders := publicHeaders
	adminHeaders.NoStore = true

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", !cfg.IsProduction()) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{Probes: []health.Probe{
		{Name: "db", Timeout: envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500), Ping: pool.Ping},
		{Name: "redis", Timeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300), Ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}},
	}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Group(func(pub chi.Router) {
			pub.Use(publicHeaders.Middleware)
			pub.With(relayLimit.Middleware).Get("/relay-points", publicHandler.RelayPoints)
			pub.Get("/carriers", publicHandler.Carriers)
			pub.Get("/carriers/tracking-url", publicHandler.TrackingURL)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(adminHeaders.Middleware)
			admin.Use(authMiddleware.RequireAuth)
			admin.Use(auth.RequireRole(auth.RoleAdmin, auth.RoleSuperAdmin))
			admin.Get("/orders/{id}/relay-points", adminHandler.RelayPoints)
			admin.Get("/carriers", adminHandler.Carriers)
			admin.Get("/shipments/track", adminHandler.Track)
			admin.Group(func(w chi.Router) {
				w.Use(bodyLimit.Middleware)
				w.Post("/carriers/test", adminHandler.TestConnection)
				w.Post("/carriers/mondial-relay/labels", adminHandler.CreateMondialRelayLabel)
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Outbound.Timeout*time.Duration(max(cfg.Outbound.RetryMaxAttempts, 1)) + 10*time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server exited unexpectedly")
		}
	case <-sigCtx.Done():
		logger.Info().Msg("shutdown requested")
		health.SetReady(false)
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 15000))
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
}

func newCarrierBreaker(cfg config.Outbound, target string, logger zerolog.Logger) *resilience.Breaker {
	return resilience.NewBreaker(cfg.CircuitMinRequests, cfg.CircuitFailureRate, cfg.CircuitOpenFor).
		WithTarget(target).
		WithLogger(logger)
}

func carrierHTTPClient(client *http.Client, cfg config.Outbound, breaker *resilience.Breaker) resilience.HTTPClient {
	return resilience.HTTPClient{
		Client:      client,
		Breaker:     breaker,
		BaseBackoff: cfg.RetryBase,
		MaxAttempts: cfg.RetryMaxAttempts,
		Jitter:      cfg.RetryJitter,
		Timeout:     cfg.Timeout,
	}
}

// envCredentials exposes the environment fallbacks under the same keys as the
// site_config table. Blank values are left out so they never shadow anything.
func envCredentials(env config.CarrierEnv) *credentials.MemoryStore {
	store := credentials.NewMemoryStore(nil)
	for key, value := range map[string]string{
		credentials.KeyMondialRelayEnseigne:   env.MondialRelayEnseigne,
		credentials.KeyMondialRelayPrivateKey: env.MondialRelayPrivateKey,
		credentials.KeyLaPosteAPIKey:          env.LaPosteAPIKey,
		credentials.KeyColissimoContract:      env.ColissimoContract,
		credentials.KeyColissimoPassword:      env.ColissimoPassword,
	} {
		if value != "" {
			store.Set(key, value)
		}
	}
	return store
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
