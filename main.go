package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"sitewatch-cloud/internal/audit"
	"sitewatch-cloud/internal/auth"
	"sitewatch-cloud/internal/observability/metrics"
	replayapp "sitewatch-cloud/internal/replay/application"
	replayhttp "sitewatch-cloud/internal/replay/interfaces/http"
	"sitewatch-cloud/internal/replay/playback"
	snapshots "sitewatch-cloud/internal/snapshots/domain"
	snapshotpostgres "sitewatch-cloud/internal/snapshots/infrastructure/postgres"
	snapshotremote "sitewatch-cloud/internal/snapshots/infrastructure/remote"
	devicehttp "sitewatch-cloud/internal/snapshots/interfaces/device"
	snapshotmqtt "sitewatch-cloud/internal/snapshots/interfaces/mqtt"
	siteapp "sitewatch-cloud/internal/sites/application"
	sitepostgres "sitewatch-cloud/internal/sites/infrastructure/postgres"
	sitehttp "sitewatch-cloud/internal/sites/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	siteChecker := auth.NewSiteChecker(db)
	auditRepo := audit.NewRepository(db)

	snapshotRepo := snapshotpostgres.NewSnapshotRepository(db)

	var source snapshots.SnapshotSource
	if cfg.SnapshotStoreURL != "" {
		remote, err := snapshotremote.NewClient(cfg.SnapshotStoreURL, cfg.SnapshotStoreToken)
		if err != nil {
			logger.Fatalf("snapshot store client error: %v", err)
		}
		source = remote
	} else {
		source = snapshotpostgres.NewSnapshotQuery(db)
	}

	replayCfg, err := replayapp.LoadConfig()
	if err != nil {
		logger.Fatalf("replay config error: %v", err)
	}
	replayService, err := replayapp.NewService(source, replayCfg, logger)
	if err != nil {
		logger.Fatalf("replay service error: %v", err)
	}

	replayHandler, err := replayhttp.NewReplayHandler(replayService, siteChecker, auditRepo, logger)
	if err != nil {
		logger.Fatalf("replay handler error: %v", err)
	}
	sessionHandler, err := replayhttp.NewSessionHandler(replayService, playback.TimerScheduler{}, siteChecker, auditRepo, logger)
	if err != nil {
		logger.Fatalf("session handler error: %v", err)
	}
	defer sessionHandler.Close()

	ingestHandler, err := devicehttp.NewIngestHandler(snapshotRepo, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}

	siteService, err := siteapp.NewSiteService(sitepostgres.NewSiteRepository(db))
	if err != nil {
		logger.Fatalf("site service error: %v", err)
	}
	siteHandler, err := sitehttp.NewSiteHandler(siteService, logger)
	if err != nil {
		logger.Fatalf("site handler error: %v", err)
	}

	if cfg.MQTTBrokerURL != "" {
		consumer, err := snapshotmqtt.NewConsumer(snapshotmqtt.Config{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Topic:     cfg.MQTTTopic,
			QoS:       1,
		}, snapshotRepo, logger)
		if err != nil {
			logger.Fatalf("mqtt consumer error: %v", err)
		}
		if err := consumer.Start(); err != nil {
			logger.Fatalf("mqtt subscribe error: %v", err)
		}
		defer consumer.Close()
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	gatewayAuth := auth.NewGatewayAuth([]byte(cfg.IngestSecret), time.Duration(cfg.IngestSkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/ingest/devices/snapshot", gatewayAuth.Wrap(ingestHandler))
	mux.Handle("/api/v1/sites", siteHandler)
	mux.Handle("/api/v1/sites/", replayHandler)
	mux.Handle("/api/v1/replay/sessions", sessionHandler)
	mux.Handle("/api/v1/replay/sessions/", sessionHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL        string
	HTTPAddr           string
	SnapshotStoreURL   string
	SnapshotStoreToken string
	MQTTBrokerURL      string
	MQTTClientID       string
	MQTTUsername       string
	MQTTPassword       string
	MQTTTopic          string
	JWTSecret          string
	IngestSecret       string
	IngestSkewSeconds  int
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:        getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		SnapshotStoreURL:   getenvDefault("SNAPSHOT_STORE_URL", ""),
		SnapshotStoreToken: getenvDefault("SNAPSHOT_STORE_TOKEN", ""),
		MQTTBrokerURL:      getenvDefault("MQTT_BROKER_URL", ""),
		MQTTClientID:       getenvDefault("MQTT_CLIENT_ID", "sitewatch-ingest"),
		MQTTUsername:       getenvDefault("MQTT_USERNAME", ""),
		MQTTPassword:       getenvDefault("MQTT_PASSWORD", ""),
		MQTTTopic:          getenvDefault("MQTT_TOPIC", "sites/+/devices/data"),
		JWTSecret:          getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IngestSecret:       getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestSkewSeconds:  getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps event streams working behind the wrapper.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
