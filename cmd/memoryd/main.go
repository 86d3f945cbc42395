// Command memoryd is the semantic memory service: it serves the HTTP
// front door, runs the ingestion consumer, and drives the scheduled
// curator loop.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/manifold-labs/memoryd/internal/ai"
	"github.com/manifold-labs/memoryd/internal/config"
	"github.com/manifold-labs/memoryd/internal/curator"
	"github.com/manifold-labs/memoryd/internal/httpapi"
	"github.com/manifold-labs/memoryd/internal/ingest"
	"github.com/manifold-labs/memoryd/internal/observability"
	"github.com/manifold-labs/memoryd/internal/queue"
	"github.com/manifold-labs/memoryd/internal/retrieve"
	signalpkg "github.com/manifold-labs/memoryd/internal/signal"
	"github.com/manifold-labs/memoryd/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("memoryd")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observability.InitLogger("", cfg.LogLevel)

	baseCtx := context.Background()
	ctx, cancel := ossignal.NotifyContext(baseCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tp, err := observability.InitTracing("memoryd")
	if err != nil {
		log.Warn().Err(err).Msg("tracing_init_failed")
	}
	if tp != nil {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 7 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 7 * time.Second,
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 50,
		MaxConnsPerHost:     200,
		IdleConnTimeout:     90 * time.Second,
	}
	httpClient := observability.NewHTTPClient(&http.Client{Transport: tr})

	gateway, err := ai.NewGateway(ctx, cfg.AI, httpClient)
	if err != nil {
		return fmt.Errorf("init ai gateway: %w", err)
	}

	vectors, rows, closeStores, err := buildStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init stores: %w", err)
	}
	defer closeStores()

	producer, consumerTransport, closeQueue, err := buildQueue(cfg)
	if err != nil {
		return fmt.Errorf("init queue: %w", err)
	}
	defer closeQueue()

	signals := signalpkg.New()

	front := ingest.NewFrontDoor(producer, signals)
	ingestConsumer := ingest.NewConsumer(gateway, vectors, rows, signals)
	if cfg.RedisURL != "" {
		dedupe, derr := ingest.NewRedisDedupeCache(cfg.RedisURL, 5*time.Minute)
		if derr != nil {
			log.Warn().Err(derr).Msg("dedupe_cache_init_failed")
		} else {
			ingestConsumer = ingestConsumer.WithDedupeCache(dedupe)
			defer func() { _ = dedupe.Close() }()
		}
	}
	engine := retrieve.NewEngine(gateway, vectors, rows)
	cur := curator.New(gateway, vectors, rows, curator.Config{
		BatchW:    cfg.CuratorBatchW,
		CapK:      cfg.CuratorCapK,
		Threshold: cfg.SimilarityThreshold,
		Deadline:  cfg.CuratorDeadline,
	})

	srv := httpapi.NewServer(front, engine, gateway, cur, signals)
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: observability.WrapHandler("memoryd.http", srv)}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http_listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http_server_failed")
		}
	}()

	go func() {
		if err := consumerTransport.Run(ctx, ingestConsumer.Handle); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("ingest_consumer_stopped")
		}
	}()

	go runCuratorSchedule(ctx, cfg.CuratorSchedule, cur)

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

func runCuratorSchedule(ctx context.Context, cronExpr string, cur *curator.Curator) {
	for {
		next := nextDailyRun(cronExpr, time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			report := cur.Run(ctx)
			log.Info().
				Int("candidates", report.Candidates).
				Int("consolidated", report.Consolidated).
				Int("processed", report.Processed).
				Int("failed", report.Failed).
				Msg("curator_run_complete")
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func buildStores(ctx context.Context, cfg config.Config) (store.VectorStore, store.MemoryStore, func(), error) {
	var vectors store.VectorStore
	var rows store.MemoryStore
	var err error

	if cfg.QdrantURL != "" {
		vectors, err = store.NewQdrantStore(withAPIKey(cfg.QdrantURL, cfg.QdrantAPIKey), cfg.QdrantCollection, cfg.EmbeddingDimensions)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("qdrant: %w", err)
		}
	} else {
		vectors = store.NewMemoryVectorStore(cfg.EmbeddingDimensions)
	}

	if cfg.DatabaseURL != "" {
		pool, perr := store.NewPostgresPool(ctx, cfg.DatabaseURL)
		if perr != nil {
			return nil, nil, nil, fmt.Errorf("postgres: %w", perr)
		}
		rows, err = store.NewPostgresMemoryStore(ctx, pool)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("postgres: %w", err)
		}
	} else {
		rows = store.NewInMemoryMemoryStore()
	}

	closeFn := func() {
		_ = vectors.Close()
		_ = rows.Close()
	}
	return vectors, rows, closeFn, nil
}

// withAPIKey folds an API key into the qdrant DSN's query string, matching
// the "api_key" query parameter NewQdrantStore expects.
func withAPIKey(dsn, apiKey string) string {
	if apiKey == "" {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "api_key=" + apiKey
}

func buildQueue(cfg config.Config) (queue.Producer, queue.Consumer, func(), error) {
	if cfg.KafkaBrokers == "" {
		q := queue.NewInMemoryQueue(64)
		return q, q, func() { _ = q.Close() }, nil
	}

	producer, err := queue.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, nil, nil, err
	}

	brokers := make([]string, 0)
	for _, b := range strings.Split(cfg.KafkaBrokers, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	consumer := queue.NewKafkaConsumer(brokers, cfg.KafkaGroupID, cfg.KafkaTopic, cfg.KafkaDLQTopic, 4)

	closeFn := func() {
		_ = producer.Close()
		_ = consumer.Close()
	}
	return producer, consumer, closeFn, nil
}
