package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tagpool/tagpool/pkg/config"
	"github.com/tagpool/tagpool/pkg/corelog"
	"github.com/tagpool/tagpool/pkg/tagpool"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to a PoolConfig YAML file; defaults built in if empty")
	flag.Parse()

	logger := corelog.NewDefaultLogger()

	cfg := tagpool.PoolConfig{
		Generic: 2,
		Groups:  map[string]int{"ingest": 3, "report": 1},
	}
	if configPath != "" {
		if err := config.LoadWithEnv(configPath, "TAGPOOL", &cfg); err != nil {
			logger.Errorf("failed to load pool config: %v", err)
			return
		}
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		logger.Errorf("failed to build trace exporter: %v", err)
		return
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	defer tp.Shutdown(context.Background())
	otel.SetTracerProvider(tp)

	registry := prometheus.NewRegistry()
	metrics := tagpool.NewMetrics(registry)

	executor := tagpool.NewGoroutineExecutor(tagpool.GoroutineExecutorConfig{
		Workers:   8,
		QueueSize: 64,
		Logger:    logger,
	})

	pool, err := tagpool.NewFromConfig(cfg, executor,
		tagpool.WithMetrics(metrics),
		tagpool.WithTracerProvider(tp),
		tagpool.WithLogger(logger),
	)
	if err != nil {
		logger.Errorf("failed to build pool: %v", err)
		return
	}

	ingest := tagpool.NewTag("ingest")
	report := tagpool.NewTag("report")

	work := func(ctx context.Context, args ...any) (any, error) {
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)
		return args[0], nil
	}

	for i := 0; i < 6; i++ {
		if _, err := pool.Put(ingest, work, []any{i}); err != nil {
			logger.Warnf("put failed: %v", err)
		}
	}
	if _, err := pool.Put(report, work, []any{"daily-summary"}); err != nil {
		logger.Warnf("put failed: %v", err)
	}

	go func() {
		if err := pool.Stop(true); err != nil {
			logger.Warnf("stop failed: %v", err)
		}
	}()

	for {
		o, ok := pool.Next()
		if !ok {
			break
		}
		fmt.Printf("tag=%s value=%v err=%v\n", o.Tag, o.Value, o.Err)
	}
}
