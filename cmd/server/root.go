package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/dgallion1/docclass/internal/config"
	"github.com/dgallion1/docclass/internal/inference"
	"github.com/dgallion1/docclass/internal/metrics"
	"github.com/dgallion1/docclass/internal/pipeline"
	"github.com/dgallion1/docclass/internal/queue"
	"github.com/dgallion1/docclass/internal/store"
	"github.com/dgallion1/docclass/internal/taxonomy"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docclass",
		Short:         "Classify documents against a fixed taxonomy",
		Long:          "docclass extracts text from uploaded documents, chunks it and scores it against a label taxonomy with a zero-shot model.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newClassifyCmd())
	return root
}

// setup loads configuration and the logger shared by every command.
func setup() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	log := newLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// app is the wired object graph behind serve and classify.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	store    *store.Store
	queue    queue.Queue
	client   *inference.Client
	orch     *pipeline.Orchestrator
	registry *prometheus.Registry
}

func buildApp(ctx context.Context, cfg config.Config, log *slog.Logger, q queue.Queue) (*app, error) {
	tax, err := taxonomy.Load(cfg.TaxonomyFile)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, store.Config{Driver: cfg.DBDriver, DSN: cfg.DatabaseURL}, log)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// TOKENIZER_ENCODING=estimate counts words instead of BPE tokens.
	var tokens *inference.TokenizerCache
	if cfg.TokenizerEncoding != config.EstimateEncoding {
		tokens = inference.NewTokenizerCache(cfg.ModelCacheSize, cfg.TokenizerEncoding, log)
		if err := tokens.Warm(append([]string{cfg.DefaultModel}, cfg.AllowedModels...)); err != nil {
			st.Close()
			return nil, err
		}
	}

	client := inference.NewClient(inference.ClientConfig{
		BaseURL:    cfg.InferenceURL,
		APIKey:     cfg.InferenceAPIKey,
		EmbedModel: cfg.EmbedModel,
		Timeout:    cfg.InferenceTimeout,
		Tokenizers: tokens,
		Observer:   m.ObserveInference,
	})

	if q == nil {
		q, err = newQueue(ctx, cfg, log)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	orch := pipeline.NewOrchestrator(cfg, pipeline.Deps{
		Store:    st,
		Queue:    q,
		Provider: client,
		Labels:   tax.Labels,
		Metrics:  m,
		Log:      log,
	})

	log.Info("taxonomy loaded", "labels", len(tax.Labels), "file", cfg.TaxonomyFile)
	return &app{cfg: cfg, log: log, store: st, queue: q, client: client, orch: orch, registry: reg}, nil
}

func newQueue(ctx context.Context, cfg config.Config, log *slog.Logger) (queue.Queue, error) {
	switch cfg.QueueKind {
	case "nats":
		return queue.NewNATSQueue(ctx, queue.NATSConfig{
			URL:        cfg.NATSURL,
			Stream:     cfg.NATSStream,
			Subject:    cfg.NATSSubject,
			Consumer:   cfg.NATSConsumer,
			AckWait:    cfg.NATSAckWait,
			MaxDeliver: cfg.NATSMaxDeliver,
		}, log)
	case "memory", "":
		return queue.NewMemoryQueue(cfg.MaxQueueSize), nil
	default:
		return nil, fmt.Errorf("unknown queue kind %q", cfg.QueueKind)
	}
}

func (a *app) close() {
	a.client.Close()
	if err := a.store.Close(); err != nil {
		a.log.Warn("close store", "error", err)
	}
}
