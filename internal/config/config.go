package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Storage
	DBDriver    string // "sqlite" or "postgres"
	DatabaseURL string

	// Job queue
	QueueKind      string // "memory" or "nats"
	NATSURL        string
	NATSStream     string
	NATSSubject    string
	NATSConsumer   string
	NATSMaxDeliver int
	NATSAckWait    time.Duration

	// Worker pool
	WorkerCount           int
	MaxQueueSize          int
	MaxConcurrentClassify int

	// Inference backend
	InferenceURL      string
	InferenceAPIKey   string
	InferenceTimeout  time.Duration
	EmbedModel        string
	DefaultModel      string
	AllowedModels     []string
	TokenizerEncoding string // BPE encoding for unknown models; "estimate" counts words instead.
	ModelCacheSize    int

	// Chunking defaults
	DefaultStrategy     string
	DefaultChunkSize    int
	DefaultChunkOverlap int
	MaxTokens           int
	MergeThreshold      float64

	// Taxonomy
	TaxonomyFile string

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	LogLevel string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8090")

	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("database_url", "docclass.db")

	v.SetDefault("queue_kind", "memory")
	v.SetDefault("nats_url", "nats://localhost:4222")
	v.SetDefault("nats_stream", "DOCCLASS")
	v.SetDefault("nats_subject", "docclass.jobs")
	v.SetDefault("nats_consumer", "docclass-workers")
	v.SetDefault("nats_max_deliver", 3)
	v.SetDefault("nats_ack_wait", 10*time.Minute)

	v.SetDefault("worker_count", 4)
	v.SetDefault("max_queue_size", 100)
	v.SetDefault("max_concurrent_classify", 4)

	v.SetDefault("inference_url", "http://localhost:11433")
	v.SetDefault("inference_timeout", 120*time.Second)
	v.SetDefault("embed_model", "sentence-transformers/all-MiniLM-L6-v2")
	v.SetDefault("default_model", "knowledgator/comprehend_it-base")
	v.SetDefault("allowed_models", []string{"knowledgator/comprehend_it-base", "facebook/bart-large-mnli"})
	v.SetDefault("tokenizer_encoding", "cl100k_base")
	v.SetDefault("model_cache_size", 3)

	v.SetDefault("default_strategy", "paragraph")
	v.SetDefault("default_chunk_size", 200)
	v.SetDefault("default_chunk_overlap", 50)
	v.SetDefault("max_tokens", 512)
	v.SetDefault("merge_threshold", 0.85)

	v.SetDefault("max_upload_bytes", int64(52428800)) // 50MB
	v.SetDefault("job_ttl", time.Hour)
	v.SetDefault("pdf_fallback_pdftotext", true)
	v.SetDefault("log_level", "info")
}

// Load reads configuration from environment variables (upper-cased keys,
// e.g. WORKER_COUNT) and, when CONFIG_FILE is set, from that file first.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := Config{
		Port: v.GetString("port"),

		APIKey: v.GetString("docclass_api_key"),

		DBDriver:    strings.ToLower(v.GetString("db_driver")),
		DatabaseURL: v.GetString("database_url"),

		QueueKind:      strings.ToLower(v.GetString("queue_kind")),
		NATSURL:        v.GetString("nats_url"),
		NATSStream:     v.GetString("nats_stream"),
		NATSSubject:    v.GetString("nats_subject"),
		NATSConsumer:   v.GetString("nats_consumer"),
		NATSMaxDeliver: v.GetInt("nats_max_deliver"),
		NATSAckWait:    v.GetDuration("nats_ack_wait"),

		WorkerCount:           v.GetInt("worker_count"),
		MaxQueueSize:          v.GetInt("max_queue_size"),
		MaxConcurrentClassify: v.GetInt("max_concurrent_classify"),

		InferenceURL:      strings.TrimRight(v.GetString("inference_url"), "/"),
		InferenceAPIKey:   v.GetString("inference_api_key"),
		InferenceTimeout:  v.GetDuration("inference_timeout"),
		EmbedModel:        v.GetString("embed_model"),
		DefaultModel:      v.GetString("default_model"),
		AllowedModels:     v.GetStringSlice("allowed_models"),
		TokenizerEncoding: v.GetString("tokenizer_encoding"),
		ModelCacheSize:    v.GetInt("model_cache_size"),

		DefaultStrategy:     v.GetString("default_strategy"),
		DefaultChunkSize:    v.GetInt("default_chunk_size"),
		DefaultChunkOverlap: v.GetInt("default_chunk_overlap"),
		MaxTokens:           v.GetInt("max_tokens"),
		MergeThreshold:      v.GetFloat64("merge_threshold"),

		TaxonomyFile: v.GetString("taxonomy_file"),

		MaxUploadBytes: v.GetInt64("max_upload_bytes"),
		JobTTL:         v.GetDuration("job_ttl"),

		PDFFallbackPdftotext: v.GetBool("pdf_fallback_pdftotext"),

		LogLevel: v.GetString("log_level"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentClassify <= 0 {
		cfg.MaxConcurrentClassify = 1
	}
	if cfg.ModelCacheSize <= 0 {
		cfg.ModelCacheSize = 3
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}

	return cfg, nil
}

// EstimateEncoding disables BPE tokenizers in favour of the word estimate.
const EstimateEncoding = "estimate"

// Validate checks settings that would otherwise fail at first use.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	switch c.QueueKind {
	case "memory":
	case "nats":
		if c.NATSURL == "" {
			return errors.New("NATS_URL is required when QUEUE_KIND=nats")
		}
	default:
		return fmt.Errorf("QUEUE_KIND must be memory or nats, got %q", c.QueueKind)
	}
	if c.InferenceURL == "" {
		return errors.New("INFERENCE_URL is required")
	}
	if c.DefaultModel == "" {
		return errors.New("DEFAULT_MODEL is required")
	}
	if !c.ModelAllowed(c.DefaultModel) {
		return fmt.Errorf("DEFAULT_MODEL %q is not in ALLOWED_MODELS", c.DefaultModel)
	}
	if c.MergeThreshold <= 0 || c.MergeThreshold > 1 {
		return fmt.Errorf("MERGE_THRESHOLD must be in (0, 1], got %v", c.MergeThreshold)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("MAX_TOKENS must be positive, got %d", c.MaxTokens)
	}
	return nil
}

// ModelAllowed reports whether model may be requested. An empty allowlist
// accepts any model.
func (c Config) ModelAllowed(model string) bool {
	if len(c.AllowedModels) == 0 {
		return true
	}
	for _, m := range c.AllowedModels {
		if m == model {
			return true
		}
	}
	return false
}
