// Package docchat wires the docchat service together.
package docchat

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docchat/internal/docchat/biz"
	"github.com/kart-io/docchat/pkg/component/mongodb"
	llmopts "github.com/kart-io/docchat/pkg/options/llm"
	logopts "github.com/kart-io/docchat/pkg/options/logger"
	milvusopts "github.com/kart-io/docchat/pkg/options/milvus"
	redisopts "github.com/kart-io/docchat/pkg/options/redis"
)

// ServerOptions contains the HTTP server configuration.
type ServerOptions struct {
	// Addr is the listen address.
	Addr string `json:"addr" mapstructure:"addr"`

	// ReadTimeout for reading the full request.
	ReadTimeout time.Duration `json:"read-timeout" mapstructure:"read-timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// IngestOptions contains document ingestion configuration.
type IngestOptions struct {
	// ChunkSize is the maximum chunk length in runes.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between adjacent chunks in runes.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// DataDir is the root directory for uploaded files.
	DataDir string `json:"data-dir" mapstructure:"data-dir"`

	// EmbeddingDim is the embedding vector dimension.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`
}

// RetrievalOptions contains retrieval configuration.
type RetrievalOptions struct {
	// TopK is the number of passages returned per query.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// FetchK is the candidate pool size for diversity reranking.
	FetchK int `json:"fetch-k" mapstructure:"fetch-k"`

	// MMRLambda balances relevance against diversity in [0, 1].
	MMRLambda float64 `json:"mmr-lambda" mapstructure:"mmr-lambda"`

	// ExpansionCount is the number of query variants to generate.
	ExpansionCount int `json:"expansion-count" mapstructure:"expansion-count"`
}

// GenerationOptions contains answer generation configuration.
type GenerationOptions struct {
	// HistoryLimit is the number of history messages sent to the model.
	HistoryLimit int `json:"history-limit" mapstructure:"history-limit"`

	// SystemPreamble overrides the default system prompt preamble.
	SystemPreamble string `json:"system-preamble" mapstructure:"system-preamble"`
}

// Options contains the full docchat service configuration.
type Options struct {
	Server     *ServerOptions      `json:"server" mapstructure:"server"`
	Log        *logopts.Options    `json:"log" mapstructure:"log"`
	MongoDB    *mongodb.Options    `json:"mongodb" mapstructure:"mongodb"`
	Milvus     *milvusopts.Options `json:"milvus" mapstructure:"milvus"`
	Redis      *redisopts.Options  `json:"redis" mapstructure:"redis"`
	LLM        *llmopts.Options    `json:"llm" mapstructure:"llm"`
	Ingest     *IngestOptions      `json:"ingest" mapstructure:"ingest"`
	Retrieval  *RetrievalOptions   `json:"retrieval" mapstructure:"retrieval"`
	Generation *GenerationOptions  `json:"generation" mapstructure:"generation"`
}

// NewOptions creates Options with sane defaults.
func NewOptions() *Options {
	return &Options{
		Server: &ServerOptions{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log:     logopts.NewOptions(),
		MongoDB: mongodb.NewOptions(),
		Milvus:  milvusopts.NewOptions(),
		Redis:   redisopts.NewOptions(),
		LLM:     llmopts.NewOptions(),
		Ingest: &IngestOptions{
			ChunkSize:    biz.DefaultChunkSize,
			ChunkOverlap: biz.DefaultChunkOverlap,
			DataDir:      "./data/docchat",
			EmbeddingDim: 768,
		},
		Retrieval: &RetrievalOptions{
			TopK:           biz.DefaultTopK,
			FetchK:         biz.DefaultFetchK,
			MMRLambda:      biz.DefaultMMRLambda,
			ExpansionCount: biz.DefaultExpansionCount,
		},
		Generation: &GenerationOptions{
			HistoryLimit: biz.DefaultHistoryLimit,
		},
	}
}

// AddFlags adds all docchat flags to the given flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Server.Addr, "server.addr", o.Server.Addr, "HTTP server listen address.")
	fs.DurationVar(&o.Server.ReadTimeout, "server.read-timeout", o.Server.ReadTimeout, "HTTP server read timeout.")
	fs.DurationVar(&o.Server.ShutdownTimeout, "server.shutdown-timeout", o.Server.ShutdownTimeout, "Graceful shutdown timeout.")

	o.Log.AddFlags(fs)
	o.MongoDB.AddFlags(fs, "mongodb.")
	o.Milvus.AddFlags(fs)
	o.Redis.AddFlags(fs)
	o.LLM.AddFlags(fs)

	fs.IntVar(&o.Ingest.ChunkSize, "ingest.chunk-size", o.Ingest.ChunkSize, "Maximum chunk length in runes.")
	fs.IntVar(&o.Ingest.ChunkOverlap, "ingest.chunk-overlap", o.Ingest.ChunkOverlap, "Overlap between adjacent chunks in runes.")
	fs.StringVar(&o.Ingest.DataDir, "ingest.data-dir", o.Ingest.DataDir, "Root directory for uploaded files.")
	fs.IntVar(&o.Ingest.EmbeddingDim, "ingest.embedding-dim", o.Ingest.EmbeddingDim, "Embedding vector dimension.")

	fs.IntVar(&o.Retrieval.TopK, "retrieval.top-k", o.Retrieval.TopK, "Number of passages returned per query.")
	fs.IntVar(&o.Retrieval.FetchK, "retrieval.fetch-k", o.Retrieval.FetchK, "Candidate pool size for diversity reranking.")
	fs.Float64Var(&o.Retrieval.MMRLambda, "retrieval.mmr-lambda", o.Retrieval.MMRLambda, "Relevance/diversity balance in [0, 1].")
	fs.IntVar(&o.Retrieval.ExpansionCount, "retrieval.expansion-count", o.Retrieval.ExpansionCount, "Number of query variants to generate.")

	fs.IntVar(&o.Generation.HistoryLimit, "generation.history-limit", o.Generation.HistoryLimit, "Number of history messages sent to the model.")
	fs.StringVar(&o.Generation.SystemPreamble, "generation.system-preamble", o.Generation.SystemPreamble, "Override for the default system prompt preamble.")
}

// Validate validates all options.
func (o *Options) Validate() error {
	var errs []error

	if o.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("server addr is required"))
	}
	if err := o.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := o.MongoDB.Validate(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, o.Milvus.Validate()...)
	errs = append(errs, o.Redis.Validate()...)
	errs = append(errs, o.LLM.Validate()...)

	if o.Ingest.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("ingest chunk-size must be positive"))
	}
	if o.Ingest.ChunkOverlap < 0 || o.Ingest.ChunkOverlap >= o.Ingest.ChunkSize {
		errs = append(errs, fmt.Errorf("ingest chunk-overlap must be in [0, chunk-size)"))
	}
	if o.Ingest.DataDir == "" {
		errs = append(errs, fmt.Errorf("ingest data-dir is required"))
	}
	if o.Ingest.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("ingest embedding-dim must be positive"))
	}
	if o.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval top-k must be positive"))
	}
	if o.Retrieval.FetchK < o.Retrieval.TopK {
		errs = append(errs, fmt.Errorf("retrieval fetch-k must be >= top-k"))
	}
	if o.Retrieval.MMRLambda < 0 || o.Retrieval.MMRLambda > 1 {
		errs = append(errs, fmt.Errorf("retrieval mmr-lambda must be in [0, 1]"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %v", errs)
	}
	return nil
}

// Complete fills in derived defaults.
func (o *Options) Complete() error {
	if err := o.MongoDB.Complete(); err != nil {
		return err
	}
	if err := o.Log.Complete(); err != nil {
		return err
	}
	if o.Generation.HistoryLimit <= 0 {
		o.Generation.HistoryLimit = biz.DefaultHistoryLimit
	}
	return nil
}
