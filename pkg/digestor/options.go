package digestor

import (
	"log/slog"
	"time"

	"github.com/oceanbase/mindshard-go/pkg/chunker"
	"github.com/oceanbase/mindshard-go/pkg/llm"
	"github.com/oceanbase/mindshard-go/pkg/metrics"
)

// Defaults applied by New when an option is not given.
const (
	DefaultWorkers      = 4
	DefaultEmbedTimeout = 30 * time.Second
	DefaultK            = 5
)

// Option configures a Digestor.
type Option func(*Options)

// Options holds the optional collaborators and tuning knobs of a Digestor.
type Options struct {
	// Name labels log lines, usually the knowledge base id.
	Name string

	// Chunker splits documents. Defaults to chunker.Chunk.
	Chunker chunker.Func

	// ChunkSize and ChunkOverlap are passed to Chunker.
	ChunkSize    int
	ChunkOverlap int

	// Summarizer backs Summarize. Nil means Summarize fails with
	// core.ErrNotConfigured.
	Summarizer llm.Summarizer

	// Workers bounds the number of concurrent embedding calls.
	Workers int

	// EmbedTimeout bounds the wait for one batch of chunk embeddings.
	EmbedTimeout time.Duration

	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// WithName sets the name used in log lines.
func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

// WithChunker replaces the chunking function.
func WithChunker(fn chunker.Func) Option {
	return func(o *Options) {
		o.Chunker = fn
	}
}

// WithChunking sets chunk size and overlap.
//
// Example:
//
//	d, _ := digestor.New(store, emb, digestor.WithChunking(512, 50))
func WithChunking(size, overlap int) Option {
	return func(o *Options) {
		o.ChunkSize = size
		o.ChunkOverlap = overlap
	}
}

// WithSummarizer enables Summarize.
func WithSummarizer(s llm.Summarizer) Option {
	return func(o *Options) {
		o.Summarizer = s
	}
}

// WithWorkers sets the embedding concurrency.
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithEmbedTimeout sets the wait-all timeout for chunk embeddings.
func WithEmbedTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.EmbedTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(o *Options) {
		o.Metrics = r
	}
}

// ApplyOptions applies opts over the defaults.
func ApplyOptions(opts []Option) *Options {
	options := &Options{
		Chunker:      chunker.Chunk,
		ChunkSize:    chunker.DefaultSize,
		ChunkOverlap: chunker.DefaultOverlap,
		Workers:      DefaultWorkers,
		EmbedTimeout: DefaultEmbedTimeout,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.Chunker == nil {
		options.Chunker = chunker.Chunk
	}
	if options.Workers <= 0 {
		options.Workers = DefaultWorkers
	}
	if options.EmbedTimeout <= 0 {
		options.EmbedTimeout = DefaultEmbedTimeout
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Metrics == nil {
		options.Metrics = metrics.Noop{}
	}
	return options
}

// SummarizeOption configures Summarize.
type SummarizeOption func(*SummarizeOptions)

// SummarizeOptions contains options for Summarize.
type SummarizeOptions struct {
	// Separator joins entry texts. Default "\n".
	Separator string
}

// WithSeparator sets the string placed between entries.
func WithSeparator(sep string) SummarizeOption {
	return func(o *SummarizeOptions) {
		o.Separator = sep
	}
}

// ApplySummarizeOptions applies opts over the defaults.
func ApplySummarizeOptions(opts []SummarizeOption) *SummarizeOptions {
	options := &SummarizeOptions{Separator: "\n"}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
