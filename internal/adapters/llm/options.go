package llm

import (
	"net/http"

	"github.com/phuslu/log"

	"github.com/0xcro3dile/docqa-go/internal/logging"
)

// Option configures a provider.
type Option func(*Options)

// Options holds the settings shared by every provider. Zero values select
// the provider's defaults.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxTokens  int
	HTTPClient *http.Client
	Logger     *log.Logger
}

func WithAPIKey(apiKey string) Option {
	return func(o *Options) {
		o.APIKey = apiKey
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithBaseURL(url string) Option {
	return func(o *Options) {
		o.BaseURL = url
	}
}

// WithMaxTokens caps completion length when the call itself sets no limit.
func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = c
	}
}

func WithLogger(l *log.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

func NewOptions(opts ...Option) Options {
	var options Options
	for _, opt := range opts {
		opt(&options)
	}
	options.Logger = logging.OrNop(options.Logger)
	return options
}

func (o Options) modelOr(def string) string {
	if o.Model == "" {
		return def
	}
	return o.Model
}

func (o Options) maxTokens(call int) int {
	if call > 0 {
		return call
	}
	return o.MaxTokens
}
