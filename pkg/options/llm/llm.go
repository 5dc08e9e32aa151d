// Package llmopts provides options for LLM provider configuration.
package llmopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docchat/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains LLM provider configuration.
// Embedding and chat may use the same or different providers.
type Options struct {
	// Provider is the provider name registered in pkg/llm (ollama, openai).
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL is the provider API base URL.
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey for providers that require authentication.
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// EmbedModel is the embedding model name.
	EmbedModel string `json:"embed-model" mapstructure:"embed-model"`

	// ChatModel is the chat model name.
	ChatModel string `json:"chat-model" mapstructure:"chat-model"`

	// Timeout for provider requests.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries for failed requests.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		EmbedModel: "nomic-embed-text",
		ChatModel:  "llama3.2",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Provider, options.Join(prefixes...)+"llm.provider", o.Provider, "LLM provider name (ollama, openai).")
	fs.StringVar(&o.BaseURL, options.Join(prefixes...)+"llm.base-url", o.BaseURL, "LLM provider API base URL.")
	fs.StringVar(&o.APIKey, options.Join(prefixes...)+"llm.api-key", o.APIKey, "API key for the LLM provider.")
	fs.StringVar(&o.EmbedModel, options.Join(prefixes...)+"llm.embed-model", o.EmbedModel, "Embedding model name.")
	fs.StringVar(&o.ChatModel, options.Join(prefixes...)+"llm.chat-model", o.ChatModel, "Chat model name.")
	fs.DurationVar(&o.Timeout, options.Join(prefixes...)+"llm.timeout", o.Timeout, "Timeout for LLM provider requests.")
	fs.IntVar(&o.MaxRetries, options.Join(prefixes...)+"llm.max-retries", o.MaxRetries, "Maximum retries for failed requests.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("llm provider is required"))
	}
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("llm base-url is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("llm timeout must be positive"))
	}
	return errs
}

// ProviderConfig returns the config map consumed by pkg/llm provider factories.
func (o *Options) ProviderConfig() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.EmbedModel,
		"chat_model":  o.ChatModel,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
}
