// Package openai provides an embedder.Provider backed by the OpenAI Embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oceanbase/embedsearch-go/pkg/embedder"
)

const providerName = "openai"

// DefaultModel is the embedding model used when Config.Model is empty.
var DefaultModel = openai.AdaEmbeddingV2.String()

// ErrUnsupportedModel is returned for model names the SDK cannot send.
var ErrUnsupportedModel = errors.New("openai: unsupported embedding model")

// nativeDimensions is the fixed output size of each model. The embeddings
// endpoint used here takes no dimensions parameter, so a configured size
// must match it.
var nativeDimensions = map[openai.EmbeddingModel]int{
	openai.AdaEmbeddingV2:        1536,
	openai.AdaSimilarity:         1024,
	openai.AdaSearchDocument:     1024,
	openai.AdaSearchQuery:        1024,
	openai.AdaCodeSearchCode:     1024,
	openai.AdaCodeSearchText:     1024,
	openai.BabbageSimilarity:     2048,
	openai.BabbageSearchDocument: 2048,
	openai.BabbageSearchQuery:    2048,
	openai.BabbageCodeSearchCode: 2048,
	openai.BabbageCodeSearchText: 2048,
	openai.CurieSimilarity:       4096,
	openai.CurieSearchDocument:   4096,
	openai.CurieSearchQuery:      4096,
	openai.DavinciSimilarity:     12288,
	openai.DavinciSearchDocument: 12288,
	openai.DavinciSearchQuery:    12288,
}

// Client is an OpenAI Embedder client.
// It implements the embedder.Provider interface on top of the OpenAI Embeddings API.
type Client struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// Config is the configuration for OpenAI Embedder.
// APIKey: OpenAI API key (required)
// Model: Model name to use, defaults to text-embedding-ada-002
// BaseURL: API base URL, defaults to OpenAI official address
// Dimensions: Vector dimensions, defaults to the model's native size (1536 for
// text-embedding-ada-002); any other value is rejected
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
}

// NewClient creates a new OpenAI Embedder client.
//
// Args:
//   - cfg: OpenAI Embedder configuration containing APIKey, Model, BaseURL, Dimensions
//
// Returns:
//   - *Client: OpenAI Embedder client instance
//   - error: Returns an error if the API key is missing, the model is unknown
//     to the SDK, or Dimensions differs from the model's output size
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := openai.AdaEmbeddingV2
	if cfg.Model != "" {
		// UnmarshalText maps unrecognized names to Unknown, which would be sent as "".
		if err := model.UnmarshalText([]byte(cfg.Model)); err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrUnsupportedModel, cfg.Model, err)
		}
		if model == openai.Unknown {
			return nil, fmt.Errorf("%w %q", ErrUnsupportedModel, cfg.Model)
		}
	}

	dimensions := nativeDimensions[model]
	if cfg.Dimensions != 0 && cfg.Dimensions != dimensions {
		return nil, fmt.Errorf("openai: %s returns %d dimensions, cannot produce %d", model, dimensions, cfg.Dimensions)
	}

	return &Client{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed converts a single text to a vector.
//
// Args:
//   - ctx: Context for controlling the request lifecycle
//   - text: Text content to vectorize
//
// Returns:
//   - []float64: Vector representation of the text
//   - error: *embedder.ProviderError if the API call fails or returns no data
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.create(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch converts multiple texts to vectors in a single request.
//
// The returned vectors are ordered by the index reported by the API, which
// matches the order of texts.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	return c.create(ctx, texts)
}

func (c *Client) create(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, toProviderError(err)
	}

	if len(resp.Data) != len(texts) {
		return nil, &embedder.ProviderError{
			Provider: providerName,
			Message:  fmt.Sprintf("unexpected number of embeddings (got %d, expected %d)", len(resp.Data), len(texts)),
		}
	}

	embeddings := make([][]float64, len(texts))
	for i, data := range resp.Data {
		idx := data.Index
		if idx < 0 || idx >= len(texts) || embeddings[idx] != nil {
			idx = i
		}
		// Convert float32 to float64
		embedding64 := make([]float64, len(data.Embedding))
		for j, v := range data.Embedding {
			embedding64[j] = float64(v)
		}
		embeddings[idx] = embedding64
	}

	return embeddings, nil
}

// Dimensions returns the vector dimensions.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close closes the client connection.
// The OpenAI SDK client does not require explicit closing; this method is retained for interface compatibility.
func (c *Client) Close() error {
	return nil
}

// toProviderError converts go-openai errors into *embedder.ProviderError,
// keeping the HTTP status code when one is available.
func toProviderError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &embedder.ProviderError{
			Provider:   providerName,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &embedder.ProviderError{
			Provider:   providerName,
			StatusCode: reqErr.HTTPStatusCode,
			Err:        err,
		}
	}

	return &embedder.ProviderError{Provider: providerName, Err: err}
}
