package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"genqueue/internal/infra"
)

// HTTPGenerator invokes an external generation endpoint over HTTP. One
// instance is configured per job type.
type HTTPGenerator struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *infra.Logger
}

// Options controls how an HTTP generation backend is configured.
type Options struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

func NewHTTPGenerator(opts Options) (*HTTPGenerator, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, fmt.Errorf("generation: endpoint is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPGenerator{
		endpoint:   opts.Endpoint,
		apiKey:     opts.APIKey,
		httpClient: client,
		logger:     opts.Logger,
	}, nil
}

type generateBody struct {
	JobID   string          `json:"job_id"`
	Payload json.RawMessage `json:"payload"`
	Count   int             `json:"count"`
	Quality string          `json:"quality,omitempty"`
}

type generateResponse struct {
	Assets []struct {
		URL string `json:"url"`
	} `json:"assets"`
	Error string `json:"error,omitempty"`
}

// Generate posts the job payload to the backend and returns produced asset URLs.
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) ([]string, error) {
	body, err := json.Marshal(generateBody{
		JobID:   req.JobID,
		Payload: req.Payload,
		Count:   req.Count,
		Quality: req.Quality,
	})
	if err != nil {
		return nil, fmt.Errorf("generation: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("generation: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generation: call backend: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("generation: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("generation: backend status %d: %s", resp.StatusCode, excerpt(raw))
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("generation: decode response: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("generation: backend error: %s", decoded.Error)
	}

	urls := make([]string, 0, len(decoded.Assets))
	for _, asset := range decoded.Assets {
		if asset.URL != "" {
			urls = append(urls, asset.URL)
		}
	}
	if g.logger != nil {
		g.logger.Debug().Str("job_id", req.JobID).Int("assets", len(urls)).Msg("generation: backend responded")
	}
	return urls, nil
}

func excerpt(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		return s[:200]
	}
	return s
}

var _ Generator = (*HTTPGenerator)(nil)
