package generation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SyntheticGenerator fabricates deterministic asset URLs for job types whose
// backend endpoint is not configured. It keeps local and CI environments fully
// operational while preserving the extension point for the real integration.
type SyntheticGenerator struct {
	BaseURL string
}

func NewSyntheticGenerator(baseURL string) *SyntheticGenerator {
	if baseURL == "" {
		baseURL = "https://assets.invalid/synthetic"
	}
	return &SyntheticGenerator{BaseURL: baseURL}
}

func (g *SyntheticGenerator) Generate(_ context.Context, req Request) ([]string, error) {
	count := req.Count
	if count < 1 {
		count = 1
	}
	urls := make([]string, count)
	for i := range urls {
		sum := sha256.Sum256(fmt.Appendf(nil, "%s/%s/%d", req.Type, req.JobID, i))
		urls[i] = fmt.Sprintf("%s/%s/%s.png", g.BaseURL, req.Type, hex.EncodeToString(sum[:8]))
	}
	return urls, nil
}

var _ Generator = (*SyntheticGenerator)(nil)
