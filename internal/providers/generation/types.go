package generation

import (
	"context"
	"encoding/json"
)

// Request describes a normalized dispatch to any generation backend. Payload
// is forwarded verbatim; the queue never inspects it.
type Request struct {
	JobID   string
	Type    string
	Payload json.RawMessage
	Count   int
	Quality string
}

// Generator is the contract implemented by all generation backends. It returns
// the URLs of the produced assets.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]string, error)
}
