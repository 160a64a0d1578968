package generation

import (
	"net/http"

	"genqueue/internal/domain"
	"genqueue/internal/infra"
)

// BuildRegistry wires one generator per job type from the configured backend
// endpoints. Types without an endpoint fall back to synthetic generation so a
// partially configured deployment still drains its queue.
func BuildRegistry(cfg *infra.Config, logger infra.Logger) map[domain.JobType]Generator {
	httpClient := &http.Client{Timeout: cfg.BackendTimeout}
	endpoints := map[domain.JobType]string{
		domain.JobTypeProduct:   cfg.ProductEndpoint,
		domain.JobTypeTryon:     cfg.TryonEndpoint,
		domain.JobTypeFreestyle: cfg.FreestyleEndpoint,
		domain.JobTypeWorkflow:  cfg.WorkflowEndpoint,
		domain.JobTypeVideo:     cfg.VideoEndpoint,
	}

	registry := make(map[domain.JobType]Generator, len(endpoints))
	for jobType, endpoint := range endpoints {
		if endpoint == "" {
			logger.Warn().Str("job_type", string(jobType)).Msg("generation: no backend configured, using synthetic assets")
			registry[jobType] = NewSyntheticGenerator("")
			continue
		}
		gen, err := NewHTTPGenerator(Options{
			Endpoint:   endpoint,
			APIKey:     cfg.BackendAPIKey,
			HTTPClient: httpClient,
			Logger:     &logger,
		})
		if err != nil {
			logger.Warn().Err(err).Str("job_type", string(jobType)).Msg("generation: backend misconfigured, using synthetic assets")
			registry[jobType] = NewSyntheticGenerator("")
			continue
		}
		registry[jobType] = gen
	}
	return registry
}
