package wire

import (
	"encoding/json"
	"log/slog"
	"time"

	"waitmap.dev/cmd/pkg/errors"

	"sigs.k8s.io/yaml"
)

const (
	PolicyBlock       = "block"
	PolicyEvictOldest = "evict-oldest"
)

func Parse(p []byte) (*Scenario, error) {
	var sc Scenario

	if err := yaml.Unmarshal(p, &sc, yaml.DisallowUnknownFields); err != nil {
		return nil, errors.New("failed to unmarshal scenario: %w", err)
	}

	if len(sc.Jobs) == 0 {
		return nil, errors.New("scenario has no jobs")
	}

	switch sc.Policy {
	case "", PolicyBlock, PolicyEvictOldest:
	default:
		return nil, errors.New("unsupported policy: %q", sc.Policy)
	}
	if sc.Policy != "" && sc.Capacity <= 0 {
		return nil, errors.New("policy %q requires a capacity", sc.Policy)
	}

	for i, job := range sc.Jobs {
		slog.Debug("wire: job",
			"job", str(job),
		)

		if (job.Key == "") == (job.Keys == 0) {
			return nil, errors.New("job %d: exactly one of key and keys is required", i)
		}
		if job.Keys < 0 {
			return nil, errors.New("job %d: negative keys", i)
		}
		if job.Value == "" {
			return nil, errors.New("job %d: value is required", i)
		}
		if job.Consumers < 0 {
			return nil, errors.New("job %d: negative consumers", i)
		}
		if job.Delay != "" {
			if _, err := time.ParseDuration(job.Delay); err != nil {
				return nil, errors.New("job %d: failed to parse delay: %w", i, err)
			}
		}
		if job.Timeout != "" {
			if _, err := time.ParseDuration(job.Timeout); err != nil {
				return nil, errors.New("job %d: failed to parse timeout: %w", i, err)
			}
		}
	}

	return &sc, nil
}

func str(v any) string {
	p, _ := json.Marshal(v)
	return string(p)
}
