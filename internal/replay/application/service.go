package application

import (
	"context"
	"errors"
	"log"
	"time"

	"sitewatch-cloud/internal/observability/metrics"
	replay "sitewatch-cloud/internal/replay/domain"
	snapshots "sitewatch-cloud/internal/snapshots/domain"
)

// Options select the output shape of one sequence build.
type Options struct {
	// Aggregated applies the temporal sampler to the reconstructed sequence.
	Aggregated bool
	// SnapshotsPerDay overrides the configured sampling density. Zero means
	// use the configured default; negative values are rejected.
	SnapshotsPerDay int
}

// Service builds replay sequences: fetch raw rows from the source,
// reconstruct, optionally sample. Sequences are recomputed fresh on every
// call; nothing is diffed across fetches.
type Service struct {
	source snapshots.SnapshotSource
	cfg    Config
	logger *log.Logger
}

// NewService constructs a replay service.
func NewService(source snapshots.SnapshotSource, cfg Config, logger *log.Logger) (*Service, error) {
	if source == nil {
		return nil, errors.New("replay service: nil snapshot source")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{source: source, cfg: cfg, logger: logger}, nil
}

// Config returns the engine configuration the service was built with.
func (s *Service) Config() Config {
	return s.cfg
}

// BuildSequence produces the complete, time-ordered device-state sequence
// for one (site, program) pair. A fetch failure is terminal for the request;
// retry policy belongs to the caller.
func (s *Service) BuildSequence(ctx context.Context, siteID, programID string, opts Options) ([]replay.ReconstructedSnapshot, error) {
	if s == nil || s.source == nil {
		return nil, errors.New("replay service: not initialized")
	}
	if siteID == "" {
		return nil, errors.New("replay service: empty site id")
	}
	if opts.SnapshotsPerDay < 0 {
		return nil, replay.ErrInvalidDensity
	}

	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReplayBuild(result, time.Since(start))
	}()

	raw, err := s.source.SnapshotsForSite(ctx, siteID, programID)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	sequence := replay.Reconstruct(raw)
	metrics.ObserveSequenceLength(metrics.StageReconstructed, len(sequence))

	if !opts.Aggregated {
		return sequence, nil
	}

	perDay := opts.SnapshotsPerDay
	if perDay == 0 {
		perDay = s.cfg.DefaultSnapshotsPerDay
	}
	sampled, err := replay.Sample(sequence, perDay)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	metrics.ObserveSequenceLength(metrics.StageSampled, len(sampled))
	return sampled, nil
}
