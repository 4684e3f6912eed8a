package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/i474232898/weather-ingest/internal/weather"
)

// Pipeline runs one tick: extract, normalize, write and, when a synchronizer
// is configured, upsert enum metadata. It holds no state between ticks.
type Pipeline struct {
	provider   weather.Provider
	location   weather.Location
	normalizer *Normalizer
	writer     Writer
	metadata   *MetadataSynchronizer
	logger     *zap.Logger
}

// NewPipeline wires the tick. metadata may be nil.
func NewPipeline(
	provider weather.Provider,
	location weather.Location,
	normalizer *Normalizer,
	writer Writer,
	metadata *MetadataSynchronizer,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		provider:   provider,
		location:   location,
		normalizer: normalizer,
		writer:     writer,
		metadata:   metadata,
		logger:     logger.Named("pipeline"),
	}
}

// Run executes a single tick. The metadata upsert is attempted even if the
// insert failed; both errors are returned joined.
func (p *Pipeline) Run(ctx context.Context) error {
	obs, err := p.provider.Fetch(ctx, p.location)
	if err != nil {
		return fmt.Errorf("extract from %s for %s: %w", p.provider.Name(), p.location, err)
	}

	category, err := obs.ConditionCategory()
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	rec, err := p.normalizer.Normalize(obs)
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}

	var errs []error

	ack, err := p.writer.Insert(ctx, rec)
	if err != nil {
		errs = append(errs, fmt.Errorf("insert: %w", err))
	} else {
		p.logger.Info("record inserted",
			zap.String("timestamp", rec.Timestamp),
			zap.Any("series", rec.Series),
			zap.Stringer("ack", ack),
		)
	}

	if p.metadata != nil {
		ack, err := p.metadata.Sync(ctx, category, obs.ConditionLabel)
		if err != nil {
			errs = append(errs, fmt.Errorf("save signals: %w", err))
		} else {
			p.logger.Info("signal metadata saved",
				zap.Int("code", category),
				zap.String("label", obs.ConditionLabel),
				zap.Stringer("ack", ack),
			)
		}
	}

	return errors.Join(errs...)
}
