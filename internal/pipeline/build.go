// Package pipeline runs the capital-flow feature transform end to end.
// It coordinates: load -> normalize -> features -> merge volatility -> sinks.
package pipeline

import (
	"context"
	"fmt"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/features"
	"capital-flow-lab/internal/frame"
	"capital-flow-lab/internal/merge"
	"capital-flow-lab/internal/normalization"
)

// Build is the outcome of one transform.
type Build struct {
	Inputs *normalization.Normalized
	Frame  *frame.Frame
}

// BuildFlowFeatures runs the core transform: normalize, compute features, attach volatility.
// Nothing is written anywhere; a failing stage returns before later stages start.
func BuildFlowFeatures(
	ctx context.Context,
	engine *features.Engine,
	prices []domain.PriceRecord,
	vols []domain.VolatilityRecord,
) (*Build, error) {
	inputs, err := normalization.Normalize(prices, vols)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := engine.Compute(ctx, inputs.Prices)
	if err != nil {
		return nil, fmt.Errorf("compute features: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := merge.AttachVolatility(f, inputs.Volatility); err != nil {
		return nil, fmt.Errorf("attach volatility: %w", err)
	}

	return &Build{Inputs: inputs, Frame: f}, nil
}

// Undefined column names, in output order.
var UndefinedColumns = []string{"notional_lag", "d_notional", "d_notional_universe", "flow_share", "flow_z", "vix"}

// CountUndefined counts undefined values per nullable column.
func CountUndefined(records []*domain.FlowFeatureRecord) map[string]int {
	counts := make(map[string]int, len(UndefinedColumns))
	for _, c := range UndefinedColumns {
		counts[c] = 0
	}
	for _, r := range records {
		if !r.NotionalLag.Valid {
			counts["notional_lag"]++
		}
		if !r.DNotional.Valid {
			counts["d_notional"]++
		}
		if !r.DNotionalUniverse.Valid {
			counts["d_notional_universe"]++
		}
		if !r.FlowShare.Valid {
			counts["flow_share"]++
		}
		if !r.FlowZ.Valid {
			counts["flow_z"]++
		}
		if !r.VIX.Valid {
			counts["vix"]++
		}
	}
	return counts
}
