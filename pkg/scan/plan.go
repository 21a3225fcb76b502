package scan

import (
	"github.com/pkg/errors"

	"github.com/itohio/sscd/pkg/calibration"
	"github.com/itohio/sscd/pkg/config"
)

// Step is one wavelength of a scan.
type Step struct {
	Wavelength int
	PEMCode    string
	Position   int32
}

// Plan is a fully resolved scan: every stage position is known before the
// stage moves.
type Plan struct {
	Strategy string
	Steps    []Step
	Park     int32 // Stage position after the last step
}

// NewPlan resolves the plan for the configured strategy. table may be nil for
// the computed strategy.
func NewPlan(cfg *config.ScanConfig, backoff int32, table *calibration.Table) (*Plan, error) {
	switch cfg.Strategy {
	case config.StrategyTable:
		if table == nil {
			return nil, errors.New("table scan requires a calibration table")
		}
		return TablePlan(table, backoff), nil
	case config.StrategyInterpolated:
		if table == nil {
			return nil, errors.New("interpolated scan requires a calibration table")
		}
		return InterpolatedPlan(table, cfg.Start, cfg.Stop, cfg.WavelengthOffset, backoff)
	case config.StrategyComputed:
		return ComputedPlan(cfg.Start, cfg.Stop, backoff)
	}
	return nil, errors.Errorf("unknown scan strategy %q", cfg.Strategy)
}

// TablePlan visits every calibration entry in table order with its stored
// position and modulator code.
func TablePlan(table *calibration.Table, backoff int32) *Plan {
	entries := table.Entries()
	steps := make([]Step, len(entries))
	for i, e := range entries {
		steps[i] = Step{Wavelength: e.Wavelength, PEMCode: e.PEMCode, Position: e.Position}
	}
	return &Plan{
		Strategy: config.StrategyTable,
		Steps:    steps,
		Park:     park(table.First().Position, backoff),
	}
}

// InterpolatedPlan visits every integer wavelength in [start, stop] using the
// table lookup. offset shifts the modulator code only. A wavelength outside
// the table fails the whole plan.
func InterpolatedPlan(table *calibration.Table, start, stop, offset int, backoff int32) (*Plan, error) {
	if stop < start {
		return nil, errors.Errorf("scan stop %d is below start %d", stop, start)
	}

	steps := make([]Step, 0, stop-start+1)
	for wl := start; wl <= stop; wl++ {
		pos, err := table.Lookup(wl)
		if err != nil {
			return nil, errors.Wrap(err, "interpolated scan")
		}
		steps = append(steps, Step{
			Wavelength: wl,
			PEMCode:    calibration.PEMCode(wl + offset),
			Position:   pos,
		})
	}

	return &Plan{
		Strategy: config.StrategyInterpolated,
		Steps:    steps,
		Park:     park(table.First().Position, backoff),
	}, nil
}

// ComputedPlan visits every integer wavelength in [start, stop] using the
// closed-form position.
func ComputedPlan(start, stop int, backoff int32) (*Plan, error) {
	if stop < start {
		return nil, errors.Errorf("scan stop %d is below start %d", stop, start)
	}

	steps := make([]Step, 0, stop-start+1)
	for wl := start; wl <= stop; wl++ {
		steps = append(steps, Step{
			Wavelength: wl,
			PEMCode:    calibration.PEMCode(wl),
			Position:   calibration.ComputePosition(wl),
		})
	}

	return &Plan{
		Strategy: config.StrategyComputed,
		Steps:    steps,
		Park:     park(calibration.ComputePosition(start), backoff),
	}, nil
}

// park backs off below the first position, stopping at zero.
func park(first, backoff int32) int32 {
	if first < backoff {
		return 0
	}
	return first - backoff
}
