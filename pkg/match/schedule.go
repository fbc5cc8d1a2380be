package match

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/orneryd/pointloss/pkg/compute"
)

// Schedule controls the refinement levels of the match engine.
//
// Each level weights query/dataset pairs by exp(-d²/T) where T is the level
// temperature. Temperatures start at InitTemp and shrink by TempDecay per
// level, so the assignment anneals from near-uniform toward near-hard.
// Sharper levels are also allotted a proportionally larger share of each
// query's matching mass, which is what lets the final plan concentrate on
// confident pairs instead of averaging over the early diffuse levels.
//
// The schedule is fixed before execution and never data-dependent, so
// results are bit-reproducible for identical inputs.
type Schedule struct {
	// Levels is the number of refinement levels.
	Levels int `yaml:"levels"`
	// InitTemp is the temperature of the first (most diffuse) level,
	// in units of squared distance.
	InitTemp float32 `yaml:"init_temp"`
	// TempDecay multiplies the temperature after each level. Must be in
	// (0, 1); smaller values sharpen faster.
	TempDecay float32 `yaml:"temp_decay"`
	// Alternations is the number of row/column rescaling passes per level.
	Alternations int `yaml:"alternations"`
}

// DefaultSchedule returns the default refinement schedule: 8 levels from
// temperature 4.0 decaying by 0.25, with 4 row/column alternations each.
// The defaults assume clouds roughly normalized to the unit sphere; scale
// InitTemp with the square of the cloud extent otherwise.
func DefaultSchedule() Schedule {
	return Schedule{
		Levels:       8,
		InitTemp:     4.0,
		TempDecay:    0.25,
		Alternations: 4,
	}
}

// Validate checks the schedule parameters.
func (s Schedule) Validate() error {
	if s.Levels <= 0 {
		return fmt.Errorf("%w: schedule levels must be positive, got %d", compute.ErrInvalidArgument, s.Levels)
	}
	if !(s.InitTemp > 0) || math32.IsInf(s.InitTemp, 0) {
		return fmt.Errorf("%w: schedule init_temp must be positive and finite, got %v", compute.ErrInvalidArgument, s.InitTemp)
	}
	if !(s.TempDecay > 0 && s.TempDecay < 1) {
		return fmt.Errorf("%w: schedule temp_decay must be in (0, 1), got %v", compute.ErrInvalidArgument, s.TempDecay)
	}
	if s.Alternations <= 0 {
		return fmt.Errorf("%w: schedule alternations must be positive, got %d", compute.ErrInvalidArgument, s.Alternations)
	}
	return nil
}

// temperatures returns the per-level temperatures.
func (s Schedule) temperatures() []float32 {
	temps := make([]float32, s.Levels)
	t := s.InitTemp
	for l := range temps {
		temps[l] = t
		t *= s.TempDecay
	}
	return temps
}

// massShares returns, per level, the fraction of each query's remaining
// demand the level may emit. Shares are proportional to inverse temperature,
// so sharp levels carry most of the plan's mass; the last level always
// consumes whatever remains.
func (s Schedule) massShares() []float32 {
	weights := make([]float64, s.Levels)
	w := 1.0
	for l := range weights {
		weights[l] = w
		w /= float64(s.TempDecay)
	}

	shares := make([]float32, s.Levels)
	var tail float64
	for l := s.Levels - 1; l >= 0; l-- {
		tail += weights[l]
		shares[l] = float32(weights[l] / tail)
	}
	return shares
}
