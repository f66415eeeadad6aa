package expr

import (
	"fmt"

	"github.com/pmcore/pmcore/pkg/pdu/wire"
	"github.com/pmcore/pmcore/pkg/pmerr"
)

// Time scale enumeration (spec's "unit-rescale multipliers"), matching
// the original pmUnits.scaleTime space: not a uniform power, since a
// minute is 60 seconds and an hour is 60 minutes.
const (
	TimeNSec = iota
	TimeUSec
	TimeMSec
	TimeSec
	TimeMin
	TimeHour
)

var secondsPerTimeUnit = map[int8]float64{
	TimeNSec: 1e-9,
	TimeUSec: 1e-6,
	TimeMSec: 1e-3,
	TimeSec:  1,
	TimeMin:  60,
	TimeHour: 3600,
}

// Space and count scales are powers of a fixed base (1024 bytes, 10
// counts respectively), so a single exponent difference suffices.
func spaceFactor(scale int8) float64 {
	f := 1.0
	for i := int8(0); i < scale; i++ {
		f *= 1024
	}
	for i := scale; i < 0; i++ {
		f /= 1024
	}
	return f
}

func countFactor(scale int8) float64 {
	f := 1.0
	for i := int8(0); i < scale; i++ {
		f *= 10
	}
	for i := scale; i < 0; i++ {
		f /= 10
	}
	return f
}

// ConvScale computes the multiplier that rescales a value expressed in
// "from" units into "to" units. The two units must share the same
// dimension vector (space, time, count exponents) — PCP rejects cross-
// dimension rescaling as a unit-conversion error.
func ConvScale(from, to wire.Units) (float64, error) {
	if from.DimSpace != to.DimSpace || from.DimTime != to.DimTime || from.DimCount != to.DimCount {
		return 0, fmt.Errorf("rescale dimension mismatch: %w", pmerr.ErrConv)
	}
	factor := 1.0
	if from.DimSpace != 0 {
		ratio := spaceFactor(from.ScaleSpace) / spaceFactor(to.ScaleSpace)
		factor *= pow(ratio, from.DimSpace)
	}
	if from.DimTime != 0 {
		ratio := secondsPerTimeUnit[from.ScaleTime] / secondsPerTimeUnit[to.ScaleTime]
		factor *= pow(ratio, from.DimTime)
	}
	if from.DimCount != 0 {
		ratio := countFactor(from.ScaleCount) / countFactor(to.ScaleCount)
		factor *= pow(ratio, from.DimCount)
	}
	return factor, nil
}

func pow(base float64, exp int8) float64 {
	neg := exp < 0
	if neg {
		exp = -exp
	}
	r := 1.0
	for i := int8(0); i < exp; i++ {
		r *= base
	}
	if neg {
		return 1 / r
	}
	return r
}

// timeUtilScale mirrors eval_expr's one-trip rate() time-utilization
// scaling factor: converts a counter's scaleTime unit into seconds,
// via repeated *60 / /1000 steps exactly as the original does (rather
// than consulting secondsPerTimeUnit, to keep the integer-stepped
// behaviour the original relies on for PM_TIME_SEC-adjacent units).
func timeUtilScale(scaleTime int8) float64 {
	s := 1.0
	if scaleTime > TimeSec {
		for i := int8(TimeSec); i < scaleTime; i++ {
			s *= 60
		}
	} else {
		for i := scaleTime; i < TimeSec; i++ {
			s /= 1000
		}
	}
	return s
}
