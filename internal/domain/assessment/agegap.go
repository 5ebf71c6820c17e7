package assessment

import (
	"math"
	"time"
)

// daysPerYear averages leap years into the chronological age.
const daysPerYear = 365.25

// AgeBand classifies the gap between assessment age and chronological age.
type AgeBand string

const (
	BandAbove              AgeBand = "ABOVE"
	BandOnLevel            AgeBand = "ON_LEVEL"
	BandSlightlyBelow      AgeBand = "SLIGHTLY_BELOW"
	BandBelow              AgeBand = "BELOW"
	BandSignificantlyBelow AgeBand = "SIGNIFICANTLY_BELOW"
)

// IsValid checks if the band is known.
func (b AgeBand) IsValid() bool {
	switch b {
	case BandAbove, BandOnLevel, BandSlightlyBelow, BandBelow, BandSignificantlyBelow:
		return true
	default:
		return false
	}
}

// ParseAgeBand validates a band filter value.
func ParseAgeBand(value string) (AgeBand, bool) {
	b := AgeBand(value)
	return b, b.IsValid()
}

// BandThresholds are the lower bounds (inclusive) of each band, checked in
// order. Anything below Below is SIGNIFICANTLY_BELOW.
type BandThresholds struct {
	Above         float64
	OnLevel       float64
	SlightlyBelow float64
	Below         float64
}

// DefaultBandThresholds returns the standard band boundaries.
func DefaultBandThresholds() BandThresholds {
	return BandThresholds{
		Above:         0.5,
		OnLevel:       -0.5,
		SlightlyBelow: -1.0,
		Below:         -2.0,
	}
}

// Classify maps a gap in years onto a band. It is total: every input,
// including NaN, yields exactly one band.
func (t BandThresholds) Classify(gap float64) AgeBand {
	switch {
	case gap >= t.Above:
		return BandAbove
	case gap >= t.OnLevel:
		return BandOnLevel
	case gap >= t.SlightlyBelow:
		return BandSlightlyBelow
	case gap >= t.Below:
		return BandBelow
	default:
		return BandSignificantlyBelow
	}
}

// ClassifyBand classifies gap with the default thresholds.
func ClassifyBand(gap float64) AgeBand {
	return DefaultBandThresholds().Classify(gap)
}

// ChronologicalAge returns the age in fractional years at asOf. Not rounded.
func ChronologicalAge(dob, asOf time.Time) float64 {
	days := asOf.UTC().Sub(dob.UTC()).Hours() / 24
	return days / daysPerYear
}

// AssessmentAgeDecimal converts a (year, month) level into decimal years.
func AssessmentAgeDecimal(year, month int) float64 {
	return float64(year) + float64(month)/12
}

// AgeGap returns assessment minus chronological age, rounded to one decimal.
// A positive gap means the student works above their age.
func AgeGap(assessmentAge, chronologicalAge float64) float64 {
	return Round1(assessmentAge - chronologicalAge)
}

// Round1 rounds half away from zero to one decimal place.
func Round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// GapResult is a classified gap. Both fields are nil when the student has no
// date of birth or no level.
type GapResult struct {
	Gap  *float64
	Band *AgeBand
}

// GapFor computes the classified gap for a level at asOf. A missing date of
// birth never defaults to zero.
func GapFor(dob *time.Time, level *Level, asOf time.Time, thresholds BandThresholds) GapResult {
	if dob == nil || level == nil {
		return GapResult{}
	}
	gap := AgeGap(level.AssessmentAge(), ChronologicalAge(*dob, asOf))
	band := thresholds.Classify(gap)
	return GapResult{Gap: &gap, Band: &band}
}
