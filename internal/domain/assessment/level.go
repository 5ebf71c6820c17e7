package assessment

import (
	"fmt"
	"time"

	"github.com/agepath/placement-engine/internal/domain/shared"
)

const (
	// MaxAgeYear bounds the catalogue; no level is placed above it.
	MaxAgeYear = 25

	// MaxAgeMonth is inclusive. A month of 12 is kept distinct from the next
	// year's month 0 because existing catalogues contain both.
	MaxAgeMonth = 12
)

// Level is one row of the age-level catalogue, e.g. "6.1" = 6 years 1 month.
// Levels are never deleted; admins deactivate them instead.
type Level struct {
	ID              string
	AgeYear         int
	AgeMonth        int
	LocaleYearLabel *string
	IsActive        bool
	CreatedAt       time.Time
}

// NewLevel validates the age pair and builds an active level.
func NewLevel(ageYear, ageMonth int, localeYearLabel *string, now time.Time) (*Level, error) {
	if err := ValidateAge(ageYear, ageMonth); err != nil {
		return nil, err
	}
	return &Level{
		ID:              shared.NewID(),
		AgeYear:         ageYear,
		AgeMonth:        ageMonth,
		LocaleYearLabel: localeYearLabel,
		IsActive:        true,
		CreatedAt:       now.UTC(),
	}, nil
}

// ValidateAge checks the (year, month) pair bounds.
func ValidateAge(ageYear, ageMonth int) error {
	var fields []shared.FieldError
	if ageYear < 0 || ageYear > MaxAgeYear {
		fields = append(fields, shared.FieldError{
			Field:   "ageYear",
			Message: fmt.Sprintf("must be between 0 and %d", MaxAgeYear),
		})
	}
	if ageMonth < 0 || ageMonth > MaxAgeMonth {
		fields = append(fields, shared.FieldError{
			Field:   "ageMonth",
			Message: fmt.Sprintf("must be between 0 and %d", MaxAgeMonth),
		})
	}
	if len(fields) > 0 {
		return shared.Invalid("level", "ValidateAge", "invalid assessment age", fields...)
	}
	return nil
}

// DisplayLabel renders the level as "year.month".
func (l *Level) DisplayLabel() string {
	return fmt.Sprintf("%d.%d", l.AgeYear, l.AgeMonth)
}

// AssessmentAge returns the level as a decimal age.
func (l *Level) AssessmentAge() float64 {
	return AssessmentAgeDecimal(l.AgeYear, l.AgeMonth)
}

// Less orders levels by year then month.
func (l *Level) Less(other *Level) bool {
	if l.AgeYear != other.AgeYear {
		return l.AgeYear < other.AgeYear
	}
	return l.AgeMonth < other.AgeMonth
}

// Clone returns a deep copy of the level.
func (l *Level) Clone() *Level {
	c := *l
	if l.LocaleYearLabel != nil {
		label := *l.LocaleYearLabel
		c.LocaleYearLabel = &label
	}
	return &c
}
