package assessment

import "fmt"

// Policy holds the promotion rules.
type Policy struct {
	// PromotionThreshold is the MARKED lesson count at which a placement is
	// flagged ready for promotion.
	PromotionThreshold int

	// LessonsPerLevel bounds currentLessonNumber and is the denominator of
	// lesson progress.
	LessonsPerLevel int

	Bands BandThresholds
}

// DefaultPolicy returns the standard 25/25 policy.
func DefaultPolicy() Policy {
	return Policy{
		PromotionThreshold: 25,
		LessonsPerLevel:    25,
		Bands:              DefaultBandThresholds(),
	}
}

// Validate checks that the policy is usable.
func (p Policy) Validate() error {
	if p.PromotionThreshold <= 0 {
		return fmt.Errorf("promotion threshold must be positive, got %d", p.PromotionThreshold)
	}
	if p.LessonsPerLevel <= 0 {
		return fmt.Errorf("lessons per level must be positive, got %d", p.LessonsPerLevel)
	}
	b := p.Bands
	if !(b.Above > b.OnLevel && b.OnLevel > b.SlightlyBelow && b.SlightlyBelow > b.Below) {
		return fmt.Errorf("band thresholds must be strictly decreasing")
	}
	return nil
}

// ReachedThreshold reports whether a MARKED count qualifies for promotion.
func (p Policy) ReachedThreshold(lessonsCompleted int) bool {
	return lessonsCompleted >= p.PromotionThreshold
}

// ValidLessonNumber reports whether n is within [1, LessonsPerLevel].
func (p Policy) ValidLessonNumber(n int) bool {
	return n >= 1 && n <= p.LessonsPerLevel
}
