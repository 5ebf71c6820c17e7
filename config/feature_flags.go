package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages runtime toggles of the placement engine.
// Flags can be rolled out to a percentage of tenants or targeted at specific
// tenants while a behaviour is piloted.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	tenantOverrides map[string]map[string]bool // tenantID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Tenants are assigned based on hash of their ID
	RolloutPercent int

	// Empty means all tenants
	TargetTenants []string

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	TenantID string
}

// Predefined feature flag names.
const (
	// === Notifications ===
	FeatureNotifyLessonSubmitted   = "notify.lesson_submitted"    // Tell the placing teacher a lesson awaits marking
	FeatureNotifyReadyForPromotion = "notify.ready_for_promotion" // Tell the placing teacher the threshold was reached

	// === Audit ===
	FeatureAuditReadinessFlip = "audit.readiness_flip" // Write READINESS_FLAGGED history rows

	// === Reporting ===
	FeatureGridCache = "grid.cache" // Redis read-through cache for the assessment grid

	// === Events ===
	FeatureEventsRedisRelay = "events.redis_relay" // Mirror domain events onto Redis pub/sub
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:        make(map[string]*Feature),
		tenantOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureNotifyLessonSubmitted] = &Feature{
		Name:           FeatureNotifyLessonSubmitted,
		Description:    "Notify the placing teacher when a lesson is submitted",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureNotifyReadyForPromotion] = &Feature{
		Name:           FeatureNotifyReadyForPromotion,
		Description:    "Notify the placing teacher when a placement is ready for promotion",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAuditReadinessFlip] = &Feature{
		Name:           FeatureAuditReadinessFlip,
		Description:    "Record readiness flips in the placement history",
		Enabled:        false,
		RolloutPercent: 0,
	}

	ff.features[FeatureGridCache] = &Feature{
		Name:           FeatureGridCache,
		Description:    "Cache assessment grids in Redis",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureEventsRedisRelay] = &Feature{
		Name:           FeatureEventsRedisRelay,
		Description:    "Relay domain events to Redis pub/sub",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_AUDIT_READINESS_FLIP=true
// Example: FEATURE_GRID_CACHE=50 (50% of tenants)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "audit.readiness_flip" -> "FEATURE_AUDIT_READINESS_FLIP"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if ctx != nil && ctx.TenantID != "" {
		if overrides, ok := ff.tenantOverrides[ctx.TenantID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}

	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	if len(feature.TargetTenants) > 0 && ctx != nil && ctx.TenantID != "" {
		match := false
		for _, t := range feature.TargetTenants {
			if t == ctx.TenantID {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	if feature.RolloutPercent < 100 && ctx != nil && ctx.TenantID != "" {
		return isInRollout(ctx.TenantID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a tenant is in the rollout percentage.
// Uses consistent hashing so tenants stay in their bucket.
func isInRollout(tenantID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(tenantID))
	return int(h.Sum32()%100) < percent
}

// SetTenantOverride forces a feature on or off for one tenant.
func (ff *FeatureFlags) SetTenantOverride(tenantID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.tenantOverrides[tenantID]; !ok {
		ff.tenantOverrides[tenantID] = make(map[string]bool)
	}
	ff.tenantOverrides[tenantID][featureName] = enabled
}

// ClearTenantOverrides removes all overrides for a tenant.
func (ff *FeatureFlags) ClearTenantOverrides(tenantID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.tenantOverrides, tenantID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Convenience methods consumed by the application layer ---

func (ff *FeatureFlags) forTenant(name, tenantID string) bool {
	return ff.IsEnabled(name, &FeatureContext{TenantID: tenantID})
}

// NotifyLessonSubmitted reports whether submitted-lesson notifications are on.
func (ff *FeatureFlags) NotifyLessonSubmitted(tenantID string) bool {
	return ff.forTenant(FeatureNotifyLessonSubmitted, tenantID)
}

// NotifyReadyForPromotion reports whether readiness notifications are on.
func (ff *FeatureFlags) NotifyReadyForPromotion(tenantID string) bool {
	return ff.forTenant(FeatureNotifyReadyForPromotion, tenantID)
}

// AuditReadinessFlip reports whether readiness flips are written to history.
func (ff *FeatureFlags) AuditReadinessFlip(tenantID string) bool {
	return ff.forTenant(FeatureAuditReadinessFlip, tenantID)
}

// GridCacheEnabled reports whether grids are cached for the tenant.
func (ff *FeatureFlags) GridCacheEnabled(tenantID string) bool {
	return ff.forTenant(FeatureGridCache, tenantID)
}

// RedisRelayEnabled reports whether events are mirrored to Redis.
func (ff *FeatureFlags) RedisRelayEnabled() bool {
	return ff.IsEnabled(FeatureEventsRedisRelay, nil)
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
