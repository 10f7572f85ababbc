package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollouts. Rollout
// assignment hashes the child ID, so a child keeps the same bucket
// across sessions and instances.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	childOverrides map[string]map[string]bool // childID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Children are assigned based on hash of their ID
	RolloutPercent int

	// Age group targeting (e.g., "3-4", "5-6")
	// Empty means all age groups
	TargetAgeGroups []string

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time

	// A/B test variant (for experiments)
	Variants []string
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	ChildID  string // Child profile ID
	AgeGroup string // Child age group (e.g., "3-4")
}

// Predefined feature flag names.
const (
	// === Recommendation Features ===
	FeatureRecommendationRefresh = "recommendations.refresh" // Scheduled suggestion refresh
	FeatureRecommendationExpiry  = "recommendations.expiry"  // Expire stale pending suggestions
	FeatureRecommendationLogging = "recommendations.logging" // Audit log of scored candidates

	// === Plan Features ===
	FeaturePlanBatchGeneration = "plan.batch_generation" // Sunday batch planning
	FeaturePlanFillers         = "plan.fillers"          // Fill plans beyond suggestions
	FeaturePlanEvolution       = "plan.evolution"        // Mid-week plan rebuilds

	// === Analytics Features ===
	FeatureAnalyticsMonthly = "analytics.monthly" // Monthly digest reports

	// === Experimental Features ===
	FeatureExperimentalScoring = "experimental.scoring" // Scoring weight experiments
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:       make(map[string]*Feature),
		childOverrides: make(map[string]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	defaults := []*Feature{
		{
			Name:           FeatureRecommendationRefresh,
			Description:    "Nightly suggestion refresh job",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureRecommendationExpiry,
			Description:    "Expire pending suggestions past the staleness window",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureRecommendationLogging,
			Description:    "Audit log of recommendation decisions",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeaturePlanBatchGeneration,
			Description:    "Weekly batch plan generation",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeaturePlanFillers,
			Description:    "Fill plan capacity beyond accepted suggestions",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeaturePlanEvolution,
			Description:    "Rebuild plans mid-week for very active children",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureAnalyticsMonthly,
			Description:    "Monthly per-child digest reports",
			Enabled:        true,
			RolloutPercent: 100,
		},
		{
			Name:           FeatureExperimentalScoring,
			Description:    "Alternative scoring weights",
			Enabled:        false,
			RolloutPercent: 0,
			Variants:       []string{"control", "novelty_heavy"},
		},
	}

	for _, f := range defaults {
		ff.features[f.Name] = f
	}
}

// loadFromEnvironment applies FEATURE_* overrides.
// FEATURE_PLAN_EVOLUTION=false disables plan.evolution;
// FEATURE_PLAN_EVOLUTION_ROLLOUT=25 limits it to 25% of children.
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)

		if val := os.Getenv(envKey); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
			}
		}

		if val := os.Getenv(envKey + "_ROLLOUT"); val != "" {
			if pct, err := strconv.Atoi(val); err == nil && pct >= 0 && pct <= 100 {
				feature.RolloutPercent = pct
			}
		}
	}
}

// featureNameToEnvKey converts "plan.evolution" to "FEATURE_PLAN_EVOLUTION".
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks whether a feature is enabled for the given context.
// A nil context evaluates only the global toggle and time window.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, exists := ff.features[featureName]
	if !exists {
		return false
	}

	// Per-child overrides win over everything
	if ctx != nil && ctx.ChildID != "" {
		if overrides, ok := ff.childOverrides[ctx.ChildID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	if !feature.Enabled {
		return false
	}

	// Time window
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	if ctx == nil {
		return feature.RolloutPercent >= 100
	}

	// Age group targeting
	if len(feature.TargetAgeGroups) > 0 {
		matched := false
		for _, g := range feature.TargetAgeGroups {
			if g == ctx.AgeGroup {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	// Rollout percentage
	if feature.RolloutPercent < 100 {
		return ff.isInRollout(ctx.ChildID, featureName, feature.RolloutPercent)
	}

	return true
}

// isInRollout determines rollout membership from a stable hash of the
// child ID and the feature name.
func (ff *FeatureFlags) isInRollout(childID, featureName string, percent int) bool {
	if percent <= 0 {
		return false
	}
	if percent >= 100 {
		return true
	}

	h := fnv.New32a()
	h.Write([]byte(childID))
	h.Write([]byte(featureName))
	bucket := h.Sum32() % 100

	return int(bucket) < percent
}

// GetVariant returns the A/B variant assigned to the context, or ""
// when the feature is off or has no variants.
func (ff *FeatureFlags) GetVariant(featureName string, ctx *FeatureContext) string {
	if !ff.IsEnabled(featureName, ctx) {
		return ""
	}

	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, exists := ff.features[featureName]
	if !exists || len(feature.Variants) == 0 {
		return ""
	}
	if ctx == nil || ctx.ChildID == "" {
		return feature.Variants[0]
	}

	h := fnv.New32a()
	h.Write([]byte(ctx.ChildID))
	h.Write([]byte(featureName))
	h.Write([]byte("variant"))
	idx := h.Sum32() % uint32(len(feature.Variants))

	return feature.Variants[idx]
}

// SetChildOverride forces a feature on or off for one child.
func (ff *FeatureFlags) SetChildOverride(childID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.childOverrides[childID] == nil {
		ff.childOverrides[childID] = make(map[string]bool)
	}
	ff.childOverrides[childID][featureName] = enabled
}

// ClearChildOverrides removes all overrides for one child.
func (ff *FeatureFlags) ClearChildOverrides(childID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	delete(ff.childOverrides, childID)
}

// SetRolloutPercent adjusts the rollout percentage at runtime.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	if percent < 0 || percent > 100 {
		return &FeatureFlagError{Message: "rollout percent must be 0-100"}
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, exists := ff.features[featureName]
	if !exists {
		return &FeatureFlagError{Message: "unknown feature: " + featureName}
	}
	feature.RolloutPercent = percent
	return nil
}

// EnableFeature turns a feature on globally.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.setEnabled(featureName, true)
}

// DisableFeature turns a feature off globally.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.setEnabled(featureName, false)
}

func (ff *FeatureFlags) setEnabled(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, exists := ff.features[featureName]
	if !exists {
		return &FeatureFlagError{Message: "unknown feature: " + featureName}
	}
	feature.Enabled = enabled
	return nil
}

// GetAllFeatures returns a snapshot of all registered features.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make(map[string]*Feature, len(ff.features))
	for name, f := range ff.features {
		copied := *f
		out[name] = &copied
	}
	return out
}

// FeatureFlagError represents a feature flag operation error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return "feature flags: " + e.Message
}
