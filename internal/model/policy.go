package model

import "time"

// Retention policy bounds and defaults.
const (
	MinRetentionDays     = 7
	MaxRetentionDays     = 365
	DefaultRetentionDays = 90

	// Default ceilings for non-pinned memories. Pinned memories are exempt
	// from eviction, so pinning past the ceiling is possible on purpose.
	DefaultSubjectCeiling = 50
	DefaultGlobalCeiling  = 100
)

// RetentionPolicy is the single process-wide retention configuration.
// Created with defaults on first use, mutable only through the admin surface.
type RetentionPolicy struct {
	RetentionDays  int       `json:"retention_days"`
	SubjectCeiling int       `json:"subject_ceiling"`
	GlobalCeiling  int       `json:"global_ceiling"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DefaultRetentionPolicy returns the policy seeded on first use.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		RetentionDays:  DefaultRetentionDays,
		SubjectCeiling: DefaultSubjectCeiling,
		GlobalCeiling:  DefaultGlobalCeiling,
	}
}
