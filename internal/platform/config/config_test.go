package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"TRAPPER_ADDR",
		"TRAPPER_AUTO_MATCH_THRESHOLD",
		"TRAPPER_REVIEW_FLOOR",
		"TRAPPER_DEDUPE_MAX_ENTITIES",
		"TRAPPER_DEDUPE_WORKERS",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Zero(t, cfg.Resolve.AutoMatchThreshold, "unset thresholds defer to the tuned defaults")
	assert.Zero(t, cfg.Resolve.ReviewFloor)
	assert.Equal(t, 50000, cfg.Batch.DedupeMaxEntities, "dedupe scans are bounded out of the box")
	assert.Zero(t, cfg.Batch.DedupeWorkers)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("TRAPPER_AUTO_MATCH_THRESHOLD", "0.90")
	t.Setenv("TRAPPER_REVIEW_FLOOR", "0.45")
	t.Setenv("TRAPPER_HOUSEHOLD_NAME_SIM", "0.60")
	t.Setenv("TRAPPER_DEDUPE_MAX_ENTITIES", "1000")
	t.Setenv("TRAPPER_DEDUPE_WORKERS", "8")
	t.Setenv("TRAPPER_SKELETON_INTERVAL", "5m")

	cfg := FromEnv()
	assert.Equal(t, 0.90, cfg.Resolve.AutoMatchThreshold)
	assert.Equal(t, 0.45, cfg.Resolve.ReviewFloor)
	assert.Equal(t, 0.60, cfg.Resolve.HouseholdNameSim)
	assert.Equal(t, 1000, cfg.Batch.DedupeMaxEntities)
	assert.Equal(t, 8, cfg.Batch.DedupeWorkers)
	assert.Equal(t, 5*time.Minute, cfg.Batch.SkeletonInterval)
}

func TestFromEnv_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("TRAPPER_AUTO_MATCH_THRESHOLD", "high")
	t.Setenv("TRAPPER_DEDUPE_MAX_ENTITIES", "lots")

	cfg := FromEnv()
	assert.Zero(t, cfg.Resolve.AutoMatchThreshold)
	assert.Equal(t, 50000, cfg.Batch.DedupeMaxEntities)
}
