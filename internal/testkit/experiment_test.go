package testkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"variatio/domain/experiment"
)

func TestExperimentGenerator_Deterministic(t *testing.T) {
	cfg := DefaultExperimentConfig()

	first := NewExperimentGenerator(cfg).Generate()
	second := NewExperimentGenerator(cfg).Generate()

	assert.Equal(t, first, second)
}

func TestExperimentGenerator_Shape(t *testing.T) {
	cfg := DefaultExperimentConfig()
	cfg.Arms = []string{"control", "t1", "t2"}
	data := NewExperimentGenerator(cfg).Generate()

	require.Len(t, data.Allocations.Rows, cfg.UserCount)
	require.Len(t, data.Properties.Rows, cfg.UserCount)
	assert.ElementsMatch(t, cfg.Arms, data.Allocations.Arms())

	users := make(map[string]bool)
	for _, row := range data.Allocations.Rows {
		assert.False(t, users[row.UserID], "duplicate user %s", row.UserID)
		users[row.UserID] = true
	}

	var pretest, intest int
	alloc := data.Allocations.Index()
	for _, ev := range data.Events.Rows {
		require.True(t, users[ev.UserID])
		if experiment.Pretest.Contains(ev.Timestamp, alloc[ev.UserID].Timestamp) {
			pretest++
		} else {
			intest++
		}
	}
	assert.Greater(t, pretest, 0)
	assert.Greater(t, intest, 0)
}
