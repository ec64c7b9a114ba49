package jam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T {
	return &v
}

func TestMergeEmptyPatchKeepsState(t *testing.T) {
	state := State{
		Id:          "r1",
		CurrentTime: 42.5,
		Playing:     true,
		Volume:      0.3,
		VocalOn:     true,
		IsOn:        true,
		QueueIdx:    ptr(2),
	}

	assert.Equal(t, state, Merge(state, Patch{}))
}

func TestMergeAppliesOnlyPresentFields(t *testing.T) {
	state := Default("r1")

	merged := Merge(state, Patch{
		CurrentTime: ptr(12.3),
		Playing:     ptr(true),
	})

	assert.Equal(t, 12.3, merged.CurrentTime)
	assert.True(t, merged.Playing)
	// untouched fields keep their previous values
	assert.Equal(t, 0.8, merged.Volume)
	assert.False(t, merged.VocalOn)
	assert.False(t, merged.IsOn)
	assert.Nil(t, merged.QueueIdx)
}

func TestMergeDoesNotAliasPatch(t *testing.T) {
	idx := 3
	merged := Merge(Default("r1"), Patch{QueueIdx: &idx})

	idx = 7
	assert.Equal(t, 3, *merged.QueueIdx)
}

func TestDefault(t *testing.T) {
	state := Default("r1")

	assert.Equal(t, "r1", state.Id)
	assert.Equal(t, 0.0, state.CurrentTime)
	assert.False(t, state.Playing)
	assert.Equal(t, 0.8, state.Volume)
	assert.False(t, state.VocalOn)
	assert.False(t, state.IsOn)
	assert.Nil(t, state.QueueIdx)
}
