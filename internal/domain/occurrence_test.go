package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOccurrenceKeyString(t *testing.T) {
	id := uuid.MustParse("6f1c2a8e-3b5d-4e7f-9a0b-1c2d3e4f5a6b")
	key := NewOccurrenceKey(id, time.Date(2024, 6, 1, 15, 30, 0, 0, time.UTC))

	assert.Equal(t, "6f1c2a8e-3b5d-4e7f-9a0b-1c2d3e4f5a6b-2024-6-1", key.String())
	assert.True(t, key.Date.Equal(date(2024, 6, 1)), "time of day is dropped")
}

func TestParseOccurrenceKey_RoundTrip(t *testing.T) {
	key := NewOccurrenceKey(uuid.New(), date(2024, 12, 31))

	parsed, err := ParseOccurrenceKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key.SeriesID, parsed.SeriesID)
	assert.True(t, parsed.Date.Equal(key.Date))
	assert.Equal(t, key, parsed)
}

func TestParseOccurrenceKey_Invalid(t *testing.T) {
	id := uuid.New().String()
	inputs := []string{
		"",
		"abc",
		id,
		id + "-2024-6",
		"not-a-uuid-at-all-2024-6-1",
		id + "-2024-x-1",
		id + "-2024-2-30",
		id + "-2024-13-1",
	}

	for _, in := range inputs {
		_, err := ParseOccurrenceKey(in)
		assert.ErrorIs(t, err, ErrValidation, "input %q", in)
	}
}

func TestOccurrenceKeyMarshalJSON(t *testing.T) {
	key := NewOccurrenceKey(uuid.New(), date(2024, 6, 1))
	occ := VirtualOccurrence{Key: key, IsGenerated: true}

	data, err := json.Marshal(occ)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, key.String(), decoded["id"])
	assert.Equal(t, true, decoded["isGenerated"])
}

func TestOccurrenceWindowContains(t *testing.T) {
	w := OccurrenceWindow{
		Start:       date(2024, 5, 31),
		End:         date(2024, 7, 1),
		TargetMonth: time.June,
		TargetYear:  2024,
	}

	assert.True(t, w.Contains(date(2024, 6, 1)))
	assert.True(t, w.Contains(date(2024, 6, 30)))
	assert.False(t, w.Contains(date(2024, 5, 31)), "inside range but outside target month")
	assert.False(t, w.Contains(date(2024, 7, 1)), "inside range but outside target month")
	assert.False(t, w.Contains(date(2024, 7, 2)))
}
