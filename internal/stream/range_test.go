package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenecast/internal/ports"
)

func TestParseRange(t *testing.T) {
	const size = 1000
	tests := []struct {
		header string
		want   *ports.ByteRange
	}{
		{"", nil},
		{"bytes=0-99", &ports.ByteRange{Start: 0, End: 99}},
		{"bytes=100-", &ports.ByteRange{Start: 100, End: 999}},
		{"bytes=900-5000", &ports.ByteRange{Start: 900, End: 999}},
		{"bytes=999-999", &ports.ByteRange{Start: 999, End: 999}},
		{"bytes=-100", &ports.ByteRange{Start: 900, End: 999}},
		{"bytes=-5000", &ports.ByteRange{Start: 0, End: 999}},
		{" bytes=10-20 ", &ports.ByteRange{Start: 10, End: 20}},
		// malformed falls back to the full object
		{"bytes=-", nil},
		{"bytes=20-10", nil},
		{"bytes=0-1,5-6", nil},
		{"items=0-10", nil},
		{"bytes=abc", nil},
		{"bytes=99999999999999999999-", nil},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := ParseRange(tt.header, size)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRangeUnsatisfiable(t *testing.T) {
	for _, tc := range []struct {
		header string
		size   int64
	}{
		// start == size: nothing left to clamp to
		{"bytes=1000-", 1000},
		{"bytes=1000-1200", 1000},
		{"bytes=-0", 1000},
		{"bytes=0-", 0},
		{"bytes=-10", 0},
	} {
		_, err := ParseRange(tc.header, tc.size)
		require.Error(t, err, tc.header)
		size, ok := UnsatisfiedSize(err)
		assert.True(t, ok)
		assert.Equal(t, tc.size, size)
	}
}

func TestUnsatisfiedSizeIgnoresOtherErrors(t *testing.T) {
	_, ok := UnsatisfiedSize(assert.AnError)
	assert.False(t, ok)
}
