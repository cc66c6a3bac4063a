package timestamp_test

import (
	"testing"
	"time"

	"github.com/kiranshivaraju/rollreview/internal/timestamp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"00:00:00", 0},
		{"00:00:07", 7 * time.Second},
		{"01:02:03", time.Hour + 2*time.Minute + 3*time.Second},
		{"23:59:59", 23*time.Hour + 59*time.Minute + 59*time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := timestamp.Parse(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "bad", "1:02:03", "01:02", "01:02:03.5", " 01:02:03", "24:00:00", "00:60:00", "00:00:60", "aa:bb:cc"} {
		t.Run(in, func(t *testing.T) {
			_, ok := timestamp.Parse(in)
			assert.False(t, ok)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "00:00:00", timestamp.Format(0))
	assert.Equal(t, "00:01:30", timestamp.Format(90*time.Second))
	assert.Equal(t, "10:00:00", timestamp.Format(10*time.Hour))
	assert.Equal(t, "00:00:01", timestamp.Format(1500*time.Millisecond))
	assert.Equal(t, "00:00:00", timestamp.Format(-time.Second))
}

func TestRoundTrip(t *testing.T) {
	d, ok := timestamp.Parse("01:02:03")
	require.True(t, ok)
	assert.Equal(t, "01:02:03", timestamp.Format(d))
}

func TestPtrHelpers(t *testing.T) {
	assert.Nil(t, timestamp.ParsePtr(nil))

	bad := "bad"
	assert.Nil(t, timestamp.ParsePtr(&bad))

	good := "00:00:42"
	d := timestamp.ParsePtr(&good)
	require.NotNil(t, d)
	assert.Equal(t, 42*time.Second, *d)

	assert.Nil(t, timestamp.FormatPtr(nil))
	assert.Equal(t, "00:00:42", *timestamp.FormatPtr(d))
}
