package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunDays(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name       string
		start, end time.Time
		want       []time.Time
	}{
		{
			name:  "same day",
			start: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
			end:   time.Date(2024, 6, 1, 17, 30, 0, 0, time.UTC),
			want:  []time.Time{day(1)},
		},
		{
			name:  "crosses midnight",
			start: time.Date(2024, 6, 1, 23, 50, 0, 0, time.UTC),
			end:   time.Date(2024, 6, 2, 0, 10, 0, 0, time.UTC),
			want:  []time.Time{day(1), day(2)},
		},
		{
			name:  "several days",
			start: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
			end:   time.Date(2024, 6, 3, 1, 0, 0, 0, time.UTC),
			want:  []time.Time{day(1), day(2), day(3)},
		},
		{
			name:  "local zone is normalised to UTC",
			start: time.Date(2024, 6, 2, 1, 0, 0, 0, time.FixedZone("IST", 5*3600+1800)),
			end:   time.Date(2024, 6, 2, 3, 0, 0, 0, time.FixedZone("IST", 5*3600+1800)),
			want:  []time.Time{day(1)},
		},
		{
			name:  "end before start",
			start: time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC),
			end:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
			want:  []time.Time{day(2)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RunDays(tt.start, tt.end))
		})
	}
}
