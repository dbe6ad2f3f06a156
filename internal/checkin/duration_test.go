package checkin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0 seconds"},
		{999 * time.Millisecond, "0 seconds"},
		{time.Second, "1 second"},
		{59 * time.Second, "59 seconds"},
		{60 * time.Second, "1 minute"},
		{119 * time.Second, "1 minute"},
		{2 * time.Minute, "2 minutes"},
		{59*time.Minute + 59*time.Second, "59 minutes"},
		{time.Hour, "1h 0m"},
		{time.Hour + 5*time.Minute, "1h 5m"},
		{26*time.Hour + 30*time.Minute, "26h 30m"},
		{-5 * time.Second, "0 seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.in))
		})
	}
}

func TestSummaryMessage(t *testing.T) {
	assert.Equal(t, "Checked in 0 registrants in 3 seconds", Summary{ScanCount: 0, Duration: "3 seconds"}.Message())
	assert.Equal(t, "Checked in 1 registrant in 1 minute", Summary{ScanCount: 1, Duration: "1 minute"}.Message())
	assert.Equal(t, "Checked in 12 registrants in 1h 2m", Summary{ScanCount: 12, Duration: "1h 2m"}.Message())
}
