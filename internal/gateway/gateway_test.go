package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartTime_JSON(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected string
		display  string
	}{
		{name: "null", raw: `null`, expected: `null`, display: ""},
		{name: "text", raw: `"09:30 AM"`, expected: `"09:30 AM"`, display: "09:30 AM"},
		{name: "millis", raw: `34200000`, expected: `34200000`, display: "09:30"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var st StartTime
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &st))
			assert.Equal(t, tc.display, st.String())

			out, err := json.Marshal(st)
			require.NoError(t, err)
			assert.JSONEq(t, tc.expected, string(out))
		})
	}
}

func TestCheckinResult_IsNewCheckIn(t *testing.T) {
	assert.False(t, (*CheckinResult)(nil).IsNewCheckIn())
	assert.True(t, (&CheckinResult{Success: true}).IsNewCheckIn())
	assert.False(t, (&CheckinResult{Success: true, AlreadyCheckedIn: true}).IsNewCheckIn())
	assert.False(t, (&CheckinResult{Success: false}).IsNewCheckIn())
}

func TestCheckinResult_DecodesMissingStartTime(t *testing.T) {
	var r CheckinResult
	require.NoError(t, json.Unmarshal([]byte(`{"success":true,"registrationId":"R1"}`), &r))
	assert.True(t, r.InstanceStartTime.IsZero())
	assert.Equal(t, "R1", r.RegistrationID)
}
