package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCode(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  ParsedCode
		expectErr bool
	}{
		{
			name:     "Bare code",
			raw:      "QR-1",
			expected: ParsedCode{Key: "QR-1", Kind: KeyAny},
		},
		{
			name:     "Scanner suffix",
			raw:      "  QR-1\r\n",
			expected: ParsedCode{Key: "QR-1", Kind: KeyAny},
		},
		{
			name:     "Event prefix",
			raw:      "SE:ABC123",
			expected: ParsedCode{Key: "ABC123", Kind: KeyCode},
		},
		{
			name:     "Registration prefix lower case",
			raw:      "reg: a0X5e000001",
			expected: ParsedCode{Key: "a0X5e000001", Kind: KeyRegistration},
		},
		{
			name:     "URL with registration id",
			raw:      "https://events.example.edu/checkin?registrationId=R42&code=ignored",
			expected: ParsedCode{Key: "R42", Kind: KeyRegistration},
		},
		{
			name:     "URL with regId",
			raw:      "https://events.example.edu/checkin?regId=R7",
			expected: ParsedCode{Key: "R7", Kind: KeyRegistration},
		},
		{
			name:     "URL with code",
			raw:      "https://events.example.edu/checkin?code=QR-9",
			expected: ParsedCode{Key: "QR-9", Kind: KeyCode},
		},
		{
			name:     "URL path segment",
			raw:      "https://events.example.edu/r/QR-5/",
			expected: ParsedCode{Key: "QR-5", Kind: KeyAny},
		},
		{
			name:      "URL without key",
			raw:       "https://events.example.edu/",
			expectErr: true,
		},
		{
			name:      "Empty",
			raw:       " \t ",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseCode(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}
