// Package gateway describes the registration data service the check-in desk
// talks to. Implementations live in internal/store (database backed) and
// internal/remote (HTTP backed).
package gateway

import (
	"context"
	"encoding/json"
	"strconv"
)

// Gateway is the set of remote operations a check-in desk depends on. Every
// call may fail; a returned error always means a transport failure, while
// business outcomes are reported through Success and Message.
type Gateway interface {
	LookupByCode(ctx context.Context, req LookupRequest) (*CheckinResult, error)
	CommitCheckIn(ctx context.Context, req RegistrationRequest) (*CheckinResult, error)
	UndoCheckIn(ctx context.Context, req RegistrationRequest) (*UndoResult, error)
	SearchRegistrations(ctx context.Context, req SearchRequest) ([]SearchResult, error)
	ListInstancesByDate(ctx context.Context, date string) ([]InstanceOption, error)
	CountAttended(ctx context.Context, instanceID, checkinStatus string) (int, error)
}

// DateLayout is the calendar date format used to pick instances.
const DateLayout = "2006-01-02"

type LookupRequest struct {
	Code          string `json:"code"`
	InstanceID    string `json:"instanceId"`
	CheckinStatus string `json:"checkinStatus"`
}

type RegistrationRequest struct {
	RegistrationID string `json:"registrationId"`
	InstanceID     string `json:"instanceId"`
	CheckinStatus  string `json:"checkinStatus"`
}

type SearchRequest struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Email         string `json:"email"`
	InstanceID    string `json:"instanceId"`
	CheckinStatus string `json:"checkinStatus"`
}

type CountRequest struct {
	InstanceID    string `json:"instanceId"`
	CheckinStatus string `json:"checkinStatus"`
}

type InstancesRequest struct {
	Date string `json:"date"`
}

// CheckinResult is the outcome of a lookup (not yet committed) or of a
// commit (finalized).
type CheckinResult struct {
	Success           bool      `json:"success"`
	AlreadyCheckedIn  bool      `json:"alreadyCheckedIn"`
	Message           string    `json:"message"`
	RegistrantName    string    `json:"registrantName"`
	EventName         string    `json:"eventName"`
	InstanceTitle     string    `json:"instanceTitle"`
	RegistrationID    string    `json:"registrationId"`
	InstanceStartTime StartTime `json:"instanceStartTime"`
}

// IsNewCheckIn reports whether the result represents a first-time check-in.
func (r *CheckinResult) IsNewCheckIn() bool {
	return r != nil && r.Success && !r.AlreadyCheckedIn
}

type UndoResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	RegistrantName string `json:"registrantName"`
}

type SearchResult struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Status        string `json:"status,omitempty"`
	EventName     string `json:"eventName,omitempty"`
	InstanceTitle string `json:"instanceTitle,omitempty"`
}

type InstanceOption struct {
	Value             string    `json:"value"`
	Label             string    `json:"label"`
	EventName         string    `json:"eventName"`
	InstanceTitle     string    `json:"instanceTitle"`
	InstanceStartDate string    `json:"instanceStartDate"`
	InstanceStartTime StartTime `json:"instanceStartTime"`
}

// StartTime is an instance start time as the upstream reports it: a display
// string ("09:30"), milliseconds since midnight, or nothing at all.
type StartTime struct {
	Text   string
	Millis *int64
}

func TimeText(s string) StartTime { return StartTime{Text: s} }

func TimeMillis(ms int64) StartTime { return StartTime{Millis: &ms} }

func (t StartTime) IsZero() bool { return t.Text == "" && t.Millis == nil }

// String renders the time as HH:MM when it was given in milliseconds.
func (t StartTime) String() string {
	if t.Millis != nil {
		mins := *t.Millis / 60000
		h, m := mins/60, mins%60
		return pad2(h) + ":" + pad2(m)
	}
	return t.Text
}

func pad2(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

func (t StartTime) MarshalJSON() ([]byte, error) {
	switch {
	case t.Millis != nil:
		return json.Marshal(*t.Millis)
	case t.Text != "":
		return json.Marshal(t.Text)
	default:
		return []byte("null"), nil
	}
}

func (t *StartTime) UnmarshalJSON(b []byte) error {
	*t = StartTime{}
	if string(b) == "null" {
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		t.Millis = &n
		return nil
	}
	return json.Unmarshal(b, &t.Text)
}
