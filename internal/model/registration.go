package model

import (
	"strings"
	"time"
)

// DefaultRegistrationStatus is the status of a registration nobody has checked in.
const DefaultRegistrationStatus = "Registered"

// Registration is a registrant's record for one event instance.
type Registration struct {
	ID             string `gorm:"primaryKey;size:64"`
	InstanceID     string `gorm:"index;size:64;not null"`
	CheckinCode    string `gorm:"uniqueIndex;size:128;not null"`
	FirstName      string `gorm:"size:128"`
	LastName       string `gorm:"size:128"`
	Email          string `gorm:"size:256;index"`
	Status         string `gorm:"size:64;not null;index"`
	PreviousStatus string `gorm:"size:64"`
	CheckedInAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Associations
	Instance EventInstance `gorm:"constraint:OnDelete:CASCADE"`
}

// FullName joins the first and last name.
func (r Registration) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}
