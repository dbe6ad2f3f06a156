package model

import "time"

// EventInstance is one scheduled occurrence of an event.
type EventInstance struct {
	ID        string `gorm:"primaryKey;size:64"`
	EventName string `gorm:"size:256;not null"`
	Title     string `gorm:"size:256"`
	StartDate string `gorm:"size:10;index;not null"` // YYYY-MM-DD
	StartTime string `gorm:"size:5"`                 // HH:MM, empty when unscheduled
	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Registrations []Registration `gorm:"foreignKey:InstanceID"`
}

// Label is the option text shown when picking an instance.
func (e EventInstance) Label() string {
	label := e.EventName
	if e.Title != "" {
		label += " - " + e.Title
	}
	if e.StartTime != "" {
		label += " (" + e.StartTime + ")"
	}
	return label
}
