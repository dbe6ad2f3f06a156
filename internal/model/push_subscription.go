package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// An empty InstanceID receives summaries for every instance.
type PushSubscription struct {
	Endpoint   string    `gorm:"primaryKey"`
	P256DH     string    `gorm:"column:p256dh;not null"`
	Auth       string    `gorm:"not null"`
	InstanceID string    `gorm:"size:64;index"`
	CreatedAt  time.Time `gorm:"not null"`
}
