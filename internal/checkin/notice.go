package checkin

import "time"

// Variant selects how a notice is presented.
type Variant string

const (
	VariantSuccess Variant = "success"
	VariantInfo    Variant = "info"
	VariantWarning Variant = "warning"
	VariantError   Variant = "error"
)

// Notice is a toast the presentation layer shows to staff. Error notices
// stay until dismissed.
type Notice struct {
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Variant Variant   `json:"variant"`
	Sticky  bool      `json:"sticky"`
	At      time.Time `json:"at"`
}

const maxNotices = 50

func (m *Machine) noticeLocked(variant Variant, title, message string) {
	n := Notice{
		Title:   title,
		Message: message,
		Variant: variant,
		Sticky:  variant == VariantError,
		At:      m.now(),
	}
	if len(m.notices) >= maxNotices {
		m.notices = m.notices[1:]
	}
	m.notices = append(m.notices, n)
}

// Notices drains the notices emitted since the last call.
func (m *Machine) Notices() []Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.notices
	m.notices = nil
	return out
}
