package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"checkin-desk-backend/config"
	"checkin-desk-backend/internal/desk"
	"checkin-desk-backend/internal/gateway"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	desks   *desk.Registry
	gw      gateway.Gateway
	db      *gorm.DB
	webpush *webpush.Options
	widget  config.WidgetConfig
	// secureHeader names the proxy header carrying the original scheme.
	secureHeader string
	log          zerolog.Logger
}

// Deps are the collaborators of the API handlers.
type Deps struct {
	Desks   *desk.Registry
	Gateway gateway.Gateway
	DB      *gorm.DB
	WebPush *webpush.Options
	Widget  config.WidgetConfig
	Server  config.ServerConfig
	Logger  zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		desks:        d.Desks,
		gw:           d.Gateway,
		db:           d.DB,
		webpush:      d.WebPush,
		widget:       d.Widget,
		secureHeader: d.Server.SecureContextHeader,
		log:          d.Logger,
	}
}
