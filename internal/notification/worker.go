package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"checkin-desk-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SessionSummary is the job delivered when a desk stops a scanning session.
type SessionSummary struct {
	DeskID     string    `json:"deskId"`
	InstanceID string    `json:"instanceId"`
	ScanCount  int       `json:"scanCount"`
	Duration   string    `json:"duration"`
	Message    string    `json:"message"`
	EndedAt    time.Time `json:"endedAt"`
}

// payload is the JSON body pushed to subscribers.
type payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	SessionSummary
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan SessionSummary
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	log     zerolog.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, log zerolog.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan SessionSummary, size*8),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := wp.log.With().Int("worker", id).Logger()
	log.Debug().Msg("worker started")
	for {
		select {
		case job := <-wp.jobs:
			log.Debug().Str("instance_id", job.InstanceID).Msg("delivering session summary")
			wp.sendSummary(ctx, job)
		case <-ctx.Done():
			log.Debug().Msg("worker shutting down")
			return
		}
	}
}

// Dispatch queues a summary. It never blocks the caller; a full queue drops
// the summary and reports false.
func (wp *WorkerPool) Dispatch(job SessionSummary) bool {
	select {
	case wp.jobs <- job:
		return true
	default:
		wp.log.Warn().Str("instance_id", job.InstanceID).Msg("notification queue full, dropping session summary")
		return false
	}
}

// Drain waits until every queued summary has been picked up by a worker or
// ctx ends.
func (wp *WorkerPool) Drain(ctx context.Context) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for len(wp.jobs) > 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan SessionSummary {
	return wp.jobs
}

// sendSummary pushes the summary to every subscription for its instance and
// to the catch-all subscriptions.
func (wp *WorkerPool) sendSummary(ctx context.Context, job SessionSummary) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Where("instance_id = ? OR instance_id = ?", job.InstanceID, "").
		Find(&subscriptions).Error
	if err != nil {
		wp.log.Error().Err(err).Str("instance_id", job.InstanceID).Msg("failed to fetch subscriptions")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	title := "Session Ended"
	var instance model.EventInstance
	if err := wp.db.WithContext(ctx).
		Select("event_name", "title").
		First(&instance, "id = ?", job.InstanceID).Error; err != nil {
		wp.log.Debug().Err(err).Str("instance_id", job.InstanceID).Msg("instance label unavailable")
	} else if label := instance.Label(); label != "" {
		title = "Session Ended: " + label
	}

	body, err := json.Marshal(payload{Title: title, Body: job.Message, SessionSummary: job})
	if err != nil {
		wp.log.Error().Err(err).Msg("failed to encode push payload")
		return
	}

	wp.log.Info().Int("subscriptions", len(subscriptions)).Str("instance_id", job.InstanceID).Msg("sending session summary")
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, body)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, body []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(body, wpSub, wp.webpush)
	if err != nil {
		wp.log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to send notification")
		return
	}
	defer resp.Body.Close()

	// Expired subscriptions are removed.
	if resp.StatusCode == http.StatusGone {
		wp.log.Info().Str("endpoint", sub.Endpoint).Msg("subscription expired, deleting")
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			wp.log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to delete expired subscription")
		}
	}
}
