package notification

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"device-maintenance-backend/internal/model"
)

// Event is what the engine hands to the notification layer after persisting a
// state change. Delivery and duplicate suppression happen here; the engine
// fires and forgets.
type Event struct {
	Kind      string `json:"kind"`
	DeviceID  *int64 `json:"device_id,omitempty"`
	Recipient string `json:"recipient"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Severity  string `json:"severity"`
	Link      string `json:"link,omitempty"`
}

// Sink accepts engine events for asynchronous delivery.
type Sink interface {
	Notify(event Event)
}

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of Sender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers that persist notification events and
// fan them out to push subscribers. Events for the same kind and device within
// the cooldown window are suppressed against the persisted log, which is what
// keeps repeated SLA-breach evaluations from double-firing.
type WorkerPool struct {
	size     int
	jobs     chan Event
	db       *gorm.DB
	webpush  *webpush.Options
	sender   Sender
	cooldown time.Duration
}

// NewWorkerPool creates a new worker pool. webpushOptions may be nil, which
// disables the push delivery channel while keeping the system inbox.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options, cooldown time.Duration) *WorkerPool {
	return &WorkerPool{
		size:     size,
		jobs:     make(chan Event, 256),
		db:       db,
		webpush:  webpushOptions,
		sender:   &WebPushSender{},
		cooldown: cooldown,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case ev := <-wp.jobs:
			wp.process(ctx, ev)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Notify enqueues an event without blocking. A slow delivery channel must not
// stall the scheduling tick, so when the queue is full the event is dropped
// and logged; the engine re-raises still-standing conditions next tick.
func (wp *WorkerPool) Notify(ev Event) {
	select {
	case wp.jobs <- ev:
	default:
		log.Printf("Notification queue full, dropping %s event for recipient %s", ev.Kind, ev.Recipient)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Event {
	return wp.jobs
}

func (wp *WorkerPool) process(ctx context.Context, ev Event) {
	if wp.suppressed(ctx, ev) {
		log.Printf("Suppressing duplicate %s notification within cooldown window", ev.Kind)
		return
	}

	rec := model.Notification{
		Kind:      ev.Kind,
		DeviceID:  ev.DeviceID,
		Recipient: ev.Recipient,
		Title:     ev.Title,
		Message:   ev.Message,
		Severity:  ev.Severity,
		Link:      ev.Link,
	}
	if rec.Severity == "" {
		rec.Severity = "info"
	}
	if err := wp.db.WithContext(ctx).Create(&rec).Error; err != nil {
		log.Printf("Error persisting %s notification: %v", ev.Kind, err)
		return
	}

	if wp.webpush != nil && ev.DeviceID != nil {
		wp.pushToSubscribers(ctx, *ev.DeviceID, ev)
	}
}

// suppressed consults the notification log for a recent duplicate.
func (wp *WorkerPool) suppressed(ctx context.Context, ev Event) bool {
	if wp.cooldown <= 0 {
		return false
	}
	// Title carries the request/part identity, so the window applies per
	// breached request rather than per event kind.
	q := wp.db.WithContext(ctx).Model(&model.Notification{}).
		Where("kind = ? AND recipient = ? AND title = ? AND created_at > ?",
			ev.Kind, ev.Recipient, ev.Title, time.Now().Add(-wp.cooldown))
	if ev.DeviceID != nil {
		q = q.Where("device_id = ?", *ev.DeviceID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		log.Printf("Error checking notification log: %v", err)
		return false
	}
	return count > 0
}

// pushToSubscribers sends the event to every subscription mapped to the device.
func (wp *WorkerPool) pushToSubscribers(ctx context.Context, deviceID int64, ev Event) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_device_mapping sdm ON sdm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sdm.device_id = ?", deviceID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for device %d: %v", deviceID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Error encoding push payload: %v", err)
		return
	}

	log.Printf("Sending %d push notifications for device %d", len(subscriptions), deviceID)
	for _, sub := range subscriptions {
		wp.sendPush(ctx, sub, payload)
	}
}

// sendPush sends a single web push notification.
func (wp *WorkerPool) sendPush(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
