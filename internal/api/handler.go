package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"device-maintenance-backend/internal/engine"
	"device-maintenance-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	scheduler  *engine.Scheduler
	propagator *engine.Propagator
	webpush    *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, scheduler *engine.Scheduler, propagator *engine.Propagator, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:      s,
		scheduler:  scheduler,
		propagator: propagator,
		webpush:    webpushOptions,
	}
}
