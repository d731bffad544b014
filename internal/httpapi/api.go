// Package httpapi exposes the node core's five admin operations
// (checkin, lookup, stage_done, modify_metadata, search) over HTTP for
// the CLI and any other operator tooling.
package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"rackd/internal/node"
)

// API wires the node core's collaborators for HTTP handlers.
type API struct {
	Store     node.Store
	Queue     node.BackgroundQueue
	Resolver  *node.Resolver
	Processor *node.Processor
	Binder    *node.Binder
	Logger    *node.Logger
	Trace     *log.Logger
}

// New constructs an API. All fields are required except Trace.
func New(store node.Store, queue node.BackgroundQueue, resolver *node.Resolver, processor *node.Processor, binder *node.Binder, logger *node.Logger, trace *log.Logger) (*API, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if queue == nil {
		return nil, errors.New("queue is required")
	}
	if resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if processor == nil {
		return nil, errors.New("processor is required")
	}
	if binder == nil {
		return nil, errors.New("binder is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &API{Store: store, Queue: queue, Resolver: resolver, Processor: processor, Binder: binder, Logger: logger, Trace: trace}, nil
}

// Routes constructs the chi router for the admin surface.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/v1/nodes", func(r chi.Router) {
		r.Post("/lookup", a.handleLookup)
		r.Post("/checkin", a.handleCheckin)
		r.Post("/stage_done", a.handleStageDone)
		r.Post("/modify_metadata", a.handleModifyMetadata)
		r.Get("/search", a.handleSearch)
	})

	return r
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 10*time.Second)
}
