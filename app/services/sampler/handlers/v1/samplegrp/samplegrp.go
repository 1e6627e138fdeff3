// Package samplegrp maintains the group of handlers for observing a running
// sampler and estimating from its sample file.
package samplegrp

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/cowprotocol/etherum-log-size/business/sys/validate"
	"github.com/cowprotocol/etherum-log-size/business/web/errs"
	"github.com/cowprotocol/etherum-log-size/foundation/events"
	"github.com/cowprotocol/etherum-log-size/foundation/logstats/estimate"
	"github.com/cowprotocol/etherum-log-size/foundation/logstats/sampler"
	"github.com/cowprotocol/etherum-log-size/foundation/logstats/storage"
	"github.com/cowprotocol/etherum-log-size/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Statuser reports the progress of the sampling loop.
type Statuser interface {
	Status() sampler.Progress
}

// Counter reports the number of records in the sample file.
type Counter interface {
	Count() uint64
}

// Handlers manages the set of sampler endpoints.
type Handlers struct {
	Log     *zap.SugaredLogger
	Sampler Statuser
	Storage Counter
	Path    string
	WS      websocket.Upgrader
	Evts    *events.Events
}

// Status returns the progress of the running sampler along with the number
// of clients watching its events.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	status := Status{
		Progress:    h.Sampler.Status(),
		FileRecords: h.Storage.Count(),
		Watchers:    h.Evts.Subscribers(),
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// Estimate extrapolates log totals from the records flushed to the sample
// file so far. The file is only read.
func (h Handlers) Estimate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	from, err := web.QueryUint64(r, "from", 0)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	to, err := web.QueryUint64(r, "to", math.MaxUint64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	query := EstimateQuery{From: from, To: to}
	if err := validate.Check(query); err != nil {
		return err
	}

	recs, err := storage.ReadAll(h.Path)
	if err != nil {
		return errs.Classify(err)
	}

	est, err := estimate.Run(recs, estimate.Range{From: query.From, To: query.To})
	if err != nil {
		return errs.Classify(err)
	}

	return web.Respond(ctx, w, est.Report(), http.StatusOK)
}

// Events handles a web socket to stream sampler progress to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}
