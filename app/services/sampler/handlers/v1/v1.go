// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/cowprotocol/etherum-log-size/app/services/sampler/handlers/v1/samplegrp"
	"github.com/cowprotocol/etherum-log-size/foundation/events"
	"github.com/cowprotocol/etherum-log-size/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log     *zap.SugaredLogger
	Sampler samplegrp.Statuser
	Storage samplegrp.Counter
	Path    string
	Evts    *events.Events
}

// Routes binds all the version 1 routes.
func Routes(app *web.App, cfg Config) {
	sgh := samplegrp.Handlers{
		Log:     cfg.Log,
		Sampler: cfg.Sampler,
		Storage: cfg.Storage,
		Path:    cfg.Path,
		Evts:    cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/status", sgh.Status)
	app.Handle(http.MethodGet, version, "/estimate", sgh.Estimate)
	app.Handle(http.MethodGet, version, "/events", sgh.Events)
}
