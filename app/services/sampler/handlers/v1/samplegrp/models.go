package samplegrp

import "github.com/cowprotocol/etherum-log-size/foundation/logstats/sampler"

// Status is the response for the sampler status endpoint.
type Status struct {
	sampler.Progress
	FileRecords uint64 `json:"file_records"`
	Watchers    int    `json:"watchers"`
}

// EstimateQuery is the validated form of the estimate query string.
type EstimateQuery struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to" validate:"gtefield=From"`
}
