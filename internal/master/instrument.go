package master

import "time"

// Instrument is a normalized (name, code, market) triple.
type Instrument struct {
	Name   string `json:"name"`
	Code   string `json:"code"`
	Market string `json:"market"`
}

// Record is an instrument as persisted in a tool's model.
type Record struct {
	Instrument
	MasterID string `json:"masterId"`
}

// Freshness records the last successful refresh of a tool.
type Freshness struct {
	Category    string    `json:"category"`
	LastUpdated time.Time `json:"lastUpdated"`
	RecordCount int64     `json:"recordCount"`
}
