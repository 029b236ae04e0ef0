package domain

import "github.com/paulmach/orb"

// WellInfo is static metadata from the platform wells endpoint.
type WellInfo struct {
	MonitoringPoint string  `json:"punto_monitoreo"`
	LevelType       string  `json:"tipo_nivel"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
}

// Well is a monitoring point on the distribution map: a location, its
// current level, and its percentile band once the population has been
// classified. Classified distinguishes an assigned ClassLow from the zero
// value of Class.
type Well struct {
	ID         string
	Location   orb.Point // lon, lat
	Level      float64
	Class      Class
	Classified bool
}

// WellSeries pairs a well with its reconciled level series for charting.
type WellSeries struct {
	ID     string
	Info   WellInfo
	Series Series
}
