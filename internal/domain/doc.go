// Package domain models hydromet groundwater series, well classifications,
// and aquifer zone geometry.
//
// # Data Source
//
// All data originates from the hydromet platform REST API. Three families of
// endpoints matter here:
//
//	/metamodelos/...        zone-level head and balance series
//	/plataforma-pozos/...   well metadata, historical levels, level GeoJSON
//	/salida/pronostico-...  well forecast series
//
// Zone series come in two regimes served by separate endpoints: "historico"
// rows are MODFLOW simulation output (observed past), "modelacion" rows are
// metamodel forecast output. A reconciled series stitches both regimes into
// one timeline with an explicit boundary at the first forecast point; the
// dashboards draw this as the "Fin MODFLOW" transition line.
//
// # Series Conventions
//
// Data rows are {date, value} pairs. Dates are ISO 8601, either a bare day
// ("2024-06-01") or a full RFC 3339 timestamp; both are accepted. Head values
// are meters (absolute, m.s.n.m.) or meters of delta against the reference
// level. Balance rows carry three values per date: value_step_in,
// value_step_out, and value_step_rate, all in cubic meters per time step.
//
// Upstream ordering is not trusted: both regimes are re-sorted before the
// merge, and on a timestamp collision the forecast row supersedes the
// historical one.
//
// # Percentile Classification
//
// Wells are classified against the full population of current levels using
// the 33rd, 66th, and 90th percentile cut points. The four bands keep the
// platform's labels: "<P33", "P33-P66", "P66-P90", ">P90". A value that
// lands exactly on a cut point belongs to the lower band.
//
// # Zone Geometry
//
// Zone polygons arrive as GeoJSON in a projected CRS (UTM zone 19S,
// EPSG:32719 for the Chilean deployment) and are normalized to geographic
// longitude/latitude. Only outer rings are kept; interior rings (holes) are
// deliberately dropped because zones are rendered as backdrop fills only.
// A ring that cannot be fully transformed is rejected whole, since a partially
// transformed polygon is worse than a missing one.
package domain
