// Package hydromet implements the retrieval client for the hydromet
// platform REST API. Responses arrive as plain JSON or GeoJSON and are
// decoded into domain shapes here; everything downstream of this package is
// free of HTTP and JSON framing.
package hydromet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/hydro-chart-service/internal/domain"
	"github.com/couchcryptid/hydro-chart-service/internal/observability"
)

// Client talks to the hydromet API. All failures wrap domain.ErrRetrieval;
// the orchestrator marks the affected unit failed and moves on.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a hydromet API client. metrics may be nil in tests.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// headMetricPath maps domain metric names onto the API's endpoint fragment.
var headMetricPath = map[string]string{
	domain.MetricHeadAbsolute: "head-absoluto",
	domain.MetricHeadDelta:    "head-delta",
}

// regimePath maps a regime onto the API's endpoint suffix.
var regimePath = map[domain.Regime]string{
	domain.RegimeHistorical: "historico",
	domain.RegimeForecast:   "modelacion",
}

// Zones lists the hydrogeological zones with head series.
func (c *Client) Zones(ctx context.Context) ([]string, error) {
	var zones []string
	if err := c.getJSON(ctx, "/metamodelos/zonas", nil, &zones); err != nil {
		return nil, err
	}
	return zones, nil
}

// BalanceZones lists the zones with water balance series.
func (c *Client) BalanceZones(ctx context.Context) ([]string, error) {
	var zones []string
	if err := c.getJSON(ctx, "/metamodelos/balance/zones", nil, &zones); err != nil {
		return nil, err
	}
	return zones, nil
}

// HeadSeries fetches one zone's head rows for a metric and regime.
func (c *Client) HeadSeries(ctx context.Context, zone, metric string, regime domain.Regime) ([]domain.RawMeasurement, error) {
	fragment, ok := headMetricPath[metric]
	if !ok {
		return nil, fmt.Errorf("%w: unknown head metric %q", domain.ErrRetrieval, metric)
	}
	path := fmt.Sprintf("/metamodelos/metamodelo-mensual-%s-%s", fragment, regimePath[regime])
	var resp dataEnvelope[domain.RawMeasurement]
	if err := c.getJSON(ctx, path, url.Values{"zona": {zone}}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// BalanceSeries fetches one zone's balance rows for a regime.
func (c *Client) BalanceSeries(ctx context.Context, zone string, regime domain.Regime) ([]domain.RawBalanceRecord, error) {
	path := "/metamodelos/balance/metamodelo-mensual-balance-" + regimePath[regime]
	var resp dataEnvelope[domain.RawBalanceRecord]
	if err := c.getJSON(ctx, path, url.Values{"zona": {zone}}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ZoneGeometries fetches the aquifer zone polygons in the source CRS.
func (c *Client) ZoneGeometries(ctx context.Context) ([]domain.RawZone, error) {
	body, err := c.get(ctx, "/metamodelos/metamodelos-zonas-geojson", nil)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode zones geojson: %v", domain.ErrRetrieval, err)
	}

	zones := make([]domain.RawZone, 0, len(fc.Features))
	for _, f := range fc.Features {
		name, _ := f.Properties["zona"].(string)
		zones = append(zones, domain.RawZone{Name: name, Geometry: f.Geometry})
	}
	return zones, nil
}

// Wells lists all wells with historical level data.
func (c *Client) Wells(ctx context.Context) ([]string, error) {
	var resp struct {
		Wells []string `json:"pozos"`
	}
	if err := c.getJSON(ctx, "/plataforma-pozos/listado-pozos", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Wells, nil
}

// ForecastWells lists the wells with forecast series available.
func (c *Client) ForecastWells(ctx context.Context) ([]string, error) {
	var wells []string
	if err := c.getJSON(ctx, "/salida/pronostico-pozos/listado", nil, &wells); err != nil {
		return nil, err
	}
	return wells, nil
}

// WellData fetches one well's metadata and historical level rows.
func (c *Client) WellData(ctx context.Context, wellID string) (domain.WellInfo, []domain.RawMeasurement, error) {
	var resp struct {
		Info domain.WellInfo         `json:"info"`
		Data []domain.RawMeasurement `json:"data"`
	}
	if err := c.getJSON(ctx, "/plataforma-pozos/pozos-data/"+url.PathEscape(wellID), nil, &resp); err != nil {
		return domain.WellInfo{}, nil, err
	}
	return resp.Info, resp.Data, nil
}

// WellInfo fetches only the static metadata of a well. The platform has no
// metadata-only endpoint, so this reads the data endpoint and discards the
// rows; wrap the client in NewCachedClient to avoid repeating that cost.
func (c *Client) WellInfo(ctx context.Context, wellID string) (domain.WellInfo, error) {
	info, _, err := c.WellData(ctx, wellID)
	return info, err
}

// WellForecast fetches one well's forecast rows.
func (c *Client) WellForecast(ctx context.Context, wellID string) ([]domain.RawMeasurement, error) {
	var resp dataEnvelope[domain.RawMeasurement]
	if err := c.getJSON(ctx, "/salida/pronostico-pozos-data/"+url.PathEscape(wellID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// WellLevels fetches the current level of every well as GeoJSON points.
// The percentile band is computed locally from the full population, not
// read from the feature properties.
func (c *Client) WellLevels(ctx context.Context) ([]domain.Well, error) {
	body, err := c.get(ctx, "/plataforma-pozos/pozos-nivel-geojson", nil)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode well levels geojson: %v", domain.ErrRetrieval, err)
	}

	wells := make([]domain.Well, 0, len(fc.Features))
	for i, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("%w: well feature %d is %q, want Point",
				domain.ErrRetrieval, i, f.Geometry.GeoJSONType())
		}
		id, _ := f.Properties["pozo"].(string)
		level, ok := floatProperty(f.Properties, "nivel")
		if !ok {
			return nil, fmt.Errorf("%w: well feature %d (%s) has no numeric nivel property",
				domain.ErrRetrieval, i, id)
		}
		wells = append(wells, domain.Well{ID: id, Location: pt, Level: level})
	}
	return wells, nil
}

// dataEnvelope is the {"info": ..., "data": [...]} wrapper most series
// endpoints use.
type dataEnvelope[T any] struct {
	Data []T `json:"data"`
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	body, err := c.get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrRetrieval, path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrRetrieval, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.RetrievalDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.countError()
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrRetrieval, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.countError()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s: status %d: %s", domain.ErrRetrieval, path, resp.StatusCode, snippet)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.countError()
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrRetrieval, path, err)
	}
	return body, nil
}

func (c *Client) countError() {
	if c.metrics != nil {
		c.metrics.RetrievalErrors.Inc()
	}
}

// floatProperty reads a numeric GeoJSON property, tolerating the float64 and
// json.Number encodings.
func floatProperty(props geojson.Properties, key string) (float64, bool) {
	switch v := props[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
