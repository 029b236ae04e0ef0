package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/hydro-chart-service/internal/domain"
	"github.com/couchcryptid/hydro-chart-service/internal/observability"
)

// Source retrieves zone and well data from the hydromet platform.
type Source interface {
	Zones(ctx context.Context) ([]string, error)
	BalanceZones(ctx context.Context) ([]string, error)
	HeadSeries(ctx context.Context, zone, metric string, regime domain.Regime) ([]domain.RawMeasurement, error)
	BalanceSeries(ctx context.Context, zone string, regime domain.Regime) ([]domain.RawBalanceRecord, error)
	ZoneGeometries(ctx context.Context) ([]domain.RawZone, error)
	Wells(ctx context.Context) ([]string, error)
	ForecastWells(ctx context.Context) ([]string, error)
	WellData(ctx context.Context, wellID string) (domain.WellInfo, []domain.RawMeasurement, error)
	WellInfo(ctx context.Context, wellID string) (domain.WellInfo, error)
	WellForecast(ctx context.Context, wellID string) ([]domain.RawMeasurement, error)
	WellLevels(ctx context.Context) ([]domain.Well, error)
}

// Renderer turns reconciled series, aggregates, and classified wells into
// artifacts, returning each artifact's path.
type Renderer interface {
	HeadChart(zone, metric string, s domain.Series) (string, error)
	BalanceComponentChart(zone, component string, s domain.Series) (string, error)
	CombinedBalanceChart(zone string, byMetric map[string]domain.Series) (string, error)
	ZoneComparisonChart(aggs []domain.ZoneAggregate) (string, error)
	NetBalanceChart(aggs []domain.ZoneAggregate) (string, error)
	SystemEvolutionChart(s domain.Series) (string, error)
	WellChart(ws domain.WellSeries, kind string) (string, error)
	ComparativeWellsChart(kind string, series []domain.WellSeries) (string, error)
	WellsMap(wells []domain.Well, zones []domain.Zone) (string, error)
}

// ManifestPublisher emits the manifest of a completed render pass.
type ManifestPublisher interface {
	PublishManifest(ctx context.Context, m domain.RunManifest) error
}

// Pipeline orchestrates render passes: retrieve, reconcile, aggregate,
// classify, and render, one unit at a time. Units fail independently except
// the classification barrier, which fails the whole pass.
type Pipeline struct {
	source    Source
	renderer  Renderer
	publisher ManifestPublisher // nil when the summary feed is disabled
	logger    *slog.Logger
	metrics   *observability.Metrics
	transform domain.PointTransform
	wellIDs   []string // explicit selection; empty means all published wells
	interval  time.Duration
	runOnce   bool
	ready     atomic.Bool
}

// New creates a Pipeline. publisher may be nil.
func New(
	source Source,
	renderer Renderer,
	publisher ManifestPublisher,
	logger *slog.Logger,
	metrics *observability.Metrics,
	transform domain.PointTransform,
	wellIDs []string,
	interval time.Duration,
	runOnce bool,
) *Pipeline {
	return &Pipeline{
		source:    source,
		renderer:  renderer,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		transform: transform,
		wellIDs:   wellIDs,
		interval:  interval,
		runOnce:   runOnce,
	}
}

// CheckReadiness returns nil once at least one render pass has completed
// without a fatal error.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no render pass has completed yet")
	}
	return nil
}

// Run executes render passes until the context is cancelled. In run-once
// mode it returns after the first pass, propagating its error.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.interval, "run_once", p.runOnce)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for {
		manifest, err := p.RunPass(ctx)
		succeeded, failed := manifest.Counts()
		if err != nil {
			p.metrics.PassesTotal.WithLabelValues("error").Inc()
			p.logger.Error("render pass failed",
				"run_id", manifest.RunID, "succeeded", succeeded, "failed", failed, "error", err)
			if p.runOnce {
				return err
			}
		} else {
			p.metrics.PassesTotal.WithLabelValues("ok").Inc()
			p.ready.Store(true)
			p.logger.Info("render pass completed",
				"run_id", manifest.RunID, "succeeded", succeeded, "failed", failed)
			if p.runOnce {
				return nil
			}
		}

		if !sleepWithContext(ctx, p.interval) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// RunPass executes one full render pass and returns its manifest. A non-nil
// error means the pass is unusable as a whole; the manifest still records
// the units that succeeded before the fatal point.
func (p *Pipeline) RunPass(ctx context.Context) (domain.RunManifest, error) {
	start := time.Now()
	m := domain.RunManifest{RunID: uuid.NewString(), StartedAt: domain.Now()}
	finish := func() {
		m.CompletedAt = domain.Now()
		p.metrics.PassDuration.Observe(time.Since(start).Seconds())
	}

	p.logger.Info("render pass starting", "run_id", m.RunID)

	p.renderZoneHeads(ctx, &m)
	aggregates, netSeries := p.renderZoneBalances(ctx, &m)
	p.renderZoneSummaries(ctx, &m, aggregates, netSeries)
	p.renderWells(ctx, &m)

	err := p.classifyAndMap(ctx, &m)
	finish()
	p.publish(ctx, m)
	return m, err
}

// renderZoneHeads produces one head chart per zone and metric.
func (p *Pipeline) renderZoneHeads(ctx context.Context, m *domain.RunManifest) {
	zones, err := p.source.Zones(ctx)
	if err != nil {
		p.fail(m, "zone_head", "zones/listing", err)
		return
	}

	for _, zone := range zones {
		for _, metric := range []string{domain.MetricHeadAbsolute, domain.MetricHeadDelta} {
			unit := fmt.Sprintf("zone/%s/%s", zone, metric)
			path, err := p.renderHeadUnit(ctx, zone, metric)
			if err != nil {
				p.fail(m, "zone_head", unit, err)
				continue
			}
			p.succeed(m, "zone_head", unit, path)
		}
	}
}

func (p *Pipeline) renderHeadUnit(ctx context.Context, zone, metric string) (string, error) {
	series, err := p.fetchHeadSeries(ctx, zone, metric)
	if err != nil {
		return "", err
	}
	return p.renderer.HeadChart(zone, metric, series)
}

func (p *Pipeline) fetchHeadSeries(ctx context.Context, zone, metric string) (domain.Series, error) {
	histRaw, err := p.source.HeadSeries(ctx, zone, metric, domain.RegimeHistorical)
	if err != nil {
		return domain.Series{}, err
	}
	fcstRaw, err := p.source.HeadSeries(ctx, zone, metric, domain.RegimeForecast)
	if err != nil {
		return domain.Series{}, err
	}
	hist, err := domain.ParsePoints(histRaw, domain.RegimeHistorical)
	if err != nil {
		return domain.Series{}, err
	}
	fcst, err := domain.ParsePoints(fcstRaw, domain.RegimeForecast)
	if err != nil {
		return domain.Series{}, err
	}
	return domain.Reconcile(hist, fcst)
}

// renderZoneBalances produces per-component and combined balance charts per
// zone, returning the per-zone aggregates and the system-wide net series
// input for the summary charts.
func (p *Pipeline) renderZoneBalances(ctx context.Context, m *domain.RunManifest) ([]domain.ZoneAggregate, []domain.TimePoint) {
	zones, err := p.source.BalanceZones(ctx)
	if err != nil {
		p.fail(m, "zone_balance", "balance/listing", err)
		return nil, nil
	}

	var aggregates []domain.ZoneAggregate
	var netPoints []domain.TimePoint
	for _, zone := range zones {
		unit := fmt.Sprintf("zone/%s/balance", zone)
		byMetric, artifacts, err := p.renderBalanceUnit(ctx, zone)
		if err != nil {
			p.fail(m, "zone_balance", unit, err)
			continue
		}
		p.succeed(m, "zone_balance", unit, artifacts...)
		aggregates = append(aggregates, domain.Aggregate(zone, byMetric))
		netPoints = append(netPoints, netBalancePoints(byMetric)...)
	}
	return aggregates, netPoints
}

func (p *Pipeline) renderBalanceUnit(ctx context.Context, zone string) (map[string]domain.Series, []string, error) {
	byMetric, err := p.fetchBalanceSeries(ctx, zone)
	if err != nil {
		return nil, nil, err
	}

	var artifacts []string
	for _, component := range []string{domain.MetricStepIn, domain.MetricStepOut, domain.MetricStepRate} {
		path, err := p.renderer.BalanceComponentChart(zone, component, byMetric[component])
		if err != nil {
			return nil, nil, err
		}
		artifacts = append(artifacts, path)
	}
	path, err := p.renderer.CombinedBalanceChart(zone, byMetric)
	if err != nil {
		return nil, nil, err
	}
	return byMetric, append(artifacts, path), nil
}

func (p *Pipeline) fetchBalanceSeries(ctx context.Context, zone string) (map[string]domain.Series, error) {
	histRaw, err := p.source.BalanceSeries(ctx, zone, domain.RegimeHistorical)
	if err != nil {
		return nil, err
	}
	fcstRaw, err := p.source.BalanceSeries(ctx, zone, domain.RegimeForecast)
	if err != nil {
		return nil, err
	}
	hist, err := domain.ParseBalancePoints(histRaw, domain.RegimeHistorical)
	if err != nil {
		return nil, err
	}
	fcst, err := domain.ParseBalancePoints(fcstRaw, domain.RegimeForecast)
	if err != nil {
		return nil, err
	}

	byMetric := make(map[string]domain.Series, 3)
	for _, component := range []string{domain.MetricStepIn, domain.MetricStepOut, domain.MetricStepRate} {
		series, err := domain.Reconcile(hist[component], fcst[component])
		if err != nil {
			return nil, err
		}
		byMetric[component] = series
	}
	return byMetric, nil
}

// renderZoneSummaries produces the cross-zone comparison, net balance, and
// system evolution charts from whatever balance units succeeded.
func (p *Pipeline) renderZoneSummaries(ctx context.Context, m *domain.RunManifest, aggregates []domain.ZoneAggregate, netPoints []domain.TimePoint) {
	if len(aggregates) == 0 {
		return
	}

	if path, err := p.renderer.ZoneComparisonChart(aggregates); err != nil {
		p.fail(m, "zones_summary", "zones/comparison", err)
	} else {
		p.succeed(m, "zones_summary", "zones/comparison", path)
	}

	if path, err := p.renderer.NetBalanceChart(aggregates); err != nil {
		p.fail(m, "zones_summary", "zones/net_balance", err)
	} else {
		p.succeed(m, "zones_summary", "zones/net_balance", path)
	}

	system, err := systemSeries(netPoints)
	if err != nil {
		p.fail(m, "zones_summary", "zones/system_evolution", err)
		return
	}
	if path, err := p.renderer.SystemEvolutionChart(system); err != nil {
		p.fail(m, "zones_summary", "zones/system_evolution", err)
	} else {
		p.succeed(m, "zones_summary", "zones/system_evolution", path)
	}
}

// renderWells produces per-well historical and forecast charts plus the two
// comparative overlays.
func (p *Pipeline) renderWells(ctx context.Context, m *domain.RunManifest) {
	wellIDs := p.wellIDs
	if len(wellIDs) == 0 {
		ids, err := p.source.Wells(ctx)
		if err != nil {
			p.fail(m, "well", "wells/listing", err)
			return
		}
		wellIDs = ids
	}

	forecastSet, err := p.forecastWellSet(ctx)
	if err != nil {
		p.fail(m, "well", "wells/forecast_listing", err)
		// Historical charts can still proceed.
	}

	var histSeries, fcstSeries []domain.WellSeries
	for _, id := range wellIDs {
		ws, err := p.renderWellHistory(ctx, m, id)
		if err != nil {
			continue
		}
		histSeries = append(histSeries, ws)

		if forecastSet[id] {
			if ws, err := p.renderWellForecast(ctx, m, id, ws.Series.Points); err == nil {
				fcstSeries = append(fcstSeries, ws)
			}
		}
	}

	p.renderComparative(m, "historico", histSeries)
	p.renderComparative(m, "pronostico", fcstSeries)
}

func (p *Pipeline) forecastWellSet(ctx context.Context) (map[string]bool, error) {
	ids, err := p.source.ForecastWells(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func (p *Pipeline) renderWellHistory(ctx context.Context, m *domain.RunManifest, id string) (domain.WellSeries, error) {
	unit := fmt.Sprintf("well/%s/historical", id)

	info, rows, err := p.source.WellData(ctx, id)
	if err != nil {
		p.fail(m, "well", unit, err)
		return domain.WellSeries{}, err
	}
	hist, err := domain.ParsePoints(rows, domain.RegimeHistorical)
	if err != nil {
		p.fail(m, "well", unit, err)
		return domain.WellSeries{}, err
	}
	series, err := domain.Reconcile(hist, nil)
	if err != nil {
		p.fail(m, "well", unit, err)
		return domain.WellSeries{}, err
	}

	ws := domain.WellSeries{ID: id, Info: info, Series: series}
	path, err := p.renderer.WellChart(ws, "historico")
	if err != nil {
		p.fail(m, "well", unit, err)
		return domain.WellSeries{}, err
	}
	p.succeed(m, "well", unit, path)
	return ws, nil
}

// renderWellForecast reconciles the well's forecast onto the already-fetched
// history. The metadata lookup is a cache hit when the source is wrapped in
// the caching client, since the historical unit just fetched the same well.
func (p *Pipeline) renderWellForecast(ctx context.Context, m *domain.RunManifest, id string, hist []domain.TimePoint) (domain.WellSeries, error) {
	unit := fmt.Sprintf("well/%s/forecast", id)

	info, err := p.source.WellInfo(ctx, id)
	if err != nil {
		p.fail(m, "well", unit, err)
		return domain.WellSeries{}, err
	}
	rows, err := p.source.WellForecast(ctx, id)
	if err != nil {
		p.fail(m, "well", unit, err)
		return domain.WellSeries{}, err
	}
	fcst, err := domain.ParsePoints(rows, domain.RegimeForecast)
	if err != nil {
		p.fail(m, "well", unit, err)
		return domain.WellSeries{}, err
	}
	series, err := domain.Reconcile(hist, fcst)
	if err != nil {
		p.fail(m, "well", unit, err)
		return domain.WellSeries{}, err
	}

	ws := domain.WellSeries{ID: id, Info: info, Series: series}
	path, err := p.renderer.WellChart(ws, "pronostico")
	if err != nil {
		p.fail(m, "well", unit, err)
		return domain.WellSeries{}, err
	}
	p.succeed(m, "well", unit, path)
	return ws, nil
}

func (p *Pipeline) renderComparative(m *domain.RunManifest, kind string, series []domain.WellSeries) {
	if len(series) < 2 {
		return
	}
	unit := "wells/comparativo_" + kind
	path, err := p.renderer.ComparativeWellsChart(kind, series)
	if err != nil {
		p.fail(m, "wells_summary", unit, err)
		return
	}
	p.succeed(m, "wells_summary", unit, path)
}

// classifyAndMap runs the classification barrier and renders the wells
// distribution map. Classification failure is fatal to the pass, since a map
// of unclassified wells would misrepresent the population. A failed map
// render only fails that unit.
func (p *Pipeline) classifyAndMap(ctx context.Context, m *domain.RunManifest) error {
	wells, err := p.source.WellLevels(ctx)
	if err != nil {
		p.fail(m, "classification", "wells/classification", err)
		return fmt.Errorf("well levels: %w", err)
	}

	population := make([]domain.WellLevel, len(wells))
	for i, w := range wells {
		population[i] = domain.WellLevel{ID: w.ID, Value: w.Level}
	}
	classes, err := domain.Classify(population)
	if err != nil {
		p.fail(m, "classification", "wells/classification", err)
		return fmt.Errorf("classify wells: %w", err)
	}
	for i := range wells {
		wells[i].Class = classes[wells[i].ID]
		wells[i].Classified = true
	}
	p.succeed(m, "classification", "wells/classification")
	p.observeClassCounts(wells)

	zones := p.normalizedZones(ctx, m)

	// The map is one unit like any other: its failure is recorded and
	// isolated rather than failing the pass.
	path, err := p.renderer.WellsMap(wells, zones)
	if err != nil {
		p.fail(m, "map", "wells/map", err)
		return nil
	}
	p.succeed(m, "map", "wells/map", path)
	return nil
}

// normalizedZones fetches and reprojects zone polygons for the map backdrop.
// Geometry failures degrade the map rather than fail it: a bad polygon is
// skipped, and a failed listing yields a map with no backdrop at all.
func (p *Pipeline) normalizedZones(ctx context.Context, m *domain.RunManifest) []domain.Zone {
	raws, err := p.source.ZoneGeometries(ctx)
	if err != nil {
		p.fail(m, "map", "zones/geometries", err)
		return nil
	}

	zones := make([]domain.Zone, 0, len(raws))
	for _, raw := range raws {
		zone, err := domain.NormalizeZone(raw, p.transform)
		if err != nil {
			p.metrics.GeometriesSkipped.Inc()
			p.logger.Warn("zone geometry skipped", "zone", raw.Name, "error", err)
			continue
		}
		zones = append(zones, zone)
	}
	p.succeed(m, "map", "zones/geometries")
	return zones
}

func (p *Pipeline) observeClassCounts(wells []domain.Well) {
	counts := make(map[domain.Class]int)
	for _, w := range wells {
		counts[w.Class]++
	}
	for _, class := range []domain.Class{domain.ClassLow, domain.ClassMedLow, domain.ClassMedHigh, domain.ClassHigh} {
		p.metrics.WellClassCount.WithLabelValues(class.String()).Set(float64(counts[class]))
	}
}

func (p *Pipeline) publish(ctx context.Context, m domain.RunManifest) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishManifest(ctx, m); err != nil {
		p.logger.Error("manifest publish failed", "run_id", m.RunID, "error", err)
	}
}

func (p *Pipeline) succeed(m *domain.RunManifest, kind, unit string, artifacts ...string) {
	m.Succeed(unit, artifacts...)
	p.metrics.UnitsProcessed.WithLabelValues(kind, "ok").Inc()
	p.metrics.ChartsRendered.Add(float64(len(artifacts)))
}

func (p *Pipeline) fail(m *domain.RunManifest, kind, unit string, err error) {
	m.Fail(unit, err)
	p.metrics.UnitsProcessed.WithLabelValues(kind, "error").Inc()
	p.logger.Error("unit failed", "unit", unit, "kind", domain.ErrorKind(err), "error", err)
}

// netBalancePoints computes per-timestamp inflow minus outflow for one zone.
// Timestamps present in only one component are dropped.
func netBalancePoints(byMetric map[string]domain.Series) []domain.TimePoint {
	in, out := byMetric[domain.MetricStepIn], byMetric[domain.MetricStepOut]
	outByTime := make(map[int64]domain.TimePoint, len(out.Points))
	for _, pt := range out.Points {
		outByTime[pt.Timestamp.Unix()] = pt
	}

	points := make([]domain.TimePoint, 0, len(in.Points))
	for _, pt := range in.Points {
		o, ok := outByTime[pt.Timestamp.Unix()]
		if !ok {
			continue
		}
		points = append(points, domain.TimePoint{
			Timestamp: pt.Timestamp,
			Value:     pt.Value - o.Value,
			Regime:    pt.Regime,
		})
	}
	return points
}

// systemSeries sums the zones' net balance points per timestamp into one
// reconciled system-wide series.
func systemSeries(netPoints []domain.TimePoint) (domain.Series, error) {
	type bucket struct {
		point domain.TimePoint
	}
	buckets := make(map[int64]*bucket)
	for _, pt := range netPoints {
		b, ok := buckets[pt.Timestamp.Unix()]
		if !ok {
			buckets[pt.Timestamp.Unix()] = &bucket{point: pt}
			continue
		}
		b.point.Value += pt.Value
		// A timestamp carried by any forecast point renders as forecast.
		if pt.Regime == domain.RegimeForecast {
			b.point.Regime = domain.RegimeForecast
		}
	}

	var hist, fcst []domain.TimePoint
	for _, b := range buckets {
		if b.point.Regime == domain.RegimeForecast {
			fcst = append(fcst, b.point)
		} else {
			hist = append(hist, b.point)
		}
	}
	return domain.Reconcile(hist, fcst)
}

// sleepWithContext waits for d unless the context is cancelled first.
// Returns false on cancellation.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
