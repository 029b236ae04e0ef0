// Package chart renders reconciled series, aggregates, and classified wells
// into static PNG artifacts using gonum/plot. It decides layout per chart
// kind; which data gets charted is the pipeline's call.
package chart

import (
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/couchcryptid/hydro-chart-service/internal/domain"
)

// Colors follow the platform dashboards: gray for MODFLOW history, blue for
// metamodel forecast, and the four-band palette for classified wells.
var (
	colorHistorical = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
	colorForecast   = color.RGBA{R: 0x1E, G: 0x90, B: 0xFF, A: 0xFF}
	colorBoundary   = color.RGBA{R: 0x2C, G: 0x3E, B: 0x50, A: 0xFF}
	colorZoneFill   = color.NRGBA{R: 0x34, G: 0x98, B: 0xDB, A: 0x66}
	colorZoneEdge   = color.RGBA{R: 0x1A, G: 0x54, B: 0x90, A: 0xFF}

	classColors = map[domain.Class]color.Color{
		domain.ClassLow:     color.RGBA{R: 0xE7, G: 0x4C, B: 0x3C, A: 0xFF},
		domain.ClassMedLow:  color.RGBA{R: 0xF3, G: 0x9C, B: 0x12, A: 0xFF},
		domain.ClassMedHigh: color.RGBA{R: 0xF1, G: 0xC4, B: 0x0F, A: 0xFF},
		domain.ClassHigh:    color.RGBA{R: 0x27, G: 0xAE, B: 0x60, A: 0xFF},
	}

	comparativeColors = []color.Color{
		color.RGBA{R: 0x1E, G: 0x88, B: 0xE5, A: 0xFF},
		color.RGBA{R: 0xE7, G: 0x4C, B: 0x3C, A: 0xFF},
		color.RGBA{R: 0x27, G: 0xAE, B: 0x60, A: 0xFF},
		color.RGBA{R: 0xF3, G: 0x9C, B: 0x12, A: 0xFF},
		color.RGBA{R: 0x9B, G: 0x59, B: 0xB6, A: 0xFF},
		color.RGBA{R: 0x34, G: 0x98, B: 0xDB, A: 0xFF},
		color.RGBA{R: 0xE6, G: 0x7E, B: 0x22, A: 0xFF},
		color.RGBA{R: 0x1A, G: 0xBC, B: 0x9C, A: 0xFF},
	}
)

const (
	chartWidth  = 12 * vg.Inch
	chartHeight = 4 * vg.Inch
	mapWidth    = 9 * vg.Inch
	mapHeight   = 10 * vg.Inch
)

// Renderer writes PNG artifacts into an output directory. Re-running a pass
// overwrites prior artifacts; there is no versioning.
type Renderer struct {
	outDir string
	logger *slog.Logger
}

// NewRenderer creates the output directory if missing and returns a renderer.
func NewRenderer(outDir string, logger *slog.Logger) (*Renderer, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Renderer{outDir: outDir, logger: logger}, nil
}

// HeadChart renders one zone's reconciled head series as regime-split lines
// with a vertical marker at the history/forecast transition.
func (r *Renderer) HeadChart(zone, metric string, s domain.Series) (string, error) {
	p := newTimePlot(fmt.Sprintf("Zona %s - %s", zone, metricTitle(metric)), metricUnit(metric))
	if err := addRegimeLines(p, s, "MODFLOW", "Metamodelo"); err != nil {
		return "", err
	}
	return r.save(p, chartWidth, chartHeight, fmt.Sprintf("%s_%s.png", sanitize(zone), metric))
}

// BalanceComponentChart renders one balance component of a zone.
func (r *Renderer) BalanceComponentChart(zone, component string, s domain.Series) (string, error) {
	p := newTimePlot(fmt.Sprintf("Zona %s - Balance: %s", zone, metricTitle(component)), "Volumen (m³)")
	if err := addRegimeLines(p, s, "MODFLOW", "Metamodelo"); err != nil {
		return "", err
	}
	return r.save(p, chartWidth, chartHeight, fmt.Sprintf("%s_balance_%s.png", sanitize(zone), component))
}

// CombinedBalanceChart stacks the three balance components of a zone into
// one tiled artifact.
func (r *Renderer) CombinedBalanceChart(zone string, byMetric map[string]domain.Series) (string, error) {
	components := []string{domain.MetricStepIn, domain.MetricStepOut, domain.MetricStepRate}

	plots := make([][]*plot.Plot, len(components))
	for i, component := range components {
		p := newTimePlot(metricTitle(component), "m³")
		if err := addRegimeLines(p, byMetric[component], "MODFLOW", "Metamodelo"); err != nil {
			return "", err
		}
		plots[i] = []*plot.Plot{p}
	}

	img := vgimg.New(chartWidth, 3*chartHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: len(components), Cols: 1, PadY: vg.Points(10)}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	path := filepath.Join(r.outDir, fmt.Sprintf("%s_balance_combinado.png", sanitize(zone)))
	if err := writePNG(img, path); err != nil {
		return "", err
	}
	return path, nil
}

// ZoneComparisonChart renders the mean of each balance component per zone as
// grouped bars.
func (r *Renderer) ZoneComparisonChart(aggs []domain.ZoneAggregate) (string, error) {
	sortAggregates(aggs)

	p := plot.New()
	p.Title.Text = "Comparación de Componentes del Balance por Zona"
	p.Y.Label.Text = "Volumen Promedio (m³)"

	names := make([]string, len(aggs))
	components := []struct {
		metric string
		offset vg.Length
		color  color.Color
	}{
		{domain.MetricStepIn, -vg.Points(12), color.RGBA{R: 0x2E, G: 0x86, B: 0xAB, A: 0xFF}},
		{domain.MetricStepOut, 0, color.RGBA{R: 0xDD, G: 0x1C, B: 0x1A, A: 0xFF}},
		{domain.MetricStepRate, vg.Points(12), color.RGBA{R: 0x06, G: 0xA7, B: 0x7D, A: 0xFF}},
	}

	for _, c := range components {
		values := make(plotter.Values, len(aggs))
		for i, agg := range aggs {
			names[i] = agg.ZoneID
			if st, ok := agg.Stats[c.metric]; ok {
				values[i] = st.Mean
			}
		}
		bars, err := plotter.NewBarChart(values, vg.Points(10))
		if err != nil {
			return "", fmt.Errorf("zone comparison bars: %w", err)
		}
		bars.Color = c.color
		bars.Offset = c.offset
		bars.LineStyle.Width = 0
		p.Add(bars)
		p.Legend.Add(metricTitle(c.metric), bars)
	}
	p.NominalX(names...)
	p.Legend.Top = true

	return r.save(p, chartWidth, 5*vg.Inch, "comparacion_componentes_zonas.png")
}

// NetBalanceChart renders the mean net balance per zone, green for recharge
// and red for depletion. Zones without both components are omitted rather
// than drawn as zero.
func (r *Renderer) NetBalanceChart(aggs []domain.ZoneAggregate) (string, error) {
	sortAggregates(aggs)

	p := plot.New()
	p.Title.Text = "Balance Neto Promedio por Zona"
	p.Y.Label.Text = "Balance Neto Promedio (m³)"

	var names []string
	var nets []float64
	for _, agg := range aggs {
		if agg.NetBalance == nil {
			continue
		}
		names = append(names, agg.ZoneID)
		nets = append(nets, *agg.NetBalance)
	}

	// One single-value bar chart per zone so each bar gets its own color.
	for i, net := range nets {
		values := make(plotter.Values, len(nets))
		values[i] = net
		bars, err := plotter.NewBarChart(values, vg.Points(20))
		if err != nil {
			return "", fmt.Errorf("net balance bars: %w", err)
		}
		if net >= 0 {
			bars.Color = color.RGBA{R: 0x06, G: 0xA7, B: 0x7D, A: 0xFF}
		} else {
			bars.Color = color.RGBA{R: 0xDD, G: 0x1C, B: 0x1A, A: 0xFF}
		}
		bars.LineStyle.Width = 0
		p.Add(bars)
	}
	p.NominalX(names...)

	return r.save(p, chartWidth, 5*vg.Inch, "balance_neto_zonas.png")
}

// SystemEvolutionChart renders the system-wide net balance series.
func (r *Renderer) SystemEvolutionChart(s domain.Series) (string, error) {
	p := newTimePlot("Evolución del Balance Total del Sistema", "Balance Total (m³)")
	if err := addRegimeLines(p, s, "Histórico", "Pronóstico"); err != nil {
		return "", err
	}
	return r.save(p, chartWidth, 5*vg.Inch, "evolucion_balance_total.png")
}

// WellChart renders one well's series with mean/min/max reference lines.
// kind distinguishes the historical and forecast artifacts.
func (r *Renderer) WellChart(ws domain.WellSeries, kind string) (string, error) {
	title := fmt.Sprintf("Nivel de Agua - %s", ws.ID)
	if ws.Info.MonitoringPoint != "" {
		title += fmt.Sprintf("\nPunto Monitoreo: %s | Tipo: %s", ws.Info.MonitoringPoint, ws.Info.LevelType)
	}
	p := newTimePlot(title, "Nivel (m)")
	if err := addRegimeLines(p, ws.Series, "Nivel del agua", "Pronóstico"); err != nil {
		return "", err
	}
	if err := addStatLines(p, ws.Series); err != nil {
		return "", err
	}
	return r.save(p, chartWidth, chartHeight, fmt.Sprintf("%s_%s.png", sanitize(ws.ID), kind))
}

// ComparativeWellsChart overlays several wells' series in one chart.
func (r *Renderer) ComparativeWellsChart(kind string, series []domain.WellSeries) (string, error) {
	p := newTimePlot("Comparación de Niveles de Agua - Pozos Seleccionados", "Nivel (m)")
	for i, ws := range series {
		if ws.Series.Empty() {
			continue
		}
		line, err := plotter.NewLine(seriesXYs(ws.Series.Points))
		if err != nil {
			return "", fmt.Errorf("comparative line %s: %w", ws.ID, err)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = comparativeColors[i%len(comparativeColors)]
		p.Add(line)

		label := ws.ID
		if ws.Info.MonitoringPoint != "" {
			label = fmt.Sprintf("%s (%s)", ws.Info.MonitoringPoint, ws.ID)
		}
		p.Legend.Add(label, line)
	}
	return r.save(p, 14*vg.Inch, 6*vg.Inch, fmt.Sprintf("pozos_comparativo_%s.png", kind))
}

// WellsMap draws classified wells over the normalized zone polygons, with
// per-band counts in the legend.
func (r *Renderer) WellsMap(wells []domain.Well, zones []domain.Zone) (string, error) {
	p := plot.New()
	p.Title.Text = "Distribución Espacial de Pozos por Clasificación de Percentiles"
	p.X.Label.Text = "Longitud (°)"
	p.Y.Label.Text = "Latitud (°)"

	for _, zone := range zones {
		for _, ring := range zone.Rings {
			xys := make(plotter.XYs, len(ring))
			for i, pt := range ring {
				xys[i] = plotter.XY{X: pt[0], Y: pt[1]}
			}
			poly, err := plotter.NewPolygon(xys)
			if err != nil {
				return "", fmt.Errorf("zone polygon %s: %w", zone.Name, err)
			}
			poly.Color = colorZoneFill
			poly.LineStyle.Color = colorZoneEdge
			poly.LineStyle.Width = vg.Points(1.5)
			p.Add(poly)
		}
	}

	byClass := make(map[domain.Class]plotter.XYs)
	for _, w := range wells {
		if !w.Classified {
			continue
		}
		byClass[w.Class] = append(byClass[w.Class], plotter.XY{X: w.Location[0], Y: w.Location[1]})
	}
	for _, class := range []domain.Class{domain.ClassLow, domain.ClassMedLow, domain.ClassMedHigh, domain.ClassHigh} {
		pts := byClass[class]
		if len(pts) == 0 {
			continue
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return "", fmt.Errorf("well scatter %s: %w", class, err)
		}
		scatter.GlyphStyle.Color = classColors[class]
		scatter.GlyphStyle.Radius = vg.Points(4)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(scatter)
		p.Legend.Add(fmt.Sprintf("%s (%d pozos)", class, len(pts)), scatter)
	}
	p.Legend.Top = true

	return r.save(p, mapWidth, mapHeight, "distribucion_pozos_percentiles.png")
}

// --- helpers ---

func newTimePlot(title, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Fecha"
	p.Y.Label.Text = yLabel
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
	p.Add(plotter.NewGrid())
	return p
}

// addRegimeLines draws the historical and forecast segments of a series and
// a dashed vertical marker at the regime boundary. Empty series render as an
// empty plot, which is a valid "no data" artifact.
// splitRegimes cuts a series into its historical and forecast segments. The
// forecast segment repeats the last historical point so the two lines join
// without a gap at the boundary.
func splitRegimes(s domain.Series) (hist, fcst []domain.TimePoint) {
	if s.Boundary == domain.NoBoundary {
		return s.Points, nil
	}
	hist = s.Points[:s.Boundary]
	fcst = s.Points[s.Boundary:]
	if s.Boundary > 0 && len(fcst) > 0 {
		fcst = s.Points[s.Boundary-1:]
	}
	return hist, fcst
}

func addRegimeLines(p *plot.Plot, s domain.Series, histLabel, fcstLabel string) error {
	if s.Empty() {
		return nil
	}

	hist, fcst := splitRegimes(s)

	if len(hist) > 0 {
		line, err := plotter.NewLine(seriesXYs(hist))
		if err != nil {
			return fmt.Errorf("historical line: %w", err)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = colorHistorical
		p.Add(line)
		p.Legend.Add(histLabel, line)
	}

	if len(fcst) > 0 {
		line, err := plotter.NewLine(seriesXYs(fcst))
		if err != nil {
			return fmt.Errorf("forecast line: %w", err)
		}
		line.LineStyle.Width = vg.Points(2)
		line.LineStyle.Color = colorForecast
		p.Add(line)
		p.Legend.Add(fcstLabel, line)
	}

	if len(hist) > 0 && len(fcst) > 0 {
		if err := addBoundaryLine(p, s); err != nil {
			return err
		}
	}
	return nil
}

func addBoundaryLine(p *plot.Plot, s domain.Series) error {
	bt, ok := s.BoundaryTime()
	if !ok {
		return nil
	}
	values := s.Values()
	minV, maxV := values[0], values[0]
	for _, v := range values {
		minV = min(minV, v)
		maxV = max(maxV, v)
	}
	x := float64(bt.Unix())
	line, err := plotter.NewLine(plotter.XYs{{X: x, Y: minV}, {X: x, Y: maxV}})
	if err != nil {
		return fmt.Errorf("boundary line: %w", err)
	}
	line.LineStyle.Color = colorBoundary
	line.LineStyle.Width = vg.Points(1)
	line.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(line)
	p.Legend.Add("Fin MODFLOW", line)
	return nil
}

// addStatLines draws dashed mean and dotted min/max reference lines.
func addStatLines(p *plot.Plot, s domain.Series) error {
	if s.Empty() {
		return nil
	}
	values := s.Values()
	var sum float64
	minV, maxV := values[0], values[0]
	for _, v := range values {
		sum += v
		minV = min(minV, v)
		maxV = max(maxV, v)
	}
	mean := sum / float64(len(values))

	x0 := float64(s.Points[0].Timestamp.Unix())
	x1 := float64(s.Points[len(s.Points)-1].Timestamp.Unix())

	refs := []struct {
		label  string
		y      float64
		color  color.Color
		dashes []vg.Length
	}{
		{fmt.Sprintf("Promedio: %.2f", mean), mean, color.RGBA{R: 0xE7, G: 0x4C, B: 0x3C, A: 0xFF}, []vg.Length{vg.Points(6), vg.Points(3)}},
		{fmt.Sprintf("Máximo: %.2f", maxV), maxV, color.RGBA{R: 0x27, G: 0xAE, B: 0x60, A: 0xFF}, []vg.Length{vg.Points(2), vg.Points(3)}},
		{fmt.Sprintf("Mínimo: %.2f", minV), minV, color.RGBA{R: 0xF3, G: 0x9C, B: 0x12, A: 0xFF}, []vg.Length{vg.Points(2), vg.Points(3)}},
	}
	for _, ref := range refs {
		line, err := plotter.NewLine(plotter.XYs{{X: x0, Y: ref.y}, {X: x1, Y: ref.y}})
		if err != nil {
			return fmt.Errorf("reference line: %w", err)
		}
		line.LineStyle.Color = ref.color
		line.LineStyle.Width = vg.Points(1)
		line.LineStyle.Dashes = ref.dashes
		p.Add(line)
		p.Legend.Add(ref.label, line)
	}
	return nil
}

func seriesXYs(points []domain.TimePoint) plotter.XYs {
	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i] = plotter.XY{X: float64(pt.Timestamp.Unix()), Y: pt.Value}
	}
	return xys
}

func (r *Renderer) save(p *plot.Plot, w, h vg.Length, name string) (string, error) {
	path := filepath.Join(r.outDir, name)
	if err := p.Save(w, h, path); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	r.logger.Debug("chart written", "path", path)
	return path, nil
}

func writePNG(img *vgimg.Canvas, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func metricTitle(metric string) string {
	switch metric {
	case domain.MetricHeadAbsolute:
		return "Head Absoluto"
	case domain.MetricHeadDelta:
		return "Head Delta"
	case domain.MetricStepIn:
		return "Step In (Entrada)"
	case domain.MetricStepOut:
		return "Step Out (Salida)"
	case domain.MetricStepRate:
		return "Step Rate (Tasa)"
	default:
		return metric
	}
}

func metricUnit(metric string) string {
	switch metric {
	case domain.MetricHeadAbsolute:
		return "Head Absoluto (m)"
	case domain.MetricHeadDelta:
		return "Head Delta (m)"
	default:
		return "m"
	}
}

// sanitize makes an upstream identifier safe as a file name component.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		default:
			return r
		}
	}, id)
}

// sortAggregates orders aggregates by zone for stable artifact content.
func sortAggregates(aggs []domain.ZoneAggregate) {
	sort.Slice(aggs, func(i, j int) bool { return aggs[i].ZoneID < aggs[j].ZoneID })
}
