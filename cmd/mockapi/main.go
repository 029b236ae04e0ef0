// Command mockapi serves a local stand-in for the hydromet platform with
// deterministic synthetic data, for developing and demoing the renderer
// without network access to the real API.
//
// Usage:
//
//	go run ./cmd/mockapi -addr :9090 -zones 4 -wells 12 -seed 7
//	HYDROMET_BASE_URL=http://localhost:9090/api/v1 go run ./cmd/render
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	historyStart  = "2015-01-01"
	forecastStart = "2024-01-01"
	forecastEnd   = "2030-01-01"
)

type mockAPI struct {
	zones []string
	wells []string
	seed  int64
}

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	zones := flag.Int("zones", 4, "number of zones")
	wells := flag.Int("wells", 12, "number of wells")
	seed := flag.Int64("seed", 1, "random seed for synthetic data")
	flag.Parse()

	api := newMockAPI(*zones, *wells, *seed)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/metamodelos/zonas", api.handleZones)
	mux.HandleFunc("GET /api/v1/metamodelos/balance/zones", api.handleZones)
	mux.HandleFunc("GET /api/v1/metamodelos/metamodelo-mensual-head-absoluto-historico", api.handleHead(120, false))
	mux.HandleFunc("GET /api/v1/metamodelos/metamodelo-mensual-head-absoluto-modelacion", api.handleHead(120, true))
	mux.HandleFunc("GET /api/v1/metamodelos/metamodelo-mensual-head-delta-historico", api.handleHead(0.5, false))
	mux.HandleFunc("GET /api/v1/metamodelos/metamodelo-mensual-head-delta-modelacion", api.handleHead(0.5, true))
	mux.HandleFunc("GET /api/v1/metamodelos/balance/metamodelo-mensual-balance-historico", api.handleBalance(false))
	mux.HandleFunc("GET /api/v1/metamodelos/balance/metamodelo-mensual-balance-modelacion", api.handleBalance(true))
	mux.HandleFunc("GET /api/v1/metamodelos/metamodelos-zonas-geojson", api.handleZoneGeoJSON)
	mux.HandleFunc("GET /api/v1/plataforma-pozos/listado-pozos", api.handleWellList)
	mux.HandleFunc("GET /api/v1/plataforma-pozos/pozos-data/{id}", api.handleWellData)
	mux.HandleFunc("GET /api/v1/plataforma-pozos/pozos-nivel-geojson", api.handleWellLevels)
	mux.HandleFunc("GET /api/v1/salida/pronostico-pozos/listado", api.handleForecastWellList)
	mux.HandleFunc("GET /api/v1/salida/pronostico-pozos-data/{id}", api.handleWellForecast)

	log.Printf("mock hydromet API listening on %s (%d zones, %d wells, seed %d)",
		*addr, *zones, *wells, *seed)
	log.Fatal(http.ListenAndServe(*addr, mux))
}

func newMockAPI(zoneCount, wellCount int, seed int64) *mockAPI {
	api := &mockAPI{seed: seed}
	for i := 1; i <= zoneCount; i++ {
		api.zones = append(api.zones, fmt.Sprintf("Zona %d", i))
	}
	for i := 1; i <= wellCount; i++ {
		api.wells = append(api.wells, fmt.Sprintf("POZO-%03d", i))
	}
	return api
}

// seriesFor generates a monthly random walk. Seeding by name keeps every
// request for the same entity consistent across calls.
func (a *mockAPI) seriesFor(name string, base, step float64, forecast bool) []map[string]any {
	rng := rand.New(rand.NewSource(a.seed ^ hash(name)))

	start, _ := time.Parse("2006-01-02", historyStart)
	boundary, _ := time.Parse("2006-01-02", forecastStart)
	end, _ := time.Parse("2006-01-02", forecastEnd)

	value := base + rng.Float64()*step*10
	var rows []map[string]any
	for t := start; t.Before(end); t = t.AddDate(0, 1, 0) {
		value += (rng.Float64() - 0.5) * step
		inForecast := !t.Before(boundary)
		if inForecast != forecast {
			continue
		}
		rows = append(rows, map[string]any{
			"date":  t.Format("2006-01-02"),
			"value": math.Round(value*100) / 100,
		})
	}
	return rows
}

func (a *mockAPI) handleZones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.zones)
}

func (a *mockAPI) handleHead(base float64, forecast bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		zone := r.URL.Query().Get("zona")
		if !a.knownZone(zone) {
			http.Error(w, "unknown zone", http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{
			"data": a.seriesFor(zone+"/head", base, 0.8, forecast),
		})
	}
}

func (a *mockAPI) handleBalance(forecast bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		zone := r.URL.Query().Get("zona")
		if !a.knownZone(zone) {
			http.Error(w, "unknown zone", http.StatusNotFound)
			return
		}
		in := a.seriesFor(zone+"/in", 5000, 400, forecast)
		out := a.seriesFor(zone+"/out", 4200, 400, forecast)
		rows := make([]map[string]any, len(in))
		for i := range in {
			inV := in[i]["value"].(float64)
			outV := out[i]["value"].(float64)
			rows[i] = map[string]any{
				"date":            in[i]["date"],
				"value_step_in":   inV,
				"value_step_out":  outV,
				"value_step_rate": math.Round((inV-outV)*100) / 100,
			}
		}
		writeJSON(w, map[string]any{"data": rows})
	}
}

// handleZoneGeoJSON emits square zone polygons in EPSG:32719 coordinates,
// tiled west to east across the basin.
func (a *mockAPI) handleZoneGeoJSON(w http.ResponseWriter, r *http.Request) {
	fc := geojson.NewFeatureCollection()
	for i, zone := range a.zones {
		x0 := 330000.0 + float64(i)*12000
		y0 := 6280000.0
		ring := orb.Ring{
			{x0, y0}, {x0 + 10000, y0}, {x0 + 10000, y0 + 10000}, {x0, y0 + 10000}, {x0, y0},
		}
		f := geojson.NewFeature(orb.Polygon{ring})
		f.Properties["zona"] = zone
		fc.Append(f)
	}
	body, err := fc.MarshalJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(body)
}

func (a *mockAPI) handleWellList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"pozos": a.wells})
}

// handleForecastWellList reports forecasts for every other well.
func (a *mockAPI) handleForecastWellList(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for i, id := range a.wells {
		if i%2 == 0 {
			ids = append(ids, id)
		}
	}
	writeJSON(w, ids)
}

func (a *mockAPI) handleWellData(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !a.knownWell(id) {
		http.Error(w, "unknown well", http.StatusNotFound)
		return
	}
	lon, lat := a.wellLocation(id)
	writeJSON(w, map[string]any{
		"info": map[string]any{
			"punto_monitoreo": "PM-" + id,
			"tipo_nivel":      "freatico",
			"latitude":        lat,
			"longitude":       lon,
		},
		"data": a.seriesFor(id+"/nivel", 25, 0.4, false),
	})
}

func (a *mockAPI) handleWellForecast(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !a.knownWell(id) {
		http.Error(w, "unknown well", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"data": a.seriesFor(id+"/nivel", 25, 0.4, true),
	})
}

func (a *mockAPI) handleWellLevels(w http.ResponseWriter, r *http.Request) {
	fc := geojson.NewFeatureCollection()
	for _, id := range a.wells {
		lon, lat := a.wellLocation(id)
		rows := a.seriesFor(id+"/nivel", 25, 0.4, false)
		last := rows[len(rows)-1]["value"].(float64)

		f := geojson.NewFeature(orb.Point{lon, lat})
		f.Properties["pozo"] = id
		f.Properties["nivel"] = last
		fc.Append(f)
	}
	body, err := fc.MarshalJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(body)
}

// wellLocation scatters wells inside the zone tiles' WGS84 footprint.
func (a *mockAPI) wellLocation(id string) (lon, lat float64) {
	rng := rand.New(rand.NewSource(a.seed ^ hash(id)))
	lon = -70.85 + rng.Float64()*0.55
	lat = -33.62 + rng.Float64()*0.12
	return lon, lat
}

func (a *mockAPI) knownZone(zone string) bool {
	for _, z := range a.zones {
		if z == zone {
			return true
		}
	}
	return false
}

func (a *mockAPI) knownWell(id string) bool {
	for _, w := range a.wells {
		if w == id {
			return true
		}
	}
	return false
}

func hash(s string) int64 {
	var h int64 = 1125899906842597
	for _, r := range s {
		h = 31*h + int64(r)
	}
	return h
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}
