package hydromet

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hydro-chart-service/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := NewClient(srv.URL+"/api/v1", 5*time.Second, testLogger(), nil)
	return client, srv
}

func TestClient_Zones(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/metamodelos/zonas", r.URL.Path)
		_, _ = w.Write([]byte(`["Zona 1","Zona 2"]`))
	}))
	defer srv.Close()

	zones, err := client.Zones(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"Zona 1", "Zona 2"}, zones)
}

func TestClient_HeadSeries(t *testing.T) {
	t.Run("builds endpoint from metric and regime", func(t *testing.T) {
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/metamodelos/metamodelo-mensual-head-absoluto-historico", r.URL.Path)
			assert.Equal(t, "Zona 1", r.URL.Query().Get("zona"))
			_, _ = w.Write([]byte(`{"data":[{"date":"2023-01-01","value":12.5}]}`))
		}))
		defer srv.Close()

		rows, err := client.HeadSeries(context.Background(), "Zona 1", domain.MetricHeadAbsolute, domain.RegimeHistorical)

		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "2023-01-01", rows[0].Date)
		assert.Equal(t, 12.5, rows[0].Value)
	})

	t.Run("forecast uses modelacion endpoint", func(t *testing.T) {
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/metamodelos/metamodelo-mensual-head-delta-modelacion", r.URL.Path)
			_, _ = w.Write([]byte(`{"data":[]}`))
		}))
		defer srv.Close()

		_, err := client.HeadSeries(context.Background(), "Zona 1", domain.MetricHeadDelta, domain.RegimeForecast)

		require.NoError(t, err)
	})

	t.Run("unknown metric", func(t *testing.T) {
		client, srv := newTestClient(http.NotFoundHandler())
		defer srv.Close()

		_, err := client.HeadSeries(context.Background(), "Zona 1", "volume", domain.RegimeHistorical)

		require.ErrorIs(t, err, domain.ErrRetrieval)
	})
}

func TestClient_BalanceSeries(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/metamodelos/balance/metamodelo-mensual-balance-historico", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"date":"2023-01-01","value_step_in":10,"value_step_out":4,"value_step_rate":6}]}`))
	}))
	defer srv.Close()

	rows, err := client.BalanceSeries(context.Background(), "Zona 1", domain.RegimeHistorical)

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 10.0, rows[0].StepIn)
	assert.Equal(t, 4.0, rows[0].StepOut)
	assert.Equal(t, 6.0, rows[0].StepRate)
}

func TestClient_ZoneGeometries(t *testing.T) {
	body := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"zona":"Zona 1"},
		 "geometry":{"type":"Polygon","coordinates":[[[330000,6280000],[340000,6280000],[340000,6290000],[330000,6280000]]]}}
	]}`
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/metamodelos/metamodelos-zonas-geojson", r.URL.Path)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	zones, err := client.ZoneGeometries(context.Background())

	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, "Zona 1", zones[0].Name)
	_, ok := zones[0].Geometry.(orb.Polygon)
	assert.True(t, ok)
}

func TestClient_Wells(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/plataforma-pozos/listado-pozos", r.URL.Path)
		_, _ = w.Write([]byte(`{"pozos":["POZO-001","POZO-002"]}`))
	}))
	defer srv.Close()

	wells, err := client.Wells(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"POZO-001", "POZO-002"}, wells)
}

func TestClient_WellData(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/plataforma-pozos/pozos-data/POZO-001", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"info":{"punto_monitoreo":"PM-01","tipo_nivel":"freatico","latitude":-33.5,"longitude":-70.7},
			"data":[{"date":"2023-01-01","value":24.1}]
		}`))
	}))
	defer srv.Close()

	info, rows, err := client.WellData(context.Background(), "POZO-001")

	require.NoError(t, err)
	assert.Equal(t, "PM-01", info.MonitoringPoint)
	assert.Equal(t, "freatico", info.LevelType)
	require.Len(t, rows, 1)
	assert.Equal(t, 24.1, rows[0].Value)
}

func TestClient_WellLevels(t *testing.T) {
	t.Run("decodes point features", func(t *testing.T) {
		body := `{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"pozo":"POZO-001","nivel":24.3},
			 "geometry":{"type":"Point","coordinates":[-70.7,-33.5]}}
		]}`
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		defer srv.Close()

		wells, err := client.WellLevels(context.Background())

		require.NoError(t, err)
		require.Len(t, wells, 1)
		assert.Equal(t, "POZO-001", wells[0].ID)
		assert.Equal(t, orb.Point{-70.7, -33.5}, wells[0].Location)
		assert.Equal(t, 24.3, wells[0].Level)
		assert.False(t, wells[0].Classified)
	})

	t.Run("missing nivel property", func(t *testing.T) {
		body := `{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"pozo":"POZO-001"},
			 "geometry":{"type":"Point","coordinates":[-70.7,-33.5]}}
		]}`
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		defer srv.Close()

		_, err := client.WellLevels(context.Background())

		require.ErrorIs(t, err, domain.ErrRetrieval)
	})
}

func TestClient_Errors(t *testing.T) {
	t.Run("server error wraps ErrRetrieval", func(t *testing.T) {
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := client.Zones(context.Background())

		require.ErrorIs(t, err, domain.ErrRetrieval)
		assert.Contains(t, err.Error(), "status 500")
		assert.Contains(t, err.Error(), "upstream exploded")
	})

	t.Run("malformed body wraps ErrRetrieval", func(t *testing.T) {
		client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data": not json`))
		}))
		defer srv.Close()

		_, err := client.BalanceSeries(context.Background(), "Zona 1", domain.RegimeHistorical)

		require.ErrorIs(t, err, domain.ErrRetrieval)
	})

	t.Run("unreachable server wraps ErrRetrieval", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", time.Second, testLogger(), nil)

		_, err := client.Zones(context.Background())

		require.ErrorIs(t, err, domain.ErrRetrieval)
	})
}
