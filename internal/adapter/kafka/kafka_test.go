package kafka

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hydro-chart-service/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	completed := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
	m := domain.RunManifest{
		RunID:       "run-1",
		StartedAt:   completed.Add(-2 * time.Minute),
		CompletedAt: completed,
	}
	m.Succeed("zone/Zona 1/head_absolute", "outputs/Zona_1_head_absolute.png")
	m.Succeed("wells/map", "outputs/distribucion_pozos_percentiles.png")
	m.Fail("zone/Zona 2/balance", errors.New("fetch failed"))

	msg, err := serializeToMessage(m)
	require.NoError(t, err)

	assert.Equal(t, []byte("run-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"run_id":"run-1"`)
	assert.Contains(t, string(msg.Value), `"zone/Zona 1/head_absolute"`)

	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "completed_at", msg.Headers[0].Key)
	assert.Equal(t, []byte(completed.Format(time.RFC3339)), msg.Headers[0].Value)
	assert.Equal(t, "units_succeeded", msg.Headers[1].Key)
	assert.Equal(t, []byte("2"), msg.Headers[1].Value)
	assert.Equal(t, "units_failed", msg.Headers[2].Key)
	assert.Equal(t, []byte("1"), msg.Headers[2].Value)
}

func TestUnitMessages(t *testing.T) {
	m := domain.RunManifest{RunID: "run-2"}
	m.Succeed("zone/Zona 1/head_delta", "outputs/Zona_1_head_delta.png")
	m.Fail("wells/classification", errors.New("too few wells"))

	msgs := unitMessages(m)
	require.Len(t, msgs, 2)

	assert.Equal(t, []byte("run-2/zone/Zona 1/head_delta"), msgs[0].Key)
	assert.Contains(t, string(msgs[0].Value), `"ok":true`)
	assert.Contains(t, string(msgs[0].Value), `"outputs/Zona_1_head_delta.png"`)

	assert.Equal(t, []byte("run-2/wells/classification"), msgs[1].Key)
	assert.Contains(t, string(msgs[1].Value), `"ok":false`)
	assert.Contains(t, string(msgs[1].Value), `"error":"too few wells"`)
}
