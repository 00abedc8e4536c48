package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/pairlauncher/pkg/batch"
	"github.com/speedrun-hq/pairlauncher/pkg/ledger"
	"github.com/speedrun-hq/pairlauncher/pkg/ledger/ledgertest"
	"github.com/speedrun-hq/pairlauncher/pkg/models"
)

var identity = common.HexToAddress("0x1111111111111111111111111111111111111111")

func newTestServer(apiKey string, fake *ledgertest.Fake) (*Server, *batch.Progress) {
	progress := batch.NewProgress()
	return NewServer("0", apiKey, progress, fake, identity, nil), progress
}

func get(t *testing.T, h http.Handler, path, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer("", ledgertest.New())

	rec := get(t, s.Handler(), "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestReady(t *testing.T) {
	fake := ledgertest.New()
	s, _ := newTestServer("", fake)

	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/ready", "").Code)

	fake.SeqErr = errors.New("connection refused")
	rec := get(t, s.Handler(), "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestStatus(t *testing.T) {
	fake := ledgertest.New()
	fake.Sequence = ledger.SequenceNumbers{Confirmed: 10, IncludingPending: 11}
	s, progress := newTestServer("", fake)

	progress.BatchStarted(models.RunMetadata{RunID: "run-1", Network: "testnet"}, 3)
	progress.ItemStarted(0, models.WorkItem{Symbol: "A"})
	progress.ItemFinished(0, models.WorkItem{Symbol: "A"}, models.OperationOutcome{Status: models.StatusSucceeded})
	progress.ItemStarted(1, models.WorkItem{Symbol: "B"})

	rec := get(t, s.Handler(), "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Identity string                 `json:"identity"`
		Batch    batch.ProgressSnapshot `json:"batch"`
		Nonce    map[string]uint64      `json:"nonce"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, identity.Hex(), body.Identity)
	assert.Equal(t, "run-1", body.Batch.RunID)
	assert.Equal(t, 3, body.Batch.Total)
	assert.Equal(t, 1, body.Batch.Done)
	assert.Equal(t, "B", body.Batch.Current)
	assert.Equal(t, uint64(1), body.Nonce["in_flight"])
}

func TestMetricsAuth(t *testing.T) {
	s, _ := newTestServer("secret", ledgertest.New())
	h := s.Handler()

	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/metrics", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/metrics", "Token secret").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/metrics", "Bearer wrong").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/metrics", "Bearer secret").Code)
}

func TestMetricsOpenWithoutKey(t *testing.T) {
	s, _ := newTestServer("", ledgertest.New())
	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/metrics", "").Code)
}
