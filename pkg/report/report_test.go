package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedrun-hq/pairlauncher/pkg/models"
)

func testMeta() models.RunMetadata {
	return models.RunMetadata{
		RunID:              "6f1c0f3e-8d1e-4c59-9a52-3c1b8e1c2d11",
		Network:            "zetachain-testnet",
		ChainID:            7001,
		Timestamp:          time.Date(2026, 10, 18, 9, 30, 15, 123_000_000, time.UTC),
		SubmittingIdentity: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Contracts:          map[string]common.Address{"factory": common.HexToAddress("0x2222222222222222222222222222222222222222")},
	}
}

func testOutcomes() []models.OperationOutcome {
	return []models.OperationOutcome{
		{Symbol: "A", Status: models.StatusSucceeded, Attempts: 1, Pair: "0xaa", Price: "2.5",
			Steps: []models.StepRecord{{Name: "create", Attempts: 1, TxHash: "0xfeed"}}},
		{Symbol: "B", Status: models.StatusSkippedDuplicate, Attempts: 1, Pair: "0xbb"},
		{Symbol: "C", Status: models.StatusFailed, Attempts: 1, FailedStep: "create", ErrorKind: "reverted", Error: "execution reverted"},
	}
}

func TestFileName(t *testing.T) {
	result := Build(testMeta(), nil)
	assert.Equal(t, "batch-zetachain-testnet-20261018T093015.123Z.json", FileName(result))

	result.Network = "my net/1"
	assert.Equal(t, "batch-my-net-1-20261018T093015.123Z.json", FileName(result))
}

func TestPersistAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "deployments")
	result := Build(testMeta(), testOutcomes())

	path, err := Persist(dir, result)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName(result)), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, float64(2), raw["successCount"])
	assert.Equal(t, float64(1), raw["failureCount"])
	assert.Equal(t, float64(3), raw["totalCount"])
	assert.Equal(t, float64(7001), raw["chainId"])

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, result.Outcomes, loaded.Outcomes)
	assert.Equal(t, result.SubmittingIdentity, loaded.SubmittingIdentity)
	assert.True(t, result.Timestamp.Equal(loaded.Timestamp))
}

func TestPersistNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	result := Build(testMeta(), testOutcomes())

	path, err := Persist(dir, result)
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = Persist(dir, Build(testMeta(), nil))
	assert.ErrorContains(t, err, "already exists")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLoadRejectsTamperedCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"totalCount": 2, "successCount": 2, "failureCount": 0, "outcomes": []}`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnsureWritable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	require.NoError(t, EnsureWritable(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	Render(&buf, Build(testMeta(), testOutcomes()))

	out := buf.String()
	assert.Contains(t, out, "zetachain-testnet")
	assert.Contains(t, out, "skipped-duplicate")
	assert.Contains(t, out, "0xfeed")
	assert.Contains(t, out, "create: reverted: execution reverted")
}

func TestDescribeError(t *testing.T) {
	long := "execution reverted: " + strings.Repeat("x", 200) + "\ntrailing detail"
	tests := []struct {
		name    string
		outcome models.OperationOutcome
		want    string
	}{
		{"succeeded", models.OperationOutcome{Status: models.StatusSucceeded}, ""},
		{"failed with reason", models.OperationOutcome{Status: models.StatusFailed, FailedStep: "approve-a",
			ErrorKind: "insufficient_funds", Error: "insufficient funds for gas"}, "approve-a: insufficient_funds: insufficient funds for gas"},
		{"cancelled before start", models.OperationOutcome{Status: models.StatusFailed, ErrorKind: "cancelled",
			Error: "batch: cancelled: context canceled"}, "cancelled: batch: cancelled: context canceled"},
		{"verify failure", models.OperationOutcome{Status: models.StatusSucceeded, VerifyError: "pair returned no price"},
			"verify: pair returned no price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describeError(tt.outcome))
		})
	}

	got := describeError(models.OperationOutcome{Status: models.StatusFailed, FailedStep: "create", ErrorKind: "reverted", Error: long})
	assert.True(t, strings.HasPrefix(got, "create: reverted: execution reverted: xxx"))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.NotContains(t, got, "trailing detail")
	assert.LessOrEqual(t, len(got), len("create: reverted: ")+maxErrorWidth)
}

func TestCreateArtifactRemovesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")

	err := createArtifact(path, func(w io.Writer) error {
		_, _ = w.Write([]byte(`{"runId":`))
		return errors.New("disk full")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
