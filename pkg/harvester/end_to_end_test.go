package harvester

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedharvest/internal/downloader"
	"seedharvest/pkg/catalog"
	errs "seedharvest/pkg/errors"
	"seedharvest/pkg/inventory"
	"seedharvest/pkg/logger"
)

// mockCatalogServer serves the listing, token and artifact endpoints the
// way the upstream does, including its throttling replies
type mockCatalogServer struct {
	server *httptest.Server

	mu          sync.Mutex
	pages       map[int][]string
	rateLimited map[string]int
	quota       map[string]bool
	artifacts   map[string]int
}

func newMockCatalogServer(t *testing.T) *mockCatalogServer {
	t.Helper()
	m := &mockCatalogServer{
		pages:       make(map[int][]string),
		rateLimited: make(map[string]int),
		quota:       make(map[string]bool),
		artifacts:   make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(catalog.SearchEndpoint, m.handleSearch)
	mux.HandleFunc(catalog.TokenEndpoint, m.handleToken)
	mux.HandleFunc("/dl/", m.handleArtifact)

	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockCatalogServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PageNumber int `json:"pageNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	ids := m.pages[req.PageNumber]
	m.mu.Unlock()

	listed := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		listed = append(listed, map[string]string{"id": id, "name": "title " + id})
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    "0",
		"message": "SUCCESS",
		"data":    map[string]interface{}{"data": listed},
	})
}

func (m *mockCatalogServer) handleToken(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"code": "0",
		"data": m.server.URL + "/dl/" + id,
	})
}

func (m *mockCatalogServer) handleArtifact(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/dl/")

	m.mu.Lock()
	m.artifacts[id]++
	quota := m.quota[id]
	limited := m.rateLimited[id] > 0
	if limited {
		m.rateLimited[id]--
	}
	m.mu.Unlock()

	switch {
	case quota:
		// the quota reply arrives ASCII-escaped on an error status
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprintf(w, `{"code":"1","message":%s}`, strconv.QuoteToASCII(catalog.MarkerQuotaExhausted))
	case limited:
		fmt.Fprintf(w, `{"code":"1","message":"%s"}`, catalog.MarkerRateLimited)
	default:
		w.Header().Set("Content-Type", "application/x-bittorrent")
		w.Write(torrentFor(id))
	}
}

func (m *mockCatalogServer) artifactRequests(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.artifacts[id]
}

func newEndToEnd(t *testing.T, server *mockCatalogServer) (*fixture, *Harvester) {
	t.Helper()
	f := newFixture(t)

	client := catalog.NewClient(catalog.Options{
		BaseURL:  server.server.URL,
		APIKey:   "test-key",
		PageSize: 3,
	}, logger.NewNopLogger())

	dl := downloader.New(client, f.store, downloader.Options{
		MaxRetries:        3,
		InitialRetryDelay: time.Second,
		Sleep:             func(ctx context.Context, d time.Duration) error { return ctx.Err() },
		OnRetry: func(id string, attempt int, delay time.Duration) {
			f.metrics.Retry()
		},
	}, f.log)

	f.opts.MaxWorkers = 1
	f.opts.RequestInterval = 0

	h := New(Deps{
		Catalog:    client,
		Downloader: dl,
		Store:      f.store,
		Inventory:  inventory.New(f.gateway, time.Hour),
		Gateway:    f.gateway,
		Ledger:     f.ledger,
		Metrics:    f.metrics,
		Logger:     f.log,
	}, f.opts)
	return f, h
}

func TestEndToEndHarvestOverHTTP(t *testing.T) {
	server := newMockCatalogServer(t)
	server.pages[1] = []string{"1", "2", "3"}
	server.pages[2] = []string{"4"}
	server.rateLimited["3"] = 1

	f, h := newEndToEnd(t, server)

	summary, err := h.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReasonCatalogExhausted, summary.Reason)
	assert.Equal(t, 4, summary.Added)
	assert.Equal(t, 3, summary.NextPage)
	assert.ElementsMatch(t, []string{"item-1", "item-2", "item-3", "item-4"}, f.gateway.addedNames())

	assert.Equal(t, 2, server.artifactRequests("3"))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.DownloadRetries))

	reloaded := f.reopenLedger(t)
	assert.Equal(t, 3, reloaded.NextPage())
	assert.Equal(t, []string{"1", "2", "3", "4"}, reloaded.Snapshot().ProcessedIDs)

	// a rewound run over the same catalog downloads nothing again
	f.ledger.SetNextPage(1)
	again, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, again.Skipped)
	assert.Zero(t, again.Added)
	assert.Equal(t, 1, server.artifactRequests("1"))
}

func TestEndToEndQuotaStopsTheRun(t *testing.T) {
	server := newMockCatalogServer(t)
	server.pages[1] = []string{"1", "2"}
	server.pages[2] = []string{"3", "4"}
	server.quota["3"] = true

	f, h := newEndToEnd(t, server)

	_, err := h.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrQuotaExhausted)
	assert.Equal(t, []int{1}, f.exitCodes)
	require.Len(t, f.exitLedgers, 1)
	require.NoError(t, f.exitErrs[0])
	assert.Equal(t, []string{"1", "2"}, f.exitLedgers[0].Snapshot().ProcessedIDs, "ledger on disk when the process exits")
	assert.Equal(t, 2, f.exitLedgers[0].NextPage())

	assert.Equal(t, 1, server.artifactRequests("3"), "quota replies are not retried")
	assert.Zero(t, server.artifactRequests("4"))

	reloaded := f.reopenLedger(t)
	assert.Equal(t, 2, reloaded.NextPage())
	assert.Equal(t, []string{"1", "2"}, reloaded.Snapshot().ProcessedIDs)
}
