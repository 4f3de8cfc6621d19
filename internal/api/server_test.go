package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"emagsync/internal/config"
	"emagsync/internal/database"
	"emagsync/internal/logger"
	"emagsync/internal/models"
	"emagsync/internal/pipeline"
	"emagsync/internal/queue"
	"emagsync/internal/scheduler"
	"emagsync/internal/services/emag"
	"emagsync/internal/services/fitness1"
	"emagsync/internal/store"
	"emagsync/internal/worker/processors/export"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryPublisher struct {
	mu   sync.Mutex
	sent []queue.RunRequest
}

func (p *memoryPublisher) Publish(_ context.Context, req queue.RunRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, req)
	return nil
}

type fakeRunner struct {
	products   []fitness1.Product
	supplyErr  error
	locales    []string
	proposal   pipeline.MappingProposal
	proposeErr error
	proposed   []pipeline.Options
}

func (f *fakeRunner) SupplierProducts(context.Context) ([]fitness1.Product, error) {
	return f.products, f.supplyErr
}

func (f *fakeRunner) MarketplaceProducts(_ context.Context, locale string) ([]emag.ListedProduct, error) {
	f.locales = append(f.locales, locale)
	return []emag.ListedProduct{{ID: 7, EAN: []string{"111"}, CategoryID: 5}}, nil
}

func (f *fakeRunner) ProposeMappings(_ context.Context, opts pipeline.Options) (pipeline.MappingProposal, error) {
	f.proposed = append(f.proposed, opts)
	return f.proposal, f.proposeErr
}

type testServer struct {
	server    *Server
	db        *database.Database
	runs      *store.Runs
	catalog   *store.Catalog
	publisher *memoryPublisher
	runner    *fakeRunner
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	db, err := database.New("sqlite://" + filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.Nop()
	ts := &testServer{
		db:        db,
		runs:      store.NewRuns(db.DB),
		catalog:   store.NewCatalog(db.DB),
		publisher: &memoryPublisher{},
		runner:    &fakeRunner{},
	}
	dispatcher := queue.NewDispatcher(ts.runs, ts.publisher, log)
	schedules := store.NewSchedules(db.DB)

	ts.server = New(cfg, log, Services{
		Runs:      ts.runs,
		Enqueuer:  dispatcher,
		Catalog:   ts.catalog,
		Schedules: schedules,
		Trigger:   scheduler.New(schedules, dispatcher, time.Minute, log),
		Runner:    ts.runner,
		DB:        db,
	})
	return ts
}

func testConfig() *config.Config {
	return &config.Config{EmagLocale: "bg", Env: "test"}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRunsQueueAndFetch(t *testing.T) {
	ts := newTestServer(t, testConfig())

	w := ts.do(http.MethodPost, "/api/v1/runs", `{"action":"update","batch_size":10,"pause":0.5}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	run := decode(t, w)["data"].(map[string]interface{})
	id := run["id"].(string)
	assert.NotEmpty(t, id)
	assert.Equal(t, "pending", run["status"])
	assert.Equal(t, "api", run["trigger"])

	require.Len(t, ts.publisher.sent, 1)
	assert.Equal(t, id, ts.publisher.sent[0].RunID)
	assert.Equal(t, 10, ts.publisher.sent[0].Options.BatchSize)

	w = ts.do(http.MethodGet, "/api/v1/runs/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode(t, w)["data"].(map[string]interface{})["id"])

	w = ts.do(http.MethodGet, "/api/v1/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/v1/runs/missing", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/v1/runs", `{"action":"purge"}`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/v1/runs", `{"action":"create","threshold":120}`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/v1/runs?limit=0", "").Code)
	assert.Len(t, ts.publisher.sent, 1)
}

func TestRunFailuresReport(t *testing.T) {
	ts := newTestServer(t, testConfig())
	ctx := context.Background()

	run, err := ts.runs.Create(ctx, "create", models.RunTriggerAPI, pipeline.Options{Action: pipeline.ActionCreate})
	require.NoError(t, err)
	failures := []export.Failure{{
		Batch:    2,
		Size:     1,
		Payload:  json.RawMessage(`[{"id":110,"ean":["111"],"part_number":"IDCARS-110","name":"Whey","sale_price":50}]`),
		Messages: []string{"rejected"},
	}}
	require.NoError(t, ts.runs.Finish(ctx, run.ID, pipeline.Summary{Failed: 1}, failures, nil, time.Now()))

	w := ts.do(http.MethodGet, "/api/v1/runs/"+run.ID+"/failures.xlsx", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "run-"+run.ID+"-failures.xlsx")

	book, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer book.Close()
	messages, err := book.GetCellValue("Failures", "C2")
	require.NoError(t, err)
	assert.Equal(t, "rejected", messages)
	name, err := book.GetCellValue("Records", "E2")
	require.NoError(t, err)
	assert.Equal(t, "Whey", name)
}

func TestMappingsLifecycle(t *testing.T) {
	ts := newTestServer(t, testConfig())

	w := ts.do(http.MethodPost, "/api/v1/categories/seed", "")
	require.Equal(t, http.StatusOK, w.Code)
	added := decode(t, w)["data"].(map[string]interface{})["added"]
	assert.Equal(t, float64(len(config.DefaultFitnessCategories)), added)

	w = ts.do(http.MethodGet, "/api/v1/categories", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], len(config.DefaultFitnessCategories))

	w = ts.do(http.MethodPost, "/api/v1/mappings", `{"fitness1_category":"Добавки > Разни","emag_category":"Креатин"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	mapping := decode(t, w)["data"].(map[string]interface{})
	id := mapping["id"].(float64)

	w = ts.do(http.MethodPost, "/api/v1/mappings", `{"fitness1_category":"Обувки","emag_category":"Обувки"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(http.MethodPost, "/api/v1/mappings", `{"fitness1_category":"Обувки"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPatch, "/api/v1/mappings", `{"updates":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body, _ := json.Marshal(map[string]interface{}{
		"updates": []map[string]interface{}{{"id": id, "emag_category": "Аминокиселини"}},
	})
	w = ts.do(http.MethodPatch, "/api/v1/mappings", string(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decode(t, w)["data"].(map[string]interface{})["updated"])

	overrides, err := ts.catalog.MappingOverrides(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Добавки > Разни": "Аминокиселини"}, overrides)

	path := "/api/v1/mappings/" + jsonNumber(id)
	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, path, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, path, "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodDelete, "/api/v1/mappings/abc", "").Code)
}

func jsonNumber(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}

func TestRebuildMappings(t *testing.T) {
	ts := newTestServer(t, testConfig())
	ts.runner.proposal = pipeline.MappingProposal{
		Assignment: map[string]string{"Протеини > На прах": "Протеини"},
		Unmapped:   []string{"Обувки"},
	}
	_, err := ts.catalog.SaveMapping(context.Background(), "Стар", "Креатин")
	require.NoError(t, err)

	w := ts.do(http.MethodPost, "/api/v1/mappings/rebuild", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, false, out["applied"])
	overrides, _ := ts.catalog.MappingOverrides(context.Background())
	assert.Equal(t, map[string]string{"Стар": "Креатин"}, overrides)

	w = ts.do(http.MethodPost, "/api/v1/mappings/rebuild", `{"apply":true,"threshold":70}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decode(t, w)["stored"])
	overrides, _ = ts.catalog.MappingOverrides(context.Background())
	assert.Equal(t, map[string]string{"Протеини > На прах": "Протеини"}, overrides)
	assert.Equal(t, 70.0, ts.runner.proposed[1].Threshold)

	ts.runner.proposeErr = pipeline.ErrMarketplaceFetch
	assert.Equal(t, http.StatusBadGateway, ts.do(http.MethodPost, "/api/v1/mappings/rebuild", "").Code)
}

func TestScheduleLifecycle(t *testing.T) {
	ts := newTestServer(t, testConfig())

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/v1/schedule", "").Code)

	w := ts.do(http.MethodPost, "/api/v1/schedule", `{"schedule_type":"time","time":"03:30"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	schedule := out["data"].(map[string]interface{})
	assert.Equal(t, float64(3), schedule["hour"])
	assert.Equal(t, float64(30), schedule["minute"])
	assert.Equal(t, true, schedule["enabled"])
	assert.Equal(t, "daily at 03:30", out["description"])
	assert.NotEmpty(t, out["next_run_time"])

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/v1/schedule", `{"schedule_type":"time","time":"25:00"}`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/v1/schedule", `{"schedule_type":"interval","interval_hours":0}`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/v1/schedule", `{"schedule_type":"weekly"}`).Code)

	w = ts.do(http.MethodPost, "/api/v1/schedule", `{"schedule_type":"interval","interval_hours":6}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "every 6 hours", decode(t, w)["description"])

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/v1/schedule", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/api/v1/schedule", "").Code)

	w = ts.do(http.MethodGet, "/api/v1/schedule", "")
	require.Equal(t, http.StatusOK, w.Code)
	out = decode(t, w)
	assert.Equal(t, "disabled", out["description"])
	assert.NotContains(t, out, "next_run_time")

	w = ts.do(http.MethodPost, "/api/v1/schedule/trigger", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "schedule", decode(t, w)["data"].(map[string]interface{})["trigger"])
	require.Len(t, ts.publisher.sent, 1)
	assert.Equal(t, pipeline.ActionUpdate, ts.publisher.sent[0].Action)
}

func TestProductBrowsing(t *testing.T) {
	ts := newTestServer(t, testConfig())
	ts.runner.products = []fitness1.Product{
		{BrandName: "Nutrend", ProductName: "Whey", Pack: "1 kg", Category: "Протеини", Barcode: "111"},
		{ProductName: "Shaker", Category: "Аксесоари", Barcode: "222"},
	}

	w := ts.do(http.MethodGet, "/api/v1/products/fitness1?category=Протеини", "")
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, float64(1), out["count"])
	first := out["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Nutrend, Whey, 1 kg", first["display_name"])
	assert.Equal(t, "111", first["barcode"])

	w = ts.do(http.MethodGet, "/api/v1/products/emag?locale=ro", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ro", decode(t, w)["locale"])
	ts.do(http.MethodGet, "/api/v1/products/emag", "")
	assert.Equal(t, []string{"ro", "bg"}, ts.runner.locales)

	ts.runner.supplyErr = errors.New("feed down")
	assert.Equal(t, http.StatusBadGateway, ts.do(http.MethodGet, "/api/v1/products/fitness1", "").Code)
}

func TestBasicAuthAndProbes(t *testing.T) {
	cfg := testConfig()
	cfg.APIUsername, cfg.APIPassword = "ops", "secret"
	ts := newTestServer(t, cfg)

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/v1/runs", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	req.SetBasicAuth("ops", "secret")
	w := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = ts.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "emagsync_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/runs", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
