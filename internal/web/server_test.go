package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/assetinventory/internal/config"
	"github.com/JonMunkholm/assetinventory/internal/importer"
	"github.com/JonMunkholm/assetinventory/internal/inventory"
	"github.com/JonMunkholm/assetinventory/internal/store/memory"
)

const importCSV = `name,asset_id,status,purchase_price
Laptop,LP001,available,1200
Camera,CM002,Broken,800.50
,MISSING,,
`

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Import: config.ImportConfig{
			BatchSize:     2,
			BatchDelay:    time.Millisecond,
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWaitTime:   50 * time.Millisecond,
		},
		MassDelete: config.MassDeleteConfig{BatchSize: 2, BatchDelay: time.Millisecond},
	}
}

type testEnv struct {
	srv *Server
	inv *inventory.Service
	imp *importer.Service
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	inv, err := inventory.NewService(inventory.New(memory.New()))
	if err != nil {
		t.Fatalf("inventory.NewService() error = %v", err)
	}
	imp, err := importer.NewService(inv.Inventory().Assets, importer.ServiceConfig{
		BatchSize:     cfg.Import.BatchSize,
		BatchDelay:    cfg.Import.BatchDelay,
		MaxFileSize:   cfg.Import.MaxFileSize,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
	}, importer.NewMetrics())
	if err != nil {
		t.Fatalf("importer.NewService() error = %v", err)
	}
	t.Cleanup(imp.CancelAll)
	return &testEnv{srv: NewServer(cfg, imp, inv, nil), inv: inv, imp: imp}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, path, fileName, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func (e *testEnv) asset(t *testing.T, assetID string) inventory.Asset {
	t.Helper()
	a, err := e.inv.Inventory().Assets.Create(context.Background(), inventory.Asset{
		Name:    "Item " + assetID,
		AssetID: assetID,
		Status:  inventory.StatusAvailable,
	})
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}
	return a
}

// =============================================================================
// Health / metrics / template
// =============================================================================

func TestHealth(t *testing.T) {
	env := newTestEnv(t, testConfig())
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["status"] != "ok" || body["attachments"] != false {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestImportTemplate(t *testing.T) {
	env := newTestEnv(t, testConfig())
	rec := env.do(t, http.MethodGet, "/api/import/template", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), importer.TemplateFileName) {
		t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	if rec.Body.String() != importer.Template() {
		t.Errorf("body does not match template")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, testConfig())
	rec := env.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "asset_import_active_runs") {
		t.Errorf("metrics output missing gauge:\n%s", rec.Body.String())
	}
}

// =============================================================================
// Import
// =============================================================================

func TestImportEndToEnd(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.upload(t, "/api/import", "assets.csv", importCSV)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body.String())
	}
	runID := decodeBody[map[string]string](t, rec)["run_id"]
	if runID == "" {
		t.Fatal("run_id missing")
	}

	rec = env.do(t, http.MethodGet, "/api/import/"+runID+"/result?wait=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("result status = %d, body %s", rec.Code, rec.Body.String())
	}
	res := decodeBody[importer.Result](t, rec)
	if res.State != importer.StateDone {
		t.Fatalf("state = %s, error %q", res.State, res.Error)
	}
	if res.Commit == nil || res.Commit.Succeeded != 2 {
		t.Errorf("commit = %+v, want 2 succeeded", res.Commit)
	}
	if got := len(res.Outcome.Rejected); got != 1 {
		t.Errorf("rejected = %d, want 1", got)
	}

	assets, err := env.inv.Inventory().Assets.List(context.Background(), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 2 {
		t.Errorf("stored assets = %d, want 2", len(assets))
	}

	rec = env.do(t, http.MethodGet, "/api/import/"+runID+"/failed", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed rows status = %d", rec.Code)
	}
	if failed := rec.Body.String(); !strings.HasPrefix(failed, "_line,_error,name") || !strings.Contains(failed, "MISSING") {
		t.Errorf("failed rows = %q", failed)
	}

	rec = env.do(t, http.MethodGet, "/api/import/"+runID+"/progress", nil)
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("progress Content-Type = %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: progress") || !strings.Contains(body, "event: complete") {
		t.Errorf("progress stream = %q", body)
	}
}

func TestImportPreview(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.upload(t, "/api/import/preview", "assets.csv", "name,asset_id,color\nDesk,D1,red\n")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	p := decodeBody[importer.Preview](t, rec)
	if len(p.Unknown) != 1 || p.Unknown[0] != "color" {
		t.Errorf("Unknown = %v, want [color]", p.Unknown)
	}
	if p.Outcome.ValidCount() != 1 {
		t.Errorf("valid = %d, want 1", p.Outcome.ValidCount())
	}
}

func TestImportUploadErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Import.MaxFileSize = 64
	env := newTestEnv(t, cfg)

	tests := []struct {
		name     string
		content  string
		wantCode string
		status   int
	}{
		{"header only", "name,asset_id\n", "FILE004", http.StatusBadRequest},
		{"too large", "name,asset_id\n" + strings.Repeat("Chair,C1\n", 20), "FILE001", http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.upload(t, "/api/import/preview", "a.csv", tt.content)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if got := decodeBody[ErrorResponse](t, rec).Code; got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestImportMissingFile(t *testing.T) {
	env := newTestEnv(t, testConfig())
	rec := env.do(t, http.MethodPost, "/api/import", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody[ErrorResponse](t, rec).Code; got != "FILE005" {
		t.Errorf("code = %s, want FILE005", got)
	}
}

func TestImportUnknownRun(t *testing.T) {
	env := newTestEnv(t, testConfig())
	for _, path := range []string{
		"/api/import/nope/result",
		"/api/import/nope/progress",
	} {
		rec := env.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, rec.Code)
		}
		resp := decodeBody[ErrorResponse](t, rec)
		if resp.Code != "RUN003" || resp.Message == "" || resp.Action == "" {
			t.Errorf("%s: response = %+v", path, resp)
		}
	}
	rec := env.do(t, http.MethodPost, "/api/import/nope/cancel", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cancel status = %d, want 404", rec.Code)
	}
}

// =============================================================================
// Inventory
// =============================================================================

func TestLocationTreeAndDelete(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodPost, "/api/locations", map[string]string{"name": "Warehouse"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	parent := decodeBody[inventory.Location](t, rec)

	rec = env.do(t, http.MethodPost, "/api/locations", map[string]string{
		"name":               "Shelf A",
		"parent_location_id": parent.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create child status = %d", rec.Code)
	}
	child := decodeBody[inventory.Location](t, rec)

	rec = env.do(t, http.MethodGet, "/api/locations/tree", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("tree status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Shelf A") {
		t.Errorf("tree = %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodPut, "/api/locations/"+parent.ID+"/parent", map[string]string{"parent_id": child.ID})
	if rec.Code != http.StatusConflict {
		t.Errorf("move under child status = %d, want 409", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/api/locations/"+parent.ID+"/parent", map[string]string{"parent_id": "nowhere"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("move under missing parent status = %d, want 404", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/api/locations/"+parent.ID, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("delete parent status = %d, want 409", rec.Code)
	}
	if got := decodeBody[ErrorResponse](t, rec).Code; got != "STORE003" {
		t.Errorf("code = %s, want STORE003", got)
	}

	rec = env.do(t, http.MethodDelete, "/api/locations/"+child.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete child status = %d, want 204", rec.Code)
	}
}

func TestRoleRoutes(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodPost, "/api/roles", map[string]any{"name": "Tech", "permissions": []string{"asset:view"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	role := decodeBody[inventory.Role](t, rec)

	rec = env.do(t, http.MethodPost, "/api/roles", map[string]any{"name": "Bad", "permissions": []string{"asset:fly"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown permission status = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/api/roles/"+role.ID, map[string]any{
		"name":        "Technician",
		"permissions": []string{"asset:view", "asset:checkout"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[inventory.Role](t, rec); got.Name != "Technician" || len(got.Permissions) != 2 {
		t.Errorf("updated role = %+v", got)
	}

	rec = env.do(t, http.MethodGet, "/api/roles", nil)
	if roles := decodeBody[[]inventory.Role](t, rec); len(roles) != 1 {
		t.Errorf("roles = %+v, want 1", roles)
	}

	user, err := env.inv.Inventory().Users.Create(context.Background(), inventory.User{Email: "sam@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	rec = env.do(t, http.MethodPut, "/api/users/"+user.ID+"/roles", map[string]any{"role_ids": []string{"missing"}})
	if rec.Code != http.StatusNotFound {
		t.Errorf("assign unknown role status = %d, want 404", rec.Code)
	}
	rec = env.do(t, http.MethodPut, "/api/users/"+user.ID+"/roles", map[string]any{"role_ids": []string{role.ID}})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/users/"+user.ID+"/permissions", nil)
	perms := decodeBody[map[string][]string](t, rec)["permissions"]
	if len(perms) != 2 || perms[0] != "asset:view" || perms[1] != "asset:checkout" {
		t.Errorf("permissions = %v", perms)
	}

	rec = env.do(t, http.MethodDelete, "/api/roles/"+role.ID, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("delete assigned role status = %d, want 409", rec.Code)
	}
	env.do(t, http.MethodPut, "/api/users/"+user.ID+"/roles", map[string]any{"role_ids": []string{}})
	rec = env.do(t, http.MethodDelete, "/api/roles/"+role.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete role status = %d, want 204", rec.Code)
	}
}

func TestCreateEventRoute(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodPost, "/api/events", map[string]string{"name": "Expo", "start_date": "2024-05-03", "end_date": "2024-05-01"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("end before start status = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/events", map[string]string{"name": "Expo", "start_date": "2024-05-01"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	ev := decodeBody[inventory.Event](t, rec)
	if ev.Status != inventory.EventUpcoming {
		t.Errorf("status = %q, want upcoming", ev.Status)
	}

	rec = env.do(t, http.MethodGet, "/api/events/"+ev.ID+"/manifest", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("manifest of new event status = %d, want 200", rec.Code)
	}
}

func TestComponentsRoute(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	rig, err := env.inv.Inventory().Assets.Create(ctx, inventory.Asset{Name: "Rig", AssetID: "RIG1", IsComposite: true, Status: inventory.StatusAvailable})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.inv.Inventory().Assets.Create(ctx, inventory.Asset{Name: "Lens", AssetID: "LENS1", ParentAssetID: rig.ID, Status: inventory.StatusAvailable}); err != nil {
		t.Fatal(err)
	}
	env.asset(t, "CBL1")

	rec := env.do(t, http.MethodGet, "/api/assets/"+rig.ID+"/components", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	parts := decodeBody[[]inventory.Asset](t, rec)
	if len(parts) != 1 || parts[0].AssetID != "LENS1" {
		t.Errorf("components = %+v", parts)
	}

	rec = env.do(t, http.MethodGet, "/api/assets/missing/components", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing asset status = %d, want 404", rec.Code)
	}
}

func TestCreateCategoryValidation(t *testing.T) {
	env := newTestEnv(t, testConfig())
	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"valid", map[string]string{"name": "Laptops"}, http.StatusCreated},
		{"missing name", map[string]string{"description": "x"}, http.StatusBadRequest},
		{"unknown field", map[string]string{"name": "A", "bogus": "1"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/categories", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestCheckoutCheckinFlow(t *testing.T) {
	env := newTestEnv(t, testConfig())
	a := env.asset(t, "LP001")

	rec := env.do(t, http.MethodPost, "/api/assets/"+a.ID+"/checkout", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("checkout without email status = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/assets/"+a.ID+"/checkout", inventory.CheckoutRequest{UserEmail: "sam@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("checkout status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[inventory.Asset](t, rec).Status; got != inventory.StatusCheckedOut {
		t.Errorf("status = %s, want checked_out", got)
	}

	rec = env.do(t, http.MethodPost, "/api/assets/"+a.ID+"/checkout", inventory.CheckoutRequest{UserEmail: "kim@example.com"})
	if rec.Code != http.StatusConflict {
		t.Errorf("second checkout status = %d, want 409", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/assets/"+a.ID+"/checkin", map[string]string{"notes": "returned"})
	if rec.Code != http.StatusOK {
		t.Fatalf("checkin status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/assets/"+a.ID+"/history", nil)
	if got := len(decodeBody[[]inventory.CheckoutRecord](t, rec)); got != 2 {
		t.Errorf("history = %d records, want 2", got)
	}

	rec = env.do(t, http.MethodPost, "/api/assets/missing/checkin", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown asset status = %d, want 404", rec.Code)
	}
}

func TestNotes(t *testing.T) {
	env := newTestEnv(t, testConfig())
	a := env.asset(t, "LP001")

	rec := env.do(t, http.MethodPost, "/api/assets/"+a.ID+"/notes", map[string]string{"content": "Screen cracked", "author": "Sam"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add note status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodGet, "/api/assets/"+a.ID+"/notes", nil)
	notes := decodeBody[[]inventory.AssetNote](t, rec)
	if len(notes) != 1 || notes[0].Content != "Screen cracked" {
		t.Errorf("notes = %+v", notes)
	}
}

func TestEventManifestCSV(t *testing.T) {
	env := newTestEnv(t, testConfig())
	ctx := context.Background()
	ev, err := env.inv.Inventory().Events.Create(ctx, inventory.Event{Name: "Trade Show"})
	if err != nil {
		t.Fatal(err)
	}
	a := env.asset(t, "CM002")
	if _, err := env.inv.CheckoutAsset(ctx, a.ID, inventory.CheckoutRequest{UserEmail: "sam@example.com", EventID: ev.ID}); err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, http.MethodGet, "/api/events/"+ev.ID+"/manifest?format=csv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "manifest_"+ev.ID+".csv") {
		t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "Asset Name,Asset ID") || !strings.Contains(body, "CM002") {
		t.Errorf("manifest = %q", body)
	}

	rec = env.do(t, http.MethodGet, "/api/events/"+ev.ID+"/manifest", nil)
	m := decodeBody[inventory.Manifest](t, rec)
	if len(m.Entries) != 1 {
		t.Errorf("entries = %d, want 1", len(m.Entries))
	}
}

func TestMassDelete(t *testing.T) {
	env := newTestEnv(t, testConfig())
	for _, id := range []string{"A1", "A2", "A3"} {
		env.asset(t, id)
	}

	rec := env.do(t, http.MethodPost, "/api/assets/mass-delete", map[string]string{"confirm": "delete"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong confirmation status = %d, want 400", rec.Code)
	}
	if got := decodeBody[ErrorResponse](t, rec).Code; got != "VAL004" {
		t.Errorf("code = %s, want VAL004", got)
	}

	rec = env.do(t, http.MethodPost, "/api/assets/mass-delete", map[string]string{"confirm": inventory.MassDeleteConfirmation})
	body := rec.Body.String()
	if !strings.Contains(body, "event: complete") || !strings.Contains(body, `"deleted":3`) {
		t.Errorf("stream = %q", body)
	}
	if strings.Count(body, "event: progress") != 2 {
		t.Errorf("progress events = %d, want 2", strings.Count(body, "event: progress"))
	}
	assets, _ := env.inv.Inventory().Assets.List(context.Background(), "", 0)
	if len(assets) != 0 {
		t.Errorf("assets left = %d", len(assets))
	}
}

func TestAttachmentsDisabled(t *testing.T) {
	env := newTestEnv(t, testConfig())
	a := env.asset(t, "LP001")

	rec := env.do(t, http.MethodGet, "/api/assets/"+a.ID+"/attachments", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if got := decodeBody[ErrorResponse](t, rec).Code; got != "FILE006" {
		t.Errorf("code = %s, want FILE006", got)
	}
}

// =============================================================================
// Middleware wiring
// =============================================================================

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	env := newTestEnv(t, cfg)

	tests := []struct {
		name   string
		path   string
		key    string
		status int
	}{
		{"health exempt", "/healthz", "", http.StatusOK},
		{"missing key", "/api/import/status", "", http.StatusUnauthorized},
		{"wrong key", "/api/import/status", "nope", http.StatusForbidden},
		{"valid key", "/api/import/status", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			env.srv.Router().ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestUploadRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, UploadLimit: 1}
	env := newTestEnv(t, cfg)

	first := env.upload(t, "/api/import/preview", "a.csv", "name,asset_id\nDesk,D1\n")
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d", first.Code)
	}
	second := env.upload(t, "/api/import/preview", "a.csv", "name,asset_id\nDesk,D1\n")
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", second.Code)
	}
}
