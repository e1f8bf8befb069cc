package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/markstur/caikit/internal/backends"
	"github.com/markstur/caikit/internal/modelmgmt"
	"github.com/markstur/caikit/internal/modules"
	"github.com/markstur/caikit/internal/modules/sample"
	"github.com/markstur/caikit/pkg/types"
)

// newTestServer wires a real manager behind the mux, the way main does.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := backends.NewRegistry()
	if err := sample.Register(reg); err != nil {
		t.Fatalf("register sample: %v", err)
	}
	loader, err := modelmgmt.NewLoader(reg, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	mgr := modelmgmt.NewManager(loader, zerolog.Nop())
	srv := httptest.NewServer(NewMux(mgr))
	t.Cleanup(func() {
		srv.Close()
		mgr.Close()
	})
	return srv
}

func sampleModelDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "greeter")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := modules.WriteConfig(dir, map[string]any{
		"model_type":      sample.ModelType,
		"greeting_prefix": "Hi",
	}); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestLoadPredictUnloadRoundtrip(t *testing.T) {
	srv := newTestServer(t)
	dir := sampleModelDir(t)

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/models/greeter", types.LoadRequest{Path: dir})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("load status = %d, body %s", resp.StatusCode, body)
	}
	var info types.ModelInfo
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("unmarshal load response: %v", err)
	}
	if info.ID != "greeter" || info.ModelType != sample.ModelType || info.Backend != string(backends.KindLocal) {
		t.Fatalf("unexpected model info: %+v", info)
	}
	if info.SizeBytes <= 0 {
		t.Fatalf("expected sized model, got %d bytes", info.SizeBytes)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/models/greeter/predict",
		types.PredictRequest{Inputs: map[string]any{"name": "world"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("predict status = %d, body %s", resp.StatusCode, body)
	}
	var pr types.PredictResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		t.Fatalf("unmarshal predict response: %v", err)
	}
	if got := pr.Outputs["greeting"]; got != "Hi world" {
		t.Fatalf("greeting = %v, want Hi world", got)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/models", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/models/greeter", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unload status = %d, body %s", resp.StatusCode, body)
	}
	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/models/greeter", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second unload status = %d, body %s", resp.StatusCode, body)
	}
}

func TestLoadWithBackendOverride(t *testing.T) {
	srv := newTestServer(t)
	dir := sampleModelDir(t)

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/models/mocked",
		types.LoadRequest{Path: dir, Backend: string(backends.KindMock)})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("load status = %d, body %s", resp.StatusCode, body)
	}
	var info types.ModelInfo
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if info.Backend != string(backends.KindMock) {
		t.Fatalf("backend = %q, want %q", info.Backend, backends.KindMock)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/models/mocked/predict",
		types.PredictRequest{Inputs: map[string]any{"name": "there"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("predict status = %d, body %s", resp.StatusCode, body)
	}
	var pr types.PredictResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := pr.Outputs["backend"]; got != string(backends.KindMock) {
		t.Fatalf("backend tag = %v, want %q", got, backends.KindMock)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	srv := newTestServer(t)
	dir := sampleModelDir(t)

	// Missing path is a client error before the core is consulted.
	resp, body := doJSON(t, http.MethodPut, srv.URL+"/models/x", types.LoadRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty path status = %d, body %s", resp.StatusCode, body)
	}

	// A nonexistent artifact path maps to 404.
	resp, body = doJSON(t, http.MethodPut, srv.URL+"/models/x",
		types.LoadRequest{Path: filepath.Join(dir, "nope")})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing artifact status = %d, body %s", resp.StatusCode, body)
	}
	var apiErr types.ErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if apiErr.Code != http.StatusNotFound || apiErr.Error == "" {
		t.Fatalf("unexpected error payload: %+v", apiErr)
	}

	// Predicting against an unknown model maps to 404.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/models/ghost/predict",
		types.PredictRequest{Inputs: map[string]any{}})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown model status = %d, body %s", resp.StatusCode, body)
	}

	// Duplicate ids conflict.
	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/models/dup", types.LoadRequest{Path: dir})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first load status = %d", resp.StatusCode)
	}
	resp, body = doJSON(t, http.MethodPut, srv.URL+"/models/dup", types.LoadRequest{Path: dir})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate load status = %d, body %s", resp.StatusCode, body)
	}
}

func TestContentTypeRequired(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/models/x", bytes.NewReader([]byte(`{"path":"p"}`)))
	req.Header.Set("Content-Type", "text/plain")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", resp.StatusCode)
	}
}

func TestHealthAndStatusEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d", path, resp.StatusCode)
		}
	}

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status endpoint = %d", resp.StatusCode)
	}
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if !st.Ready || st.ModelCount != 0 {
		t.Fatalf("unexpected status: %+v", st)
	}
}
