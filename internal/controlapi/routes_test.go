package controlapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gamergamma/internal/controlapi"
	"gamergamma/internal/dispatch"
	"gamergamma/internal/history"
	"gamergamma/internal/hotkeys"
	"gamergamma/internal/inventory"
	"gamergamma/internal/preset"
	"gamergamma/internal/sessionlog"
)

type fakeService struct {
	mu        sync.Mutex
	doc       preset.Document
	applied   []string
	restored  []int
	updateErr error
	captured  int
}

func newFakeService() *fakeService {
	return &fakeService{doc: preset.DefaultDocument()}
}

func (f *fakeService) Status() controlapi.Status {
	return controlapi.Status{
		Version:  "test",
		Messages: []string{"Vibrance disabled: nvibrant not found."},
		Bindings: map[string]string{"1": "alt+1"},
	}
}

func (f *fakeService) Document() preset.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.Clone()
}

func (f *fakeService) UpdatePreset(_ context.Context, id string, p preset.Preset) (preset.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.doc.Clone(), f.updateErr
	}
	if _, ok := f.doc.Presets[id]; !ok {
		return f.doc.Clone(), fmt.Errorf("%w: %q", preset.ErrUnknownPreset, id)
	}
	f.doc.Presets[id] = p
	return f.doc.Clone(), nil
}

func (f *fakeService) ApplyPreset(_ context.Context, id, source string) (dispatch.ApplyRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.doc.Presets[id]
	if !ok {
		return dispatch.ApplyRequest{}, fmt.Errorf("%w: %q", preset.ErrUnknownPreset, id)
	}
	f.applied = append(f.applied, id+"/"+source)
	return dispatch.RequestFor(id, p, preset.UnknownLimits()), nil
}

func (f *fakeService) Monitors(context.Context) []inventory.Monitor {
	return []inventory.Monitor{{Index: 1, Name: "DELL U2720Q"}}
}

func (f *fakeService) Limits(display int) preset.Limits {
	l := preset.UnknownLimits()
	if display == 1 {
		l.VibranceMax = 200
	}
	return l
}

func (f *fakeService) CaptureBaseline(_ context.Context, display int) (preset.MonitorBaseline, bool, error) {
	f.captured = display
	v := 80
	return preset.MonitorBaseline{Name: "DELL U2720Q", Brightness: &v}, true, nil
}

func (f *fakeService) Restore(_ context.Context, display int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored = append(f.restored, display)
	return nil
}

func (f *fakeService) History(_ context.Context, limit int) ([]history.Entry, error) {
	return []history.Entry{{ID: "h1", Kind: "apply", Source: "hotkey", PresetID: "1", Display: limit}}, nil
}

func (f *fakeService) RecentLog(limit int) []sessionlog.Entry {
	return []sessionlog.Entry{{Time: time.Unix(0, 0), Level: "WARN", Message: fmt.Sprintf("limit=%d", limit)}}
}

func newTestServer(t *testing.T, svc controlapi.Service) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(controlapi.RegisterRoutes(svc, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func TestRoutesStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{name: "status", method: http.MethodGet, path: "/api/status", wantStatus: http.StatusOK, wantBody: "nvibrant not found"},
		{name: "presets", method: http.MethodGet, path: "/api/presets", wantStatus: http.StatusOK, wantBody: `"alt+1"`},
		{name: "apply known", method: http.MethodPost, path: "/api/presets/2/apply", wantStatus: http.StatusAccepted, wantBody: `"preset_id":"2"`},
		{name: "apply unknown", method: http.MethodPost, path: "/api/presets/9/apply", wantStatus: http.StatusNotFound, wantBody: "unknown preset"},
		{name: "update bad json", method: http.MethodPut, path: "/api/presets/1", body: "not-json", wantStatus: http.StatusBadRequest},
		{name: "update unknown field", method: http.MethodPut, path: "/api/presets/1", body: `{"colour":1}`, wantStatus: http.StatusBadRequest},
		{name: "update unknown preset", method: http.MethodPut, path: "/api/presets/7", body: `{"display":1}`, wantStatus: http.StatusNotFound},
		{name: "monitors", method: http.MethodGet, path: "/api/monitors", wantStatus: http.StatusOK, wantBody: "DELL U2720Q"},
		{name: "limits", method: http.MethodGet, path: "/api/monitors/1/limits", wantStatus: http.StatusOK, wantBody: `"vibrance_max":200`},
		{name: "limits bad display", method: http.MethodGet, path: "/api/monitors/0/limits", wantStatus: http.StatusBadRequest},
		{name: "baseline", method: http.MethodPost, path: "/api/monitors/2/baseline", wantStatus: http.StatusOK, wantBody: `"stored":true`},
		{name: "restore", method: http.MethodPost, path: "/api/monitors/1/restore", wantStatus: http.StatusAccepted},
		{name: "restore bad display", method: http.MethodPost, path: "/api/monitors/x/restore", wantStatus: http.StatusBadRequest},
		{name: "history default limit", method: http.MethodGet, path: "/api/history", wantStatus: http.StatusOK, wantBody: `"display":50`},
		{name: "history capped limit", method: http.MethodGet, path: "/api/history?limit=99999", wantStatus: http.StatusOK, wantBody: `"display":1000`},
		{name: "history bad limit", method: http.MethodGet, path: "/api/history?limit=-1", wantStatus: http.StatusBadRequest},
		{name: "log", method: http.MethodGet, path: "/api/log?limit=5", wantStatus: http.StatusOK, wantBody: "limit=5"},
		{name: "events mounted", method: http.MethodGet, path: "/api/events", wantStatus: http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, newFakeService())
			resp, body := do(t, tt.method, srv.URL+tt.path, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tt.wantStatus, body)
			}
			if tt.wantBody != "" && !strings.Contains(string(body), tt.wantBody) {
				t.Fatalf("body = %s, want substring %s", body, tt.wantBody)
			}
		})
	}
}

func TestPutPresetUpdatesDocument(t *testing.T) {
	svc := newFakeService()
	srv := newTestServer(t, svc)

	resp, body := do(t, http.MethodPut, srv.URL+"/api/presets/3",
		`{"display":2,"gamma":90,"vibrance":300,"vibrance_mode":"vendor","hotkey":"alt+f3"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var doc preset.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := doc.Presets["3"]; got.Display != 2 || got.Hotkey != "alt+f3" {
		t.Fatalf("preset 3 = %+v", got)
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "invalid binding", err: fmt.Errorf("preset 1: %w", hotkeys.ErrInvalidBinding), wantStatus: http.StatusUnprocessableEntity},
		{name: "persistence", err: fmt.Errorf("%w: disk full", preset.ErrPersistence), wantStatus: http.StatusInternalServerError},
		{name: "validation", err: fmt.Errorf("display must be positive"), wantStatus: http.StatusBadRequest},
		{name: "out of range", err: fmt.Errorf("%w: preset \"1\" gamma 999 not in [0, 255]", preset.ErrOutOfRange), wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			svc.updateErr = tt.err
			srv := newTestServer(t, svc)
			resp, body := do(t, http.MethodPut, srv.URL+"/api/presets/1", `{"display":1}`)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tt.wantStatus, body)
			}
		})
	}
}
