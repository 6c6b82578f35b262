package settings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mbeckett/dremelink/internal/services"
	"github.com/mbeckett/dremelink/internal/testutil"
)

func newTestHandler(t *testing.T) (*Handler, *http.ServeMux) {
	t.Helper()
	store := testutil.NewStore(t)
	repo, err := services.NewSQLiteSettingsRepository(context.Background(), store)
	if err != nil {
		t.Fatalf("settings repo: %v", err)
	}
	h := NewHandler(repo, testutil.Logger())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h, mux
}

func TestGetScanSubnetDefault(t *testing.T) {
	_, mux := newTestHandler(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/settings/scan-subnet", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp ScanSubnetResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Subnet != "" {
		t.Errorf("default subnet = %q, want empty", resp.Subnet)
	}
}

func TestSetAndGetScanSubnet(t *testing.T) {
	_, mux := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/settings/scan-subnet",
		strings.NewReader(`{"subnet":"192.168.7"}`))
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("set status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/settings/scan-subnet", nil))
	var resp ScanSubnetResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Subnet != "192.168.7" {
		t.Errorf("subnet = %q, want 192.168.7", resp.Subnet)
	}
}

func TestSetScanSubnetInvalid(t *testing.T) {
	_, mux := newTestHandler(t)

	for _, body := range []string{
		`{"subnet":"192.168.1.0"}`,
		`{"subnet":"not-a-subnet"}`,
		`not json`,
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/settings/scan-subnet",
			strings.NewReader(body))
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestSetScanSubnetClear(t *testing.T) {
	_, mux := newTestHandler(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/settings/scan-subnet",
		strings.NewReader(`{"subnet":"192.168.7"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("set status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/settings/scan-subnet",
		strings.NewReader(`{"subnet":""}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/settings/scan-subnet", nil))
	var resp ScanSubnetResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Subnet != "" {
		t.Errorf("subnet after clear = %q, want empty", resp.Subnet)
	}
}

func TestListSubnets(t *testing.T) {
	_, mux := newTestHandler(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/settings/subnets", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
