package app

import (
	"archive/zip"
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"no3d-library-api/config"
	"no3d-library-api/service"
)

const contentsPrefix = "/repos/node-dojo/library/contents/"

// fakeRepo serves a minimal contents API over an in-memory file tree
type fakeRepo struct {
	mu    sync.Mutex
	files map[string][]byte
}

func blobSHA(content []byte) string {
	sum := sha1.Sum(content)
	return hex.EncodeToString(sum[:])
}

func (f *fakeRepo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := strings.Trim(strings.TrimPrefix(r.URL.Path, contentsPrefix), "/")
	switch r.Method {
	case http.MethodGet:
		if content, ok := f.files[p]; ok {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"name": p[strings.LastIndex(p, "/")+1:], "path": p, "type": "file",
				"sha": blobSHA(content), "size": len(content),
				"content": base64.StdEncoding.EncodeToString(content), "encoding": "base64",
			})
			return
		}
		children := map[string]string{}
		for name := range f.files {
			rest := name
			if p != "" {
				if !strings.HasPrefix(name, p+"/") {
					continue
				}
				rest = strings.TrimPrefix(name, p+"/")
			}
			if i := strings.Index(rest, "/"); i >= 0 {
				children[rest[:i]] = "dir"
			} else {
				children[rest] = "file"
			}
		}
		if len(children) == 0 {
			http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
			return
		}
		items := []map[string]string{}
		for name, kind := range children {
			items = append(items, map[string]string{"name": name, "path": strings.TrimPrefix(p+"/"+name, "/"), "type": kind})
		}
		_ = json.NewEncoder(w).Encode(items)
	case http.MethodPut:
		var req struct {
			Content string `json:"content"`
			SHA     string `json:"sha"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if existing, ok := f.files[p]; ok && req.SHA != blobSHA(existing) {
			http.Error(w, `{"message":"sha mismatch"}`, http.StatusConflict)
			return
		}
		content, _ := base64.StdEncoding.DecodeString(req.Content)
		f.files[p] = content
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeBilling() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/subscriptions/", func(w http.ResponseWriter, r *http.Request) {
		items := []map[string]string{}
		if r.URL.Query().Get("customer_id") == "cus_active" {
			items = append(items, map[string]string{
				"id": "sub_1", "status": "active", "customer_id": "cus_active",
				"current_period_end": "2026-04-01T00:00:00Z",
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items":      items,
			"pagination": map[string]int{"total_count": len(items), "max_page": 1},
		})
	})
	mux.HandleFunc("/v1/customers/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/v1/customers/")
		if id != "cus_active" && id != "cus_lapsed" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "email": id + "@example.com"})
	})
	return mux
}

type testEnv struct {
	app  *App
	repo *fakeRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := &fakeRepo{files: map[string][]byte{
		"catalog.json":                      []byte(`{"version":5,"last_updated":"2026-02-01T00:00:00.000Z","product_count":2}`),
		"README.md":                         []byte("# library"),
		"Dojo Mesh Tools/Bolt/bolt.blend":   []byte("blend-bytes"),
		"Dojo Mesh Tools/Bolt/icon.png":     []byte("png-bytes"),
		"Dojo Mesh Tools/Bolt/notes.txt":    []byte("excluded"),
		"Dojo Mesh Tools/Anvil/anvil.blend": []byte("anvil"),
		"Dojo Shaders/Glass/glass.json":     []byte(`{"ior":1.5}`),
		"Archive/Old/old.blend":             []byte("not a category"),
	}}
	github := httptest.NewServer(repo)
	t.Cleanup(github.Close)
	billing := httptest.NewServer(newFakeBilling())
	t.Cleanup(billing.Close)

	cfg := config.Config{
		Env:                   "test",
		PolarAPIToken:         "polar-token",
		PolarOrgID:            "org_1",
		PolarAPIURL:           billing.URL,
		CatalogBackend:        config.BackendGitHub,
		GitHubToken:           "gh-token",
		GitHubOwner:           "node-dojo",
		GitHubRepo:            "library",
		GitHubBranch:          "main",
		GitHubAPIURL:          github.URL,
		CatalogCategoryPrefix: "Dojo",
		CatalogVersionFile:    "catalog.json",
		GitHubWebhookSecret:   "gh-secret",
		PolarWebhookSecret:    "polar-secret",
		ArchiveCacheTTL:       time.Hour,
		ArchiveBuildTimeout:   time.Minute,
		UpstreamTimeout:       5 * time.Second,
	}

	a, err := Initialize(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return &testEnv{app: a, repo: repo}
}

func (e *testEnv) do(method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.app.Handler.ServeHTTP(rec, req)
	return rec
}

func TestInitializeRejectsInvalidConfig(t *testing.T) {
	_, err := Initialize(t.Context(), config.Config{CatalogBackend: "ftp"})
	assert.Error(t, err)

	_, err = Initialize(t.Context(), config.Config{CatalogBackend: config.BackendGitHub, Env: "production"})
	assert.Error(t, err, "production requires webhook secrets")
}

func TestEntitlementsEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/user/entitlements?customer_id=cus_active", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"user": {"id": "cus_active", "email": "cus_active@example.com", "subscription_tier": "pro_monthly"},
		"entitlements": {"libraries": ["all"], "features": [], "expires_at": "2026-04-01T00:00:00Z"},
		"catalog_version": null
	}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/user/entitlements?customer_id=cus_lapsed", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"user": {"id": "cus_lapsed", "email": "cus_lapsed@example.com", "subscription_tier": null},
		"entitlements": {"libraries": [], "features": [], "expires_at": null},
		"catalog_version": null
	}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/user/entitlements?customer_id=cus_ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/library/download?customer_id=cus_lapsed", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/library/download?customer_id=cus_active", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Equal(t, "5", rec.Header().Get("X-Catalog-Version"))
	assert.Equal(t, `attachment; filename="library-5.zip"`, rec.Header().Get("Content-Disposition"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"Dojo Mesh Tools/Anvil/anvil.blend",
		"Dojo Mesh Tools/Bolt/bolt.blend",
		"Dojo Mesh Tools/Bolt/icon.png",
		"Dojo Shaders/Glass/glass.json",
	}, names)
	assert.True(t, sort.StringsAreSorted(names))

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "blend-bytes", string(content))

	// served from cache: identical bytes
	again := env.do(http.MethodGet, "/library/download?customer_id=cus_active", nil, nil)
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, rec.Body.Bytes(), again.Body.Bytes())
}

func TestCatalogWebhookEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/catalog/version", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":5`)

	push := []byte(`{"ref":"refs/heads/main","after":"def","commits":[{"added":[],"modified":["Dojo Shaders/Glass/glass.json"],"removed":[]}]}`)

	rec = env.do(http.MethodPost, "/webhooks/catalog", push, map[string]string{
		"X-Hub-Signature-256": service.SignPayload(push, "wrong"),
		"X-GitHub-Event":      "push",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/webhooks/catalog", push, map[string]string{
		"X-Hub-Signature-256": service.SignPayload(push, "gh-secret"),
		"X-GitHub-Event":      "push",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/catalog/version", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var version struct {
		Version      int64 `json:"version"`
		ProductCount *int  `json:"productCount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &version))
	assert.Equal(t, int64(6), version.Version)
	require.NotNil(t, version.ProductCount)
	assert.Equal(t, 2, *version.ProductCount)

	env.repo.mu.Lock()
	stored := string(env.repo.files["catalog.json"])
	env.repo.mu.Unlock()
	assert.Contains(t, stored, `"version": 6`)
}

func TestBillingWebhookEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	body := []byte(`{"type":"subscription.canceled","data":{"id":"sub_1","customer_id":"cus_active"}}`)

	rec := env.do(http.MethodPost, "/webhooks/billing", body, map[string]string{
		"X-Signature": service.SignPayload(body, "polar-secret"),
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/webhooks/billing", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOperationalRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/ping", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "no3d_library_http_requests_total")
}
