package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"no3d-library-api/models"
)

// driveUpload is one media upload received by the fixture
type driveUpload struct {
	Method string
	Path   string
	Body   string
}

type driveUploads struct {
	mu      sync.Mutex
	uploads []driveUpload
}

func (u *driveUploads) all() []driveUpload {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]driveUpload(nil), u.uploads...)
}

// writeNamedChild answers a name-filtered Files.List from a full listing
func writeNamedChild(w http.ResponseWriter, listing, name string) {
	var parsed struct {
		Files []map[string]interface{} `json:"files"`
	}
	_ = json.Unmarshal([]byte(listing), &parsed)
	matches := []map[string]interface{}{}
	for _, f := range parsed.Files {
		if f["name"] == name {
			matches = append(matches, f)
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"files": matches})
}

// newDriveTestClient answers Files.List queries from a parent -> children table,
// downloads by file id and records uploads
func newDriveTestClient(t *testing.T, children map[string]string, downloads map[string]string) (*DriveCatalogClient, *driveUploads) {
	t.Helper()
	uploads := &driveUploads{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/upload/"):
			body, _ := io.ReadAll(r.Body)
			uploads.mu.Lock()
			uploads.uploads = append(uploads.uploads, driveUpload{Method: r.Method, Path: r.URL.Path, Body: string(body)})
			uploads.mu.Unlock()
			w.Write([]byte(`{"id":"uploaded","name":"uploaded","version":"1"}`))
		case strings.HasSuffix(r.URL.Path, "/files") && r.Method == http.MethodGet:
			q := r.URL.Query().Get("q")
			for parent, body := range children {
				if strings.HasPrefix(q, "'"+parent+"' in parents") {
					if i := strings.Index(q, "name='"); i >= 0 {
						writeNamedChild(w, body, q[i+6:len(q)-1])
						return
					}
					w.Write([]byte(body))
					return
				}
			}
			w.Write([]byte(`{"files":[]}`))
		case strings.Contains(r.URL.Path, "/files/") && r.URL.Query().Get("alt") == "media":
			id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
			if content, ok := downloads[id]; ok {
				w.Write([]byte(content))
				return
			}
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":404,"message":"not found"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := NewDriveCatalogClient(context.Background(), "root",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return client, uploads
}

func TestDriveListDirectory(t *testing.T) {
	client, _ := newDriveTestClient(t, map[string]string{
		"root": `{"files":[
			{"id":"f1","name":"Dojo-Tools","mimeType":"application/vnd.google-apps.folder"},
			{"id":"f2","name":"catalog.json","mimeType":"application/json","version":"7"},
			{"id":"f3","name":"Notes","mimeType":"application/vnd.google-apps.document"}
		]}`,
	}, nil)

	entries, err := client.ListDirectory(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []models.CatalogEntry{
		{Name: "Dojo-Tools", Path: "Dojo-Tools", Type: models.EntryTypeDir},
		{Name: "catalog.json", Path: "catalog.json", Type: models.EntryTypeFile},
	}, entries)
}

func TestDriveReadFile(t *testing.T) {
	client, _ := newDriveTestClient(t, map[string]string{
		"root": `{"files":[{"id":"f2","name":"catalog.json","mimeType":"application/json","version":"7"}]}`,
	}, map[string]string{"f2": `{"version":3}`})

	file, err := client.ReadFile(context.Background(), "catalog.json")
	require.NoError(t, err)
	assert.Equal(t, `{"version":3}`, string(file.Content))
	assert.Equal(t, "7", file.Revision)

	_, err = client.ReadFile(context.Background(), "missing.json")
	assert.True(t, errors.Is(err, ErrNotFound))
}

var driveWriteTree = map[string]string{
	"root": `{"files":[
		{"id":"f1","name":"Dojo-Tools","mimeType":"application/vnd.google-apps.folder"},
		{"id":"f2","name":"catalog.json","mimeType":"application/json","version":"7"}
	]}`,
	"f1": `{"files":[]}`,
}

func TestDriveWriteFileUpdatesMatchingRevision(t *testing.T) {
	client, uploads := newDriveTestClient(t, driveWriteTree, nil)

	err := client.WriteFile(context.Background(), "catalog.json", []byte(`{"version":8}`), "7", "Update catalog version to 8")
	require.NoError(t, err)

	got := uploads.all()
	require.Len(t, got, 1)
	assert.Equal(t, http.MethodPatch, got[0].Method)
	assert.Equal(t, "/upload/drive/v3/files/f2", got[0].Path)
	assert.Contains(t, got[0].Body, `{"version":8}`)
	assert.Contains(t, got[0].Body, "Update catalog version to 8")
}

func TestDriveWriteFileUnconditionalUpdate(t *testing.T) {
	client, uploads := newDriveTestClient(t, driveWriteTree, nil)

	require.NoError(t, client.WriteFile(context.Background(), "catalog.json", []byte("{}"), "", "overwrite"))
	got := uploads.all()
	require.Len(t, got, 1)
	assert.Equal(t, http.MethodPatch, got[0].Method)
}

func TestDriveWriteFileCreatesInParent(t *testing.T) {
	client, uploads := newDriveTestClient(t, driveWriteTree, nil)

	err := client.WriteFile(context.Background(), "Dojo-Tools/meta.json", []byte(`{"name":"tools"}`), "", "add meta")
	require.NoError(t, err)

	got := uploads.all()
	require.Len(t, got, 1)
	assert.Equal(t, http.MethodPost, got[0].Method)
	assert.Equal(t, "/upload/drive/v3/files", got[0].Path)
	assert.Contains(t, got[0].Body, `"parents":["f1"]`)
	assert.Contains(t, got[0].Body, `"name":"meta.json"`)
	assert.Contains(t, got[0].Body, `{"name":"tools"}`)
}

func TestDriveWriteFileConflicts(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		revision string
	}{
		{name: "stale revision", path: "catalog.json", revision: "6"},
		{name: "revision for missing file", path: "Dojo-Tools/meta.json", revision: "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, uploads := newDriveTestClient(t, driveWriteTree, nil)

			err := client.WriteFile(context.Background(), tt.path, []byte("{}"), tt.revision, "conflicting write")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConflict))
			assert.Empty(t, uploads.all())
		})
	}
}

func TestDriveWriteFileMissingParent(t *testing.T) {
	client, uploads := newDriveTestClient(t, driveWriteTree, nil)

	err := client.WriteFile(context.Background(), "Dojo-Missing/meta.json", []byte("{}"), "", "add meta")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Empty(t, uploads.all())
}
