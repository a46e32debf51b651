package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"no3d-library-api/models"
	"no3d-library-api/utils"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	driveFolderMimeType = "application/vnd.google-apps.folder"
	driveNativePrefix   = "application/vnd.google-apps."
	driveFileFields     = "nextPageToken, files(id, name, mimeType, version)"
)

var driveQueryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// DriveCatalogClient serves the catalog from a Google Drive folder tree.
// Catalog paths are resolved by folder names below rootFolderID.
// Implements CatalogClientInterface
type DriveCatalogClient struct {
	client       *drive.Service
	rootFolderID string
}

// NewDriveCatalogClient creates a new DriveCatalogClient.
// Pass option.WithCredentialsFile for a Service Account JSON file.
func NewDriveCatalogClient(ctx context.Context, rootFolderID string, opts ...option.ClientOption) (*DriveCatalogClient, error) {
	driveService, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &DriveCatalogClient{
		client:       driveService,
		rootFolderID: rootFolderID,
	}, nil
}

// Ensure DriveCatalogClient implements CatalogClientInterface
var _ CatalogClientInterface = (*DriveCatalogClient)(nil)

// wrapDriveError maps googleapi errors onto the service error taxonomy
func wrapDriveError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("drive %s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("drive %s: %w: %v", op, ErrUpstreamUnavailable, err)
}

// listChildren lists every non-trashed child of a folder, following pagination
func (ds *DriveCatalogClient) listChildren(ctx context.Context, folderID, name string) ([]*drive.File, error) {
	query := fmt.Sprintf("'%s' in parents and trashed=false", driveQueryEscaper.Replace(folderID))
	if name != "" {
		query += fmt.Sprintf(" and name='%s'", driveQueryEscaper.Replace(name))
	}

	var allFiles []*drive.File
	pageToken := ""
	for {
		call := ds.client.Files.List().
			Q(query).
			Fields(driveFileFields).
			Context(ctx)

		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		r, err := call.Do()
		if err != nil {
			return nil, wrapDriveError("list "+folderID, err)
		}

		allFiles = append(allFiles, r.Files...)
		pageToken = r.NextPageToken

		if pageToken == "" {
			break
		}
	}
	return allFiles, nil
}

// resolve walks the path from the root folder and returns the final item.
// The root itself resolves to a synthetic folder entry.
func (ds *DriveCatalogClient) resolve(ctx context.Context, path string) (*drive.File, error) {
	current := &drive.File{Id: ds.rootFolderID, MimeType: driveFolderMimeType}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return current, nil
	}

	for _, segment := range strings.Split(trimmed, "/") {
		if current.MimeType != driveFolderMimeType {
			return nil, fmt.Errorf("drive path %q: %w", path, ErrNotFound)
		}
		matches, err := ds.listChildren(ctx, current.Id, segment)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("drive path %q: %w", path, ErrNotFound)
		}
		current = matches[0]
	}
	return current, nil
}

// ListDirectory lists files and folders under path
func (ds *DriveCatalogClient) ListDirectory(ctx context.Context, path string) ([]models.CatalogEntry, error) {
	folder, err := ds.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	if folder.MimeType != driveFolderMimeType {
		return nil, fmt.Errorf("drive path %q is not a folder", path)
	}

	files, err := ds.listChildren(ctx, folder.Id, "")
	if err != nil {
		return nil, err
	}

	prefix := strings.Trim(path, "/")
	entries := make([]models.CatalogEntry, 0, len(files))
	for _, file := range files {
		entry := models.CatalogEntry{Name: file.Name, Path: utils.JoinCatalogPath(prefix, file.Name)}
		switch {
		case file.MimeType == driveFolderMimeType:
			entry.Type = models.EntryTypeDir
		case strings.HasPrefix(file.MimeType, driveNativePrefix):
			// Docs, Sheets and shortcuts have no downloadable bytes
			continue
		default:
			entry.Type = models.EntryTypeFile
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ReadFile downloads a file; the revision is the Drive file version
func (ds *DriveCatalogClient) ReadFile(ctx context.Context, path string) (*models.CatalogFile, error) {
	file, err := ds.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	if file.MimeType == driveFolderMimeType {
		return nil, fmt.Errorf("drive path %q is a folder", path)
	}

	resp, err := ds.client.Files.Get(file.Id).Context(ctx).Download()
	if err != nil {
		return nil, wrapDriveError("download "+path, err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read drive file %q: %w: %v", path, ErrUpstreamUnavailable, err)
	}

	return &models.CatalogFile{
		Path:     path,
		Content:  content,
		Revision: strconv.FormatInt(file.Version, 10),
	}, nil
}

// WriteFile updates an existing file or creates it in its parent folder.
// The version check and the update are two calls, so the conditional write
// narrows but does not close the race window.
func (ds *DriveCatalogClient) WriteFile(ctx context.Context, path string, content []byte, expectedRevision, message string) error {
	trimmed := strings.Trim(path, "/")
	parentPath, name := utils.SplitCatalogPath(trimmed)

	existing, err := ds.resolve(ctx, trimmed)
	switch {
	case err == nil:
		if expectedRevision != "" && strconv.FormatInt(existing.Version, 10) != expectedRevision {
			return fmt.Errorf("drive write %q: %w", path, ErrConflict)
		}
		_, err = ds.client.Files.Update(existing.Id, &drive.File{Description: message}).
			Media(bytes.NewReader(content)).
			Context(ctx).
			Do()
		if err != nil {
			return wrapDriveError("update "+path, err)
		}
		return nil

	case errors.Is(err, ErrNotFound):
		if expectedRevision != "" {
			return fmt.Errorf("drive write %q: %w", path, ErrConflict)
		}
		parent, err := ds.resolve(ctx, parentPath)
		if err != nil {
			return err
		}
		_, err = ds.client.Files.Create(&drive.File{Name: name, Parents: []string{parent.Id}, Description: message}).
			Media(bytes.NewReader(content)).
			Context(ctx).
			Do()
		if err != nil {
			return wrapDriveError("create "+path, err)
		}
		return nil

	default:
		return err
	}
}
