package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"

	"no3d-library-api/models"
	"no3d-library-api/obs"
	"no3d-library-api/utils"
)

// archiveEntryTime is stamped on every entry so identical catalogs give identical bytes.
// 1980-01-01 is the earliest time the zip DOS date format represents.
var archiveEntryTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// ArtifactBuilderInterface defines the contract for building the library archive
type ArtifactBuilderInterface interface {
	Build(ctx context.Context) (*models.Artifact, error)
}

// ArtifactBuilder walks the catalog and packs every eligible product file into a zip.
// It holds no mutable state, so an abandoned build leaves nothing behind.
type ArtifactBuilder struct {
	catalog        CatalogClientInterface
	versions       CatalogVersionServiceInterface
	categoryPrefix string
	now            func() time.Time
}

// NewArtifactBuilder creates a new ArtifactBuilder
func NewArtifactBuilder(catalog CatalogClientInterface, versions CatalogVersionServiceInterface, categoryPrefix string) *ArtifactBuilder {
	return &ArtifactBuilder{
		catalog:        catalog,
		versions:       versions,
		categoryPrefix: categoryPrefix,
		now:            time.Now,
	}
}

// Ensure ArtifactBuilder implements ArtifactBuilderInterface
var _ ArtifactBuilderInterface = (*ArtifactBuilder)(nil)

// WithClock overrides the time source
func (b *ArtifactBuilder) WithClock(now func() time.Time) *ArtifactBuilder {
	b.now = now
	return b
}

func sortEntries(entries []models.CatalogEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
}

// listProducts enumerates category directories and their product directories.
// Only the top-level listing is fatal; any other failure skips that subtree.
func (b *ArtifactBuilder) listProducts(ctx context.Context) ([]models.Product, int, error) {
	root, err := b.catalog.ListDirectory(ctx, "")
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	sortEntries(root)

	var products []models.Product
	skipped := 0
	for _, category := range root {
		if !category.IsDir() || !strings.HasPrefix(category.Name, b.categoryPrefix) {
			continue
		}

		children, err := b.catalog.ListDirectory(ctx, category.Name)
		if err != nil {
			obs.Logger.Warn("archive_category_skipped", "category", category.Name, "error", err)
			skipped++
			continue
		}
		sortEntries(children)

		for _, productDir := range children {
			if !productDir.IsDir() {
				continue
			}
			product := models.Product{Category: category.Name, Name: productDir.Name}

			files, err := b.catalog.ListDirectory(ctx, product.Path())
			if err != nil {
				obs.Logger.Warn("archive_product_skipped", "product", product.Path(), "error", err)
				skipped++
				continue
			}
			sortEntries(files)

			for _, file := range files {
				if file.Type == models.EntryTypeFile && utils.HasAllowedExtension(file.Name) {
					product.Files = append(product.Files, file.Name)
				}
			}
			products = append(products, product)
		}
	}
	return products, skipped, nil
}

// Build produces the complete archive in memory. Entries are named
// <category>/<product>/<file> and sorted by name at every level.
func (b *ArtifactBuilder) Build(ctx context.Context) (*models.Artifact, error) {
	started := b.now()
	version := b.versions.Current(ctx)

	products, skipped, err := b.listProducts(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("archive build abandoned: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	fileCount := 0
	productCount := 0
	for _, product := range products {
		written := 0
		for _, name := range product.Files {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("archive build abandoned: %w", err)
			}

			entryPath := utils.JoinCatalogPath(product.Path(), name)
			file, err := b.catalog.ReadFile(ctx, entryPath)
			if err != nil {
				obs.Logger.Warn("archive_file_skipped", "path", entryPath, "error", err)
				skipped++
				continue
			}

			w, err := zw.CreateHeader(&zip.FileHeader{
				Name:     entryPath,
				Method:   zip.Deflate,
				Modified: archiveEntryTime,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create archive entry %s: %w", entryPath, err)
			}
			if _, err := w.Write(file.Content); err != nil {
				return nil, fmt.Errorf("failed to write archive entry %s: %w", entryPath, err)
			}
			written++
		}
		if written > 0 {
			productCount++
			fileCount += written
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	artifact := &models.Artifact{
		Bytes:        buf.Bytes(),
		Version:      version,
		BuiltAt:      b.now(),
		SHA256:       hex.EncodeToString(sum[:]),
		ProductCount: productCount,
		FileCount:    fileCount,
		SkippedCount: skipped,
	}

	obs.Logger.Info("archive_built",
		"version", version.Version,
		"products", productCount,
		"files", fileCount,
		"skipped", skipped,
		"bytes", artifact.Size(),
		"duration_ms", b.now().Sub(started).Milliseconds(),
	)
	return artifact, nil
}
