package models

// EntryType distinguishes files from directories in a catalog listing
type EntryType string

const (
	EntryTypeFile EntryType = "file"
	EntryTypeDir  EntryType = "dir"
)

// CatalogEntry is one item returned by a catalog directory listing
type CatalogEntry struct {
	Name string    `json:"name"`
	Path string    `json:"path"`
	Type EntryType `json:"type"`
}

// IsDir reports whether the entry is a directory
func (e CatalogEntry) IsDir() bool {
	return e.Type == EntryTypeDir
}

// CatalogFile holds the raw bytes of a catalog file plus the host's revision token
// (a git blob sha or a Drive file version) used for conditional writes.
type CatalogFile struct {
	Path     string
	Content  []byte
	Revision string
}

// Product is a catalog directory whose eligible files ship in the library archive
type Product struct {
	Category string   `json:"category"`
	Name     string   `json:"name"`
	Files    []string `json:"files"`
}

// Path returns the catalog-relative directory of the product
func (p Product) Path() string {
	return p.Category + "/" + p.Name
}

// CatalogVersion is the version payload served to storefront clients
type CatalogVersion struct {
	Version      int64  `json:"version"`
	LastUpdated  string `json:"lastUpdated"`
	ProductCount *int   `json:"productCount"`
}

// CatalogRecord is the on-host representation of the version file (catalog.json).
// Both snake_case and camelCase keys are accepted when reading.
type CatalogRecord struct {
	Version           *int64 `json:"version,omitempty"`
	LastUpdated       string `json:"last_updated,omitempty"`
	LastUpdatedCamel  string `json:"lastUpdated,omitempty"`
	ProductCount      *int   `json:"product_count"`
	ProductCountCamel *int   `json:"productCount,omitempty"`
}

// ToVersion converts the record to the served shape, defaulting version to 1
func (r CatalogRecord) ToVersion() CatalogVersion {
	v := CatalogVersion{Version: 1, LastUpdated: r.LastUpdated, ProductCount: r.ProductCount}
	if r.Version != nil {
		v.Version = *r.Version
	}
	if v.LastUpdated == "" {
		v.LastUpdated = r.LastUpdatedCamel
	}
	if v.ProductCount == nil {
		v.ProductCount = r.ProductCountCamel
	}
	return v
}
