package models

import "time"

// Artifact is a built library archive. It is replaced wholesale on rebuild and never
// mutated after construction.
type Artifact struct {
	Bytes        []byte
	Version      CatalogVersion
	BuiltAt      time.Time
	SHA256       string
	ProductCount int
	FileCount    int
	SkippedCount int
}

// Size returns the archive length in bytes
func (a *Artifact) Size() int {
	return len(a.Bytes)
}
