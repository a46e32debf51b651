package utils

import (
	"path"
	"strings"
)

// AllowedExtensions lists the file types that ship in the library archive
var AllowedExtensions = map[string]bool{
	".blend": true,
	".json":  true,
	".png":   true,
	".jpg":   true,
	".jpeg":  true,
	".mp4":   true,
	".md":    true,
}

// HasAllowedExtension reports whether a file name ends with an allow-listed extension.
// The comparison is case-insensitive so "Render.PNG" ships like "render.png".
func HasAllowedExtension(name string) bool {
	return AllowedExtensions[strings.ToLower(path.Ext(name))]
}

// JoinCatalogPath joins slash-separated catalog path parts, skipping empty ones
func JoinCatalogPath(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

// SplitCatalogPath splits "a/b/c" into "a/b" and "c"
func SplitCatalogPath(p string) (string, string) {
	p = strings.Trim(p, "/")
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

// MentionsCategory reports whether any path contains the category marker anywhere,
// so "Dojo-Widget/file.json" and "assets/MyDojoIcon.png" both count
func MentionsCategory(paths []string, marker string) bool {
	for _, p := range paths {
		if strings.Contains(p, marker) {
			return true
		}
	}
	return false
}
