package objectstore

import (
	"mime"
	"path"
	"regexp"
	"strings"
)

var (
	whitespace   = regexp.MustCompile(`\s`)
	unsafeInName = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)
	unsafeInExt  = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// SanitizeKey makes the last path segment of key URL safe: whitespace
// becomes "_", and characters outside [A-Za-z0-9_-] are removed from the
// base name. The extension is kept. SanitizeKey(SanitizeKey(k)) ==
// SanitizeKey(k).
func SanitizeKey(key string) string {
	dir, file := path.Split(whitespace.ReplaceAllString(key, "_"))

	ext := path.Ext(file)
	base := strings.TrimSuffix(file, ext)

	base = unsafeInName.ReplaceAllString(base, "")
	if base == "" {
		base = "file"
	}
	if ext != "" {
		ext = unsafeInExt.ReplaceAllString(ext[1:], "")
		if ext != "" {
			ext = "." + ext
		}
	}
	return dir + base + ext
}

// ContentType derives the MIME type from the key's extension, falling back
// to application/<ext>.
func ContentType(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ext == "" {
		return "application/octet-stream"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/" + ext[1:]
}
