// Package filestore is the document storage collaborator. The core hands it a
// binary and keeps only the opaque location it returns.
package filestore

import (
	"context"
	"encoding/hex"
	"path"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Object describes a stored binary.
type Object struct {
	Location string
	Checksum string
	Size     int64
}

// Storage persists and removes binaries.
type Storage interface {
	Put(ctx context.Context, pathHint string, content []byte, contentType string) (Object, error)
	Delete(ctx context.Context, location string) error
}

// Checksum is the hex BLAKE2b-256 digest of content.
func Checksum(content []byte) string {
	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:])
}

var extensions = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
}

// objectKey joins a sanitized hint with a content-addressed file name.
func objectKey(pathHint, checksum, contentType string) string {
	var parts []string
	for _, seg := range strings.Split(pathHint, "/") {
		seg = strings.TrimSpace(seg)
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		parts = append(parts, seg)
	}
	parts = append(parts, checksum[:32]+extensions[contentType])
	return path.Join(parts...)
}
