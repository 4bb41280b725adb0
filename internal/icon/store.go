// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

// Package icon stores user avatar images on the local filesystem.
// Uploads are sniffed by content, never trusted by extension.
package icon

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MaxIconBytes caps a single upload.
const MaxIconBytes = 1 << 20

// allowed maps accepted MIME types to the stored file extension.
var allowed = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store reads and writes icons under a single base directory. Files are
// named by the owner's account ID, so an upload replaces the previous icon.
type Store struct {
	dir string
}

// NewStore creates the base directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, oops.Code("ICON_STORE_INVALID").Errorf("directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, oops.Code("ICON_STORE_INVALID").
			With("dir", dir).
			Wrap(err)
	}
	return &Store{dir: dir}, nil
}

// Save validates and stores an icon for the given account, replacing any
// previous one. Returns the detected MIME type.
func (s *Store) Save(ownerID ulid.ULID, r io.Reader) (string, error) {
	// Read one byte past the cap to detect oversized uploads.
	data, err := io.ReadAll(io.LimitReader(r, MaxIconBytes+1))
	if err != nil {
		return "", oops.Code("ICON_SAVE_FAILED").
			With("operation", "read upload").
			Wrap(err)
	}
	if len(data) == 0 {
		return "", oops.Code("ICON_INVALID").Errorf("upload is empty")
	}
	if len(data) > MaxIconBytes {
		return "", oops.Code("ICON_TOO_LARGE").
			Errorf("icon exceeds %d bytes", MaxIconBytes)
	}

	mtype := mimetype.Detect(data)
	ext, ok := allowed[mtype.String()]
	if !ok {
		return "", oops.Code("ICON_UNSUPPORTED_TYPE").
			With("detected", mtype.String()).
			Errorf("unsupported image type")
	}

	// Drop any stale icon with a different extension before writing.
	s.removeAll(ownerID)

	path := filepath.Join(s.dir, ownerID.String()+ext)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", oops.Code("ICON_SAVE_FAILED").
			With("operation", "write icon").
			With("path", path).
			Wrap(err)
	}
	return mtype.String(), nil
}

// Open returns the icon bytes and MIME type for an account, or
// ICON_NOT_FOUND when no icon has been uploaded.
func (s *Store) Open(ownerID ulid.ULID) ([]byte, string, error) {
	for mime, ext := range allowed {
		path := filepath.Join(s.dir, ownerID.String()+ext)
		data, err := os.ReadFile(path)
		if err == nil {
			return data, mime, nil
		}
		if !os.IsNotExist(err) {
			return nil, "", oops.Code("ICON_OPEN_FAILED").
				With("path", path).
				Wrap(err)
		}
	}
	return nil, "", oops.Code("ICON_NOT_FOUND").
		With("owner", ownerID.String()).
		Errorf("no icon for account")
}

func (s *Store) removeAll(ownerID ulid.ULID) {
	for _, ext := range allowed {
		_ = os.Remove(filepath.Join(s.dir, ownerID.String()+ext))
	}
}

// ExtForMIME returns the canonical extension for an accepted MIME type.
func ExtForMIME(mime string) (string, bool) {
	ext, ok := allowed[strings.ToLower(mime)]
	return ext, ok
}
