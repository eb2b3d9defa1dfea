// Package uploads stores client photos attached to bookings.
package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"ffb.ae/internal/ids"
)

var (
	ErrUnsupportedType = errors.New("uploads: unsupported file type")
	ErrTooLarge        = errors.New("uploads: file too large")
	ErrEmpty           = errors.New("uploads: empty file")
	ErrInvalidKey      = errors.New("uploads: invalid key")
)

const sniffLen = 3072

// Allowed maps accepted image types to the extension used on disk. The
// type is detected from content; the client's filename and header are
// never trusted.
var Allowed = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// DiskStore writes uploads under a single directory with generated names.
type DiskStore struct {
	dir      string
	maxBytes int64
}

func NewDiskStore(dir string, maxBytes int64) (*DiskStore, error) {
	if maxBytes <= 0 {
		return nil, errors.New("uploads: max bytes must be positive")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("uploads: create dir: %w", err)
	}
	return &DiskStore{dir: dir, maxBytes: maxBytes}, nil
}

// Save sniffs r, rejects anything that is not an allowed image and stores
// at most MaxBytes. It returns the generated key.
func (d *DiskStore) Save(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	switch {
	case errors.Is(err, io.EOF):
		return "", ErrEmpty
	case err != nil && !errors.Is(err, io.ErrUnexpectedEOF):
		return "", fmt.Errorf("uploads: read: %w", err)
	}
	head = head[:n]

	mt := mimetype.Detect(head)
	ext, ok := "", false
	for m := mt; m != nil; m = m.Parent() {
		if ext, ok = Allowed[m.String()]; ok {
			break
		}
	}
	if !ok {
		return "", ErrUnsupportedType
	}

	key := strings.ToLower(ids.New()) + ext
	path := filepath.Join(d.dir, key)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("uploads: create: %w", err)
	}
	written, err := io.Copy(f, io.LimitReader(io.MultiReader(bytes.NewReader(head), r), d.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > d.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("uploads: write: %w", err)
	}
	return key, nil
}

// Delete removes a stored file. Unknown keys are not an error.
func (d *DiskStore) Delete(_ context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	err := os.Remove(filepath.Join(d.dir, key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func validKey(key string) bool {
	return key != "" && key == filepath.Base(key) && !strings.HasPrefix(key, ".")
}
