// Package assets holds the binary-asset collaborator used for image
// messages. The delivery pipeline only sees the Store interface; the hosted
// media service is out of scope, so DiskStore stands in behind it.
package assets

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Store uploads a raw image payload and returns a durable URL for it.
// Upload is a blocking, failable step: a failure means nothing was stored.
type Store interface {
	Upload(ctx context.Context, data string) (string, error)
}

// IsRawUpload reports whether an image payload still needs uploading, as
// opposed to already being a durable reference.
func IsRawUpload(image string) bool {
	return image != "" && !strings.HasPrefix(image, "http://") &&
		!strings.HasPrefix(image, "https://") && !strings.HasPrefix(image, "/assets/")
}

// DiskStore writes uploads beneath a local directory served at /assets/.
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore creates an asset store rooted at dir. baseURL is the public
// prefix the router serves the directory under.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if dir == "" {
		dir = "./data/assets"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if baseURL == "" {
		baseURL = "/assets"
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Upload decodes a base64 or data-URI payload and writes it under a ULID
// filename, returning the public URL.
func (d *DiskStore) Upload(ctx context.Context, data string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := ".png"
	if strings.HasPrefix(data, "data:") {
		// data:image/png;base64,....
		mediaType, rest, ok := strings.Cut(strings.TrimPrefix(data, "data:"), ",")
		if !ok {
			return "", fmt.Errorf("malformed data URI")
		}
		mediaType = strings.TrimSuffix(mediaType, ";base64")
		if e := extensionFor(mediaType); e != "" {
			ext = e
		}
		data = rest
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decode upload: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("empty upload")
	}

	name := ulid.Make().String() + ext
	if err := os.WriteFile(filepath.Join(d.dir, name), raw, 0644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return d.baseURL + "/" + name, nil
}

// Dir returns the directory the store writes into.
func (d *DiskStore) Dir() string {
	return d.dir
}

func extensionFor(mediaType string) string {
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}
