package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/fathima-sithara/teamchat/internal/apperr"
	"github.com/google/uuid"
)

const thumbnailWidth = 320

var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
}

// ObjectStore is the blob backend images are written to.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	URL(ctx context.Context, key string) (string, error)
}

type Image struct {
	Key          string `json:"key"`
	ThumbnailKey string `json:"thumbnail_key,omitempty"`
	URL          string `json:"url"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

type Images struct {
	store    ObjectStore
	maxBytes int64
}

func NewImages(store ObjectStore, maxBytes int64) *Images {
	return &Images{store: store, maxBytes: maxBytes}
}

// Upload validates data as an image, stores the original and a JPEG
// thumbnail, and returns the storage key messages reference.
func (i *Images) Upload(ctx context.Context, userID, filename, contentType string, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file: %w", apperr.ErrValidation)
	}
	if i.maxBytes > 0 && int64(len(data)) > i.maxBytes {
		return nil, fmt.Errorf("image is %s, limit is %s: %w",
			humanize.Bytes(uint64(len(data))), humanize.Bytes(uint64(i.maxBytes)), apperr.ErrValidation)
	}
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	if !allowedImageTypes[ct] {
		return nil, fmt.Errorf("unsupported content type %q: %w", ct, apperr.ErrValidation)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", apperr.ErrValidation)
	}

	key := path.Join("images", userID, uuid.NewString()+"_"+sanitize(filename))
	if err := i.store.Put(ctx, key, ct, data); err != nil {
		return nil, fmt.Errorf("store image: %w: %v", apperr.ErrServiceUnavailable, err)
	}

	out := &Image{
		Key:         key,
		ContentType: ct,
		Size:        int64(len(data)),
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
	}
	if thumb, err := Thumbnail(img); err == nil {
		thumbKey := key + "_thumb.jpg"
		if err := i.store.Put(ctx, thumbKey, "image/jpeg", thumb); err == nil {
			out.ThumbnailKey = thumbKey
		}
	}
	if u, err := i.store.URL(ctx, key); err == nil {
		out.URL = u
	}
	return out, nil
}

// URL resolves a stored key. An empty key resolves to "".
func (i *Images) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	return i.store.URL(ctx, key)
}

// Thumbnail scales img to a fixed width and encodes it as JPEG. Images
// already narrower than that are re-encoded unscaled.
func Thumbnail(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	thumb := img
	if img.Bounds().Dx() > thumbnailWidth {
		thumb = imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sanitize(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
