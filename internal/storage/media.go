package storage

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	// Registers the WebP decoder with image.Decode, which imaging uses.
	_ "golang.org/x/image/webp"
)

// PictureSize is the edge length of normalized profile and community pictures.
const PictureSize = 512

var (
	ErrEmpty           = errors.New("storage: empty upload")
	ErrTooLarge        = errors.New("storage: upload exceeds size limit")
	ErrUnsupportedType = errors.New("storage: only images and videos are accepted")
)

// Kind is the coarse media class of an upload.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Detected describes sniffed upload content.
type Detected struct {
	Kind      Kind
	MIME      string
	Extension string
}

// Detect sniffs data from its magic bytes. The client-declared content type is never trusted.
func Detect(data []byte) (Detected, error) {
	if len(data) == 0 {
		return Detected{}, ErrEmpty
	}
	t, err := filetype.Match(data)
	if err != nil || t == filetype.Unknown {
		return Detected{}, ErrUnsupportedType
	}
	switch {
	case strings.HasPrefix(t.MIME.Value, "image/"):
		return Detected{Kind: KindImage, MIME: t.MIME.Value, Extension: t.Extension}, nil
	case strings.HasPrefix(t.MIME.Value, "video/"):
		return Detected{Kind: KindVideo, MIME: t.MIME.Value, Extension: t.Extension}, nil
	}
	return Detected{}, ErrUnsupportedType
}

// NormalizePicture decodes an image, center-crops it to a PictureSize square and
// re-encodes it as JPEG. EXIF orientation is applied first.
func NormalizePicture(data []byte) ([]byte, error) {
	d, err := Detect(data)
	if err != nil {
		return nil, err
	}
	if d.Kind != KindImage {
		return nil, ErrUnsupportedType
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	img = imaging.Fill(img, PictureSize, PictureSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode picture: %w", err)
	}
	return buf.Bytes(), nil
}
