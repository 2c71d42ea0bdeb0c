package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
}

func (f *fakePutter) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, b)
	return &manager.UploadOutput{}, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	d, err := Detect(pngBytes(t, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, KindImage, d.Kind)
	assert.Equal(t, "image/png", d.MIME)
	assert.Equal(t, "png", d.Extension)

	_, err = Detect([]byte("just some text"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = Detect(nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Detect([]byte("%PDF-1.4\n%âãÏÓ\n"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestNormalizePicture(t *testing.T) {
	out, err := NormalizePicture(pngBytes(t, 800, 300))
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, PictureSize, img.Bounds().Dx())
	assert.Equal(t, PictureSize, img.Bounds().Dy())
}

func TestNormalizePicture_WebP(t *testing.T) {
	// 1x1 lossless WebP.
	webp, err := base64.StdEncoding.DecodeString("UklGRhoAAABXRUJQVlA4TA0AAAAvAAAAEAcQERGIiP4HAA==")
	require.NoError(t, err)

	d, err := Detect(webp)
	require.NoError(t, err)
	assert.Equal(t, "image/webp", d.MIME)

	out, err := NormalizePicture(webp)
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, PictureSize, img.Bounds().Dx())
}

func TestS3Store_UploadMedia(t *testing.T) {
	fp := &fakePutter{}
	s := &S3Store{uploader: fp, cfg: Config{Bucket: "zephyr-media", Region: "eu-west-1", MaxBytes: 1 << 20}}

	obj, err := s.UploadMedia(context.Background(), "chat/7", pngBytes(t, 8, 8))
	require.NoError(t, err)
	assert.Equal(t, KindImage, obj.Kind)
	assert.Regexp(t, `^chat/7/[0-9a-f-]{36}\.png$`, obj.Key)
	assert.Equal(t, "https://zephyr-media.s3.eu-west-1.amazonaws.com/"+obj.Key, obj.URL)

	require.Len(t, fp.inputs, 1)
	assert.Equal(t, "image/png", aws.ToString(fp.inputs[0].ContentType))
	assert.Equal(t, "zephyr-media", aws.ToString(fp.inputs[0].Bucket))
}

func TestS3Store_Limits(t *testing.T) {
	s := &S3Store{uploader: &fakePutter{}, cfg: Config{Bucket: "b", MaxBytes: 16}}

	_, err := s.UploadMedia(context.Background(), "chat", pngBytes(t, 8, 8))
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = s.UploadPicture(context.Background(), "avatars", nil)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestS3Store_UploadPictureCustomEndpoint(t *testing.T) {
	fp := &fakePutter{}
	s := &S3Store{uploader: fp, cfg: Config{Bucket: "media", Endpoint: "http://minio:9000/"}}

	u, err := s.UploadPicture(context.Background(), "/avatars/3/", pngBytes(t, 64, 32))
	require.NoError(t, err)
	assert.Regexp(t, `^http://minio:9000/media/avatars/3/[0-9a-f-]{36}\.jpg$`, u)
	assert.Equal(t, "image/jpeg", aws.ToString(fp.inputs[0].ContentType))
}
