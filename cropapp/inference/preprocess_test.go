package inference

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 200,
				A: 255,
			})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func encodeJPEG(t *testing.T, img image.Image) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func assertNormalized(t *testing.T, tensor *Tensor, size int) {
	t.Helper()

	assert.Equal(t, []int{1, size, size, 3}, tensor.Shape)
	require.Len(t, tensor.Data, size*size*3)
	for i, v := range tensor.Data {
		if v < 0 || v > 1 {
			t.Fatalf("value %f at %d is out of [0, 1]", v, i)
		}
	}
}

func TestPreprocessShapeAndRange(t *testing.T) {
	tests := []struct {
		name   string
		encode func(*testing.T, image.Image) string
		w, h   int
	}{
		{"small square png", encodePNG, 16, 16},
		{"wide png", encodePNG, 640, 120},
		{"tall jpeg", encodeJPEG, 50, 300},
		{"exact size png", encodePNG, 224, 224},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tensor, err := Preprocess(tt.encode(t, gradient(tt.w, tt.h)), 224)
			require.NoError(t, err)
			assertNormalized(t, tensor, 224)
		})
	}
}

func TestPreprocessDataURI(t *testing.T) {
	encoded := encodePNG(t, gradient(32, 32))

	plain, err := Preprocess(encoded, 64)
	require.NoError(t, err)

	withPrefix, err := Preprocess("data:image/png;base64,"+encoded, 64)
	require.NoError(t, err)

	assert.Equal(t, plain.Data, withPrefix.Data)
}

func TestPreprocessPixelScale(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 255, 0, 51, 255
	}

	tensor, err := Preprocess(encodePNG(t, img), 8)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, tensor.Data[0], 1e-6)
	assert.InDelta(t, 0.0, tensor.Data[1], 1e-6)
	assert.InDelta(t, 0.2, tensor.Data[2], 1e-6)
}

func TestPreprocessDropsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 255, 255, 255, 128
	}

	tensor, err := Preprocess(encodePNG(t, img), 4)
	require.NoError(t, err)

	for _, v := range tensor.Data {
		assert.InDelta(t, 1.0, v, 1e-6)
	}
}

func TestPreprocessErrors(t *testing.T) {
	_, err := Preprocess("this is not base64!!", 224)
	assert.True(t, errors.Is(err, ErrInvalidBase64), "got %v", err)
	assert.False(t, errors.Is(err, ErrInvalidImage))

	notImage := base64.StdEncoding.EncodeToString([]byte("plain text, not a raster image"))
	_, err = Preprocess(notImage, 224)
	assert.True(t, errors.Is(err, ErrInvalidImage), "got %v", err)
	assert.False(t, errors.Is(err, ErrInvalidBase64))

	_, err = Preprocess("data:image/png;base64,", 224)
	assert.True(t, errors.Is(err, ErrInvalidImage), "got %v", err)
}

func TestStripDataURI(t *testing.T) {
	assert.Equal(t, "abc", StripDataURI("data:image/jpeg;base64,abc"))
	assert.Equal(t, "abc", StripDataURI("abc"))
	assert.Equal(t, "data:nocomma", StripDataURI("data:nocomma"))
}
