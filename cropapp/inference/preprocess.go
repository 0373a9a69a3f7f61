package inference

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"unicode"

	// 지원하는 이미지 디코더 등록
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/harrison-roh/crop-disease-classification/cropapp/constants"
	"github.com/nfnt/resize"
)

var (
	// ErrInvalidBase64 base64 디코딩 실패
	ErrInvalidBase64 = errors.New("Invalid base64 image data")
	// ErrInvalidImage 래스터 이미지로 디코딩 불가
	ErrInvalidImage = errors.New("Invalid image data")
)

// StripDataURI "data:image/png;base64," 같은 접두어 제거
func StripDataURI(s string) string {
	if strings.HasPrefix(s, "data:") {
		if idx := strings.IndexByte(s, ','); idx >= 0 {
			return s[idx+1:]
		}
	}

	return s
}

// DecodeImage base64 (또는 data URI) 문자열을 이미지로 디코딩
func DecodeImage(encoded string) (image.Image, string, error) {
	encoded = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, StripDataURI(encoded))

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	return img, format, nil
}

// Preprocess base64 이미지를 (1, size, size, 3) 입력 텐서로 변환
func Preprocess(encoded string, size int) (*Tensor, error) {
	img, _, err := DecodeImage(encoded)
	if err != nil {
		return nil, err
	}

	return ImageTensor(img, size), nil
}

// ImageTensor RGB 변환, 이중선형보간 리사이징 후 [0, 1] 범위로 정규화
func ImageTensor(img image.Image, size int) *Tensor {
	if size <= 0 {
		size = constants.ImageSize
	}

	// TODO 학습 시 mobilenet_v2 preprocess_input([-1, 1])을 사용한 모델이면 정규화 방식을 설정으로 분리
	resized := resize.Resize(uint(size), uint(size), toRGB(img), resize.Bilinear)

	t := NewTensor(1, size, size, constants.Channels)
	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			t.Data[i] = float32(r>>8) / constants.PixelScale
			t.Data[i+1] = float32(g>>8) / constants.PixelScale
			t.Data[i+2] = float32(b>>8) / constants.PixelScale
			i += constants.Channels
		}
	}

	return t
}

// 알파 채널을 버리고 불투명 RGB 이미지로 변환
func toRGB(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			off := dst.PixOffset(x-bounds.Min.X, y-bounds.Min.Y)
			dst.Pix[off] = c.R
			dst.Pix[off+1] = c.G
			dst.Pix[off+2] = c.B
			dst.Pix[off+3] = 0xff
		}
	}

	return dst
}
