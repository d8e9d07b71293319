package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ImageFormat represents supported image formats
type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpeg"
	FormatWebP ImageFormat = "webp"
	FormatPNG  ImageFormat = "png"
	FormatTIFF ImageFormat = "tiff"
	FormatBMP  ImageFormat = "bmp"
)

// ErrUnsupportedFormat is returned for file extensions and formats without a codec.
var ErrUnsupportedFormat = errors.New("images: unsupported format")

// FormatFromPath derives the image format from a file extension.
func FormatFromPath(path string) (ImageFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".png":
		return FormatPNG, nil
	case ".webp":
		return FormatWebP, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	case ".bmp":
		return FormatBMP, nil
	default:
		return "", errors.Wrapf(ErrUnsupportedFormat, "extension %q", filepath.Ext(path))
	}
}

// Decode reads an encoded image. PNG and TIFF files with 16 bit samples produce a
// sixteen bit Image; everything else is reduced to 8 bits per channel.
//
// Arguments:
//   - r: The encoded image stream.
//   - format: The encoding of the stream.
//
// Returns:
//   - *Image: The decoded BGRA image.
//   - error: An error if the stream cannot be decoded.
func Decode(r io.Reader, format ImageFormat) (*Image, error) {
	var (
		img image.Image
		err error
	)
	switch format {
	case FormatJPEG:
		img, err = jpeg.Decode(r)
	case FormatPNG:
		img, err = png.Decode(r)
	case FormatWebP:
		img, err = webp.Decode(r)
	case FormatTIFF:
		img, err = tiff.Decode(r)
	case FormatBMP:
		img, err = bmp.Decode(r)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s image", format)
	}
	return FromImage(img, isSixteenBit(img)), nil
}

// Encode writes img in the given format. WebP output is lossless.
//
// Arguments:
//   - w: The destination stream.
//   - img: The image to encode.
//   - format: The target encoding.
//
// Returns:
//   - error: An error if encoding fails.
func Encode(w io.Writer, img *Image, format ImageFormat) error {
	if err := img.Validate(); err != nil {
		return err
	}
	src := img.ToImage()

	var err error
	switch format {
	case FormatJPEG:
		err = jpeg.Encode(w, src, &jpeg.Options{Quality: 95})
	case FormatPNG:
		err = png.Encode(w, src)
	case FormatWebP:
		err = webp.Encode(w, src, &webp.Options{Lossless: true})
	case FormatTIFF:
		err = tiff.Encode(w, src, &tiff.Options{Compression: tiff.Deflate})
	case FormatBMP:
		err = bmp.Encode(w, src)
	default:
		return errors.Wrapf(ErrUnsupportedFormat, "format %q", format)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s image", format)
	}
	return nil
}

// DecodeBytes decodes an in-memory encoded image.
func DecodeBytes(data []byte, format ImageFormat) (*Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}
	return Decode(bytes.NewReader(data), format)
}

// LoadFile decodes the image stored at path, choosing the codec by extension.
func LoadFile(path string) (*Image, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open image")
	}
	defer f.Close()
	return Decode(f, format)
}

// SaveFile encodes img to path, choosing the codec by extension.
func SaveFile(path string, img *Image) (err error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create image file")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "failed to close image file")
		}
	}()
	return Encode(f, img, format)
}

func isSixteenBit(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA64, *image.NRGBA64, *image.Gray16:
		return true
	default:
		return false
	}
}
