package images

import (
	"github.com/nfnt/resize"
)

// Thumbnail downscales img to fit within maxWidth x maxHeight while preserving the
// aspect ratio, the bit depth and the alpha flag. Images that already fit are copied.
//
// Arguments:
//   - img: The source image.
//   - maxWidth: The maximum width of the result.
//   - maxHeight: The maximum height of the result.
//
// Returns:
//   - *Image: The preview image.
func Thumbnail(img *Image, maxWidth, maxHeight uint) *Image {
	if uint(img.Width) <= maxWidth && uint(img.Height) <= maxHeight {
		return img.Copy()
	}
	scaled := resize.Thumbnail(maxWidth, maxHeight, img.ToImage(), resize.Lanczos3)
	out := FromImage(scaled, img.SixteenBit)
	out.HasAlpha = img.HasAlpha
	return out
}
