package display

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Frame is one rendered page copied out of the engine's buffer.
type Frame struct {
	Page   int
	Width  int
	Height int
	Raster int // bytes per row
	Format uint32
	Zoom   float64
	Pix    []byte
}

// Image converts the frame to RGBA. Supported formats are 8-bit gray and
// 24-bit RGB in either byte order, top or bottom row first.
func (f Frame) Image() (*image.RGBA, error) {
	if f.Format&DepthMask != Depth8 {
		return nil, fmt.Errorf("unsupported display depth 0x%x", f.Format&DepthMask)
	}
	if f.Format&AlphaMask != AlphaNone {
		return nil, fmt.Errorf("unsupported alpha layout 0x%x", f.Format&AlphaMask)
	}

	var bpp int
	switch f.Format & ColorsMask {
	case ColorsGray:
		bpp = 1
	case ColorsRGB:
		bpp = 3
	default:
		return nil, fmt.Errorf("unsupported display colors 0x%x", f.Format&ColorsMask)
	}

	if f.Raster < f.Width*bpp || len(f.Pix) < f.Raster*f.Height {
		return nil, fmt.Errorf("frame %dx%d raster %d too small for %d bytes", f.Width, f.Height, f.Raster, len(f.Pix))
	}

	bgr := f.Format&EndianMask == LittleEndian
	flip := f.Format&FirstRowMask == BottomFirst

	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		srcY := y
		if flip {
			srcY = f.Height - 1 - y
		}
		row := f.Pix[srcY*f.Raster : srcY*f.Raster+f.Width*bpp]
		dst := img.Pix[y*img.Stride : y*img.Stride+f.Width*4]
		for x := 0; x < f.Width; x++ {
			var r, g, b byte
			if bpp == 1 {
				r, g, b = row[x], row[x], row[x]
			} else if bgr {
				b, g, r = row[x*3], row[x*3+1], row[x*3+2]
			} else {
				r, g, b = row[x*3], row[x*3+1], row[x*3+2]
			}
			dst[x*4], dst[x*4+1], dst[x*4+2], dst[x*4+3] = r, g, b, 0xff
		}
	}
	return img, nil
}

// Thumbnail scales img to the given width, keeping the aspect ratio.
func Thumbnail(img image.Image, width int) *image.RGBA {
	b := img.Bounds()
	if width <= 0 || b.Dx() == 0 {
		width = b.Dx()
	}
	height := b.Dy() * width / max(b.Dx(), 1)
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
