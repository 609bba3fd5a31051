package display

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolution(t *testing.T) {
	assert.Equal(t, 72, Resolution(1.0))
	assert.Equal(t, 7, Resolution(0.1))
	assert.Equal(t, 18, Resolution(0.25))
	assert.Equal(t, 288, Resolution(4))
	assert.InDelta(t, 2.0, Zoom(144), 1e-9)
}

func TestDefaultFormat(t *testing.T) {
	f := DefaultFormat()
	assert.Equal(t, ColorsRGB, f&ColorsMask)
	assert.Equal(t, Depth8, f&DepthMask)
	assert.Equal(t, HostEndian, f&EndianMask)
}

func TestSurface_PageCopiesBuffer(t *testing.T) {
	s := NewSurface()
	var frames []Frame
	s.Begin(2, 1.0, func(f Frame) { frames = append(frames, f) })

	buf := make([]byte, 6*2)
	require.Equal(t, 0, s.Size(2, 2, 6, DefaultFormat(), buf))

	for _, v := range []byte{0x30, 0x40} {
		for n := range buf {
			buf[n] = v
		}
		require.Equal(t, 0, s.Page(1, true))
		// engine reuses the buffer once the callback returns
		for n := range buf {
			buf[n] = 0xEE
		}
	}

	require.Len(t, frames, 2)
	assert.Equal(t, 3, frames[0].Page)
	assert.Equal(t, 4, frames[1].Page)
	assert.Equal(t, byte(0x30), frames[0].Pix[0])
	assert.Equal(t, byte(0x40), frames[1].Pix[len(frames[1].Pix)-1])
	assert.Equal(t, 4, s.CurrentPage())

	s.End()
	s.Page(1, true)
	assert.Len(t, frames, 2)
}

func TestFrame_Image(t *testing.T) {
	tests := []struct {
		name   string
		format uint32
		pix    []byte
		raster int
		want   color.RGBA
	}{
		{"rgb", ColorsRGB | Depth8 | BigEndian, []byte{10, 20, 30, 0}, 4, color.RGBA{10, 20, 30, 255}},
		{"bgr", ColorsRGB | Depth8 | LittleEndian, []byte{10, 20, 30, 0}, 4, color.RGBA{30, 20, 10, 255}},
		{"gray", ColorsGray | Depth8, []byte{99, 0, 0, 0}, 4, color.RGBA{99, 99, 99, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Frame{Width: 1, Height: 1, Raster: tt.raster, Format: tt.format, Pix: tt.pix}.Image()
			require.NoError(t, err)
			assert.Equal(t, tt.want, img.RGBAAt(0, 0))
		})
	}
}

func TestFrame_ImageBottomFirst(t *testing.T) {
	f := Frame{
		Width: 1, Height: 2, Raster: 3,
		Format: ColorsRGB | Depth8 | BigEndian | BottomFirst,
		Pix:    []byte{1, 1, 1, 2, 2, 2},
	}
	img, err := f.Image()
	require.NoError(t, err)
	assert.Equal(t, uint8(2), img.RGBAAt(0, 0).R)
	assert.Equal(t, uint8(1), img.RGBAAt(0, 1).R)
}

func TestFrame_ImageRejectsUnsupported(t *testing.T) {
	_, err := Frame{Width: 1, Height: 1, Raster: 4, Format: ColorsCMYK | Depth8, Pix: make([]byte, 4)}.Image()
	assert.Error(t, err)

	_, err = Frame{Width: 4, Height: 4, Raster: 12, Format: DefaultFormat(), Pix: make([]byte, 8)}.Image()
	assert.Error(t, err)
}

func TestThumbnail(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	thumb := Thumbnail(src, 50)
	assert.Equal(t, 50, thumb.Bounds().Dx())
	assert.Equal(t, 25, thumb.Bounds().Dy())
}
