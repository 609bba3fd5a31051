// Package display adapts the engine's display device callbacks into owned
// frames and images.
package display

import (
	"encoding/binary"
	"math"
)

// Format word bits understood by the display device.
const (
	ColorsNative     uint32 = 0x00001
	ColorsGray       uint32 = 0x00002
	ColorsRGB        uint32 = 0x00004
	ColorsCMYK       uint32 = 0x00008
	ColorsSeparation uint32 = 0x80000
	ColorsMask       uint32 = 0x8000f

	AlphaNone   uint32 = 0x00
	AlphaFirst  uint32 = 0x10
	AlphaLast   uint32 = 0x20
	UnusedFirst uint32 = 0x40
	UnusedLast  uint32 = 0x80
	AlphaMask   uint32 = 0xf0

	Depth1    uint32 = 0x0100
	Depth8    uint32 = 0x0800
	DepthMask uint32 = 0xff00

	BigEndian    uint32 = 0x00000
	LittleEndian uint32 = 0x10000
	EndianMask   uint32 = 0x10000

	TopFirst     uint32 = 0x00000
	BottomFirst  uint32 = 0x20000
	FirstRowMask uint32 = 0x20000
)

// HostEndian is the endian flag matching the running machine.
var HostEndian = func() uint32 {
	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 1)
	if probe[0] == 1 {
		return LittleEndian
	}
	return BigEndian
}()

// DefaultFormat is 24-bit RGB in host byte order.
func DefaultFormat() uint32 {
	return ColorsRGB | AlphaNone | Depth8 | HostEndian | TopFirst
}

// Resolution converts a zoom factor to device dpi.
func Resolution(zoom float64) int {
	return int(math.Floor(72*zoom + 0.5))
}

// Zoom converts a device dpi back to a zoom factor.
func Zoom(resolution int) float64 {
	return float64(resolution) / 72
}
