// Package units converts server settings between wire values and display units.
package units

import (
	"fmt"
	"strconv"
)

const (
	bufferMinKB     = 100
	bufferMaxKB     = 2000
	sliderMax       = 100
	defaultBufferKB = 200
	defaultSlider   = 5
)

// BufferKBFromSlider maps a 0-100 slider position to a buffer size in kB.
// Position 5 is pinned to the 200 kB default; everything else is linear over
// 100-2000 kB.
func BufferKBFromSlider(position int) int {
	position = clamp(position, 0, sliderMax)
	if position == defaultSlider {
		return defaultBufferKB
	}
	return position*(bufferMaxKB-bufferMinKB)/sliderMax + bufferMinKB
}

// SliderFromBufferKB is the inverse of BufferKBFromSlider. 200 kB maps back to
// position 5 so the default survives a set/get round trip.
func SliderFromBufferKB(kb int) int {
	if kb == defaultBufferKB {
		return defaultSlider
	}
	return clamp((kb-bufferMinKB)*sliderMax/(bufferMaxKB-bufferMinKB), 0, sliderMax)
}

// BufferBytesFromKB returns the wire value for a buffer size.
func BufferBytesFromKB(kb int) int {
	return kb * 1000
}

// ParseBufferKB validates a user-supplied buffer size and snaps it to a value
// the slider can represent.
func ParseBufferKB(raw string) (int, error) {
	kb, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("buffer size %q is not an integer", raw)
	}
	if kb < bufferMinKB || kb > bufferMaxKB {
		return 0, fmt.Errorf("buffer size must be within [%d,%d] kB, got %d", bufferMinKB, bufferMaxKB, kb)
	}
	return BufferKBFromSlider(SliderFromBufferKB(kb)), nil
}

// BitrateLabel renders a bitrate in Mbps the way the server reports it.
func BitrateLabel(mbps int) string {
	return strconv.Itoa(mbps) + " Mbps"
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
