package audio

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	DefaultSampleRate = 48000
	DefaultChannels   = 2
	DefaultBitDepth   = 16
)

func GetDefaultFormat() Format {
	return Format{SampleRate: DefaultSampleRate, Channels: DefaultChannels, BitDepth: DefaultBitDepth}
}

// Format describes interleaved signed PCM as written to a sink.
type Format struct {
	SampleRate uint32
	Channels   uint8
	BitDepth   uint8
}

func (f Format) IsZero() bool {
	return f.SampleRate == 0 || f.Channels == 0 || f.BitDepth == 0
}

// Validate reports formats that PCMBuffer cannot carry. Samples are always
// 16-bit.
func (f Format) Validate() error {
	switch {
	case f.SampleRate == 0:
		return fmt.Errorf("%w: zero sample rate", ErrUnsupportedFormat)
	case f.Channels == 0:
		return fmt.Errorf("%w: zero channels", ErrUnsupportedFormat)
	case f.BitDepth != 16:
		return fmt.Errorf("%w: bit depth %d", ErrUnsupportedFormat, f.BitDepth)
	}
	return nil
}

// ByteSize is the size of a single sample of a single channel.
func (f Format) ByteSize() int {
	return int(f.BitDepth) / 8
}

// FrameSize is the size of one sample across all channels.
func (f Format) FrameSize() int {
	return f.ByteSize() * int(f.Channels)
}

// MaxAmplitude is the largest positive sample value for the bit depth.
func (f Format) MaxAmplitude() float64 {
	if f.BitDepth == 0 {
		return 0
	}
	return float64(int64(1)<<(f.BitDepth-1) - 1)
}

// Frames returns the number of frames needed to cover d.
func (f Format) Frames(d time.Duration) int {
	return int(float64(d) / float64(time.Second) * float64(f.SampleRate))
}

// Duration returns how long the given number of frames plays for.
func (f Format) Duration(frames int) time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(frames) / float64(f.SampleRate) * float64(time.Second))
}

// PCMBuffer holds interleaved 16-bit samples. Each frame carries one sample
// per channel.
type PCMBuffer struct {
	Format  Format
	Samples []int16
}

func NewPCMBuffer(format Format, frames int) PCMBuffer {
	return PCMBuffer{Format: format, Samples: make([]int16, frames*int(format.Channels))}
}

func (b PCMBuffer) Frames() int {
	if b.Format.Channels == 0 {
		return 0
	}
	return len(b.Samples) / int(b.Format.Channels)
}

func (b PCMBuffer) Duration() time.Duration {
	return b.Format.Duration(b.Frames())
}

// Bytes encodes the samples as little-endian linear16.
func (b PCMBuffer) Bytes() []byte {
	out := make([]byte, len(b.Samples)*2)
	for i, s := range b.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Frame returns the samples of frame i, one per channel.
func (b PCMBuffer) Frame(i int) []int16 {
	ch := int(b.Format.Channels)
	return b.Samples[i*ch : (i+1)*ch]
}
