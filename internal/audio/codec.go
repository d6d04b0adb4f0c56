// Package audio converts between the capture pipeline's float PCM samples
// and the 16-bit little-endian transport format the remote agent speaks.
package audio

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// CaptureSampleRate is the sample rate of outbound microphone audio.
const CaptureSampleRate = 16000

// PlaybackSampleRate is the sample rate the agent responds with.
const PlaybackSampleRate = 24000

// OutboundMIMEType tags outbound PCM blobs.
const OutboundMIMEType = "audio/pcm;rate=16000"

// Blob is a transport-encoded audio payload: base64 PCM16LE plus its
// mime-type metadata.
type Blob struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

// PCMBuffer is a playback-ready audio buffer: one float32 slice per channel,
// samples in [-1, 1].
type PCMBuffer struct {
	Channels   [][]float32
	SampleRate int
}

// FrameCount returns the number of frames per channel.
func (b *PCMBuffer) FrameCount() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the buffer duration in seconds.
func (b *PCMBuffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.FrameCount()) / float64(b.SampleRate)
}

// EncodeOutbound converts captured float samples to the transport format:
// each sample scaled by 32768, clamped to the signed 16-bit range, packed
// little-endian and base64 encoded.
func EncodeOutbound(samples []float32) Blob {
	return Blob{
		Data:     base64.StdEncoding.EncodeToString(PackPCM16(samples)),
		MIMEType: OutboundMIMEType,
	}
}

// PackPCM16 converts float samples in [-1, 1] to raw PCM16LE bytes.
func PackPCM16(samples []float32) []byte {
	raw := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := int32(s * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		raw[2*i] = byte(v)
		raw[2*i+1] = byte(v >> 8)
	}
	return raw
}

// UnpackPCM16 reverses PackPCM16 for single-channel payloads.
func UnpackPCM16(raw []byte) []float32 {
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		v := int16(raw[2*i]) | int16(raw[2*i+1])<<8
		samples[i] = float32(v) / 32768.0
	}
	return samples
}

// BlobFromPCM wraps raw PCM16LE bytes in a transport blob.
func BlobFromPCM(raw []byte, sampleRate int) Blob {
	return Blob{
		Data:     base64.StdEncoding.EncodeToString(raw),
		MIMEType: fmt.Sprintf("audio/pcm;rate=%d", sampleRate),
	}
}

// DecodeInbound reverses EncodeOutbound: unpacks 16-bit little-endian
// samples, restores the [-1, 1] float range and de-interleaves by channel.
func DecodeInbound(b Blob, sampleRate, channels int) (*PCMBuffer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("audio: invalid channel count %d", channels)
	}
	raw, err := base64.StdEncoding.DecodeString(b.Data)
	if err != nil {
		return nil, fmt.Errorf("audio: decode transport data: %w", err)
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("audio: odd payload length %d", len(raw))
	}

	frames := len(raw) / 2 / channels
	buf := &PCMBuffer{
		Channels:   make([][]float32, channels),
		SampleRate: sampleRate,
	}
	for ch := 0; ch < channels; ch++ {
		data := make([]float32, frames)
		for i := 0; i < frames; i++ {
			off := 2 * (i*channels + ch)
			v := int16(raw[off]) | int16(raw[off+1])<<8
			data[i] = float32(v) / 32768.0
		}
		buf.Channels[ch] = data
	}
	return buf, nil
}

// RateFromMIME extracts the rate parameter from a mime type such as
// "audio/pcm;rate=24000". Returns fallback when absent or malformed.
func RateFromMIME(mime string, fallback int) int {
	for _, part := range strings.Split(mime, ";") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "rate=") {
			continue
		}
		if rate, err := strconv.Atoi(strings.TrimPrefix(part, "rate=")); err == nil && rate > 0 {
			return rate
		}
	}
	return fallback
}
