// Package audioconv decodes recorded clips into the mono 16 kHz float32
// PCM the recognizer expects.
package audioconv

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

const TargetRate = 16000

var ErrUnsupported = errors.New("unsupported audio format")

// clip is decoded audio before normalization.
type clip struct {
	samples  []float32 // interleaved
	rate     int
	channels int
}

type decoder func(io.ReadSeeker) (clip, error)

var decoders = map[string][]decoder{
	"wav": {decodeWAV},
	"mp3": {decodeMP3},
	"ogg": {decodeVorbis, decodeOpus},
}

var extFormats = map[string]string{
	".wav":  "wav",
	".mp3":  "mp3",
	".ogg":  "ogg",
	".oga":  "ogg",
	".opus": "ogg",
}

// DecodeFile picks the decoder by extension, falling back to the magic
// bytes. maxSamples <= 0 keeps everything.
func DecodeFile(path string, maxSamples int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	format := extFormats[strings.ToLower(filepath.Ext(path))]
	return Decode(f, format, maxSamples)
}

// Decode reads a whole clip. An empty format is sniffed.
func Decode(r io.ReadSeeker, format string, maxSamples int) ([]float32, error) {
	if format == "" {
		var err error
		if format, err = sniff(r); err != nil {
			return nil, err
		}
	}

	chain, ok := decoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}

	var errs []error
	for _, dec := range chain {
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		c, err := dec(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return normalize(c, maxSamples), nil
	}
	return nil, fmt.Errorf("decode %s: %w", format, errors.Join(errs...))
}

func sniff(r io.ReadSeeker) (string, error) {
	magic, _ := bufio.NewReader(r).Peek(4)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	switch {
	case string(magic) == "RIFF":
		return "wav", nil
	case string(magic) == "OggS":
		return "ogg", nil
	case len(magic) >= 3 && (string(magic[:3]) == "ID3" || (magic[0] == 0xFF && magic[1]&0xE0 == 0xE0)):
		return "mp3", nil
	}
	return "", ErrUnsupported
}

func normalize(c clip, maxSamples int) []float32 {
	x := downmix(c.samples, c.channels)
	x = resample(x, c.rate, TargetRate)
	if maxSamples > 0 && len(x) > maxSamples {
		x = x[:maxSamples]
	}
	return x
}

func decodeWAV(r io.ReadSeeker) (clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return clip{}, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return clip{}, err
	}
	if pb == nil || len(pb.Data) == 0 {
		return clip{}, errors.New("empty wav")
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}
	c := clip{samples: intsToFloat(pb.Data, bd), rate: 44100, channels: 1}
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			c.channels = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			c.rate = pb.Format.SampleRate
		}
	}
	return c, nil
}

// go-mp3 always yields 16-bit little endian stereo.
func decodeMP3(r io.ReadSeeker) (clip, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return clip{}, err
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return clip{}, err
	}
	ints := make([]int16, len(raw)/2)
	if err := binary.Read(bytes.NewReader(raw[:2*len(ints)]), binary.LittleEndian, ints); err != nil {
		return clip{}, err
	}
	rate := dec.SampleRate()
	if rate <= 0 {
		rate = 44100
	}
	return clip{samples: int16sToFloat(ints), rate: rate, channels: 2}, nil
}

func decodeVorbis(r io.ReadSeeker) (clip, error) {
	pcm, f, err := oggvorbis.ReadAll(r)
	if err != nil {
		return clip{}, err
	}
	if f == nil || f.Channels <= 0 || f.SampleRate <= 0 {
		return clip{}, errors.New("invalid ogg/vorbis stream")
	}
	return clip{samples: pcm, rate: f.SampleRate, channels: f.Channels}, nil
}

// Opus always decodes at 48 kHz.
func decodeOpus(r io.ReadSeeker) (clip, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return clip{}, err
	}
	defer dec.Destroy()

	ch := max(dec.ChannelCount(), 1)

	var (
		pcm []float32
		buf = make([]int16, 24_000*ch)
	)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			pcm = append(pcm, int16sToFloat(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return clip{}, err
		}
	}
	if len(pcm) == 0 {
		return clip{}, errors.New("empty opus stream")
	}
	return clip{samples: pcm, rate: 48000, channels: ch}, nil
}

func intsToFloat(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(min(max(float64(v)*scale, -1), 1))
	}
	return out
}

func int16sToFloat(data []int16) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v) / 32768
	}
	return out
}

func downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	n := len(in) / channels
	out := make([]float32, n)
	for i := range n {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(in[i*channels+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

// resample interpolates linearly.
func resample(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 {
		return in
	}
	ratio := float64(to) / float64(from)
	n := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, n)
	for i := range out {
		src := float64(i) / ratio
		i0 := int(src)
		if i0 >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i0+1]*a
	}
	return out
}
