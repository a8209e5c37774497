package identity

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Matcher turns a camera frame into a stored signature and scores two
// signatures against each other. Higher is closer, 1 is identical.
type Matcher interface {
	Signature(img image.Image) ([]byte, error)
	Score(a, b []byte) (float64, error)
}

const (
	hueBins = 50
	satBins = 60
	faceDim = 200
)

var errBadSignature = errors.New("malformed face signature")

// HistogramMatcher compares hue/saturation histograms of the centre
// square of a frame, scaled to faceDim pixels. Scores are Pearson
// correlations.
type HistogramMatcher struct{}

func (HistogramMatcher) Signature(img image.Image) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("empty frame")
	}

	face := image.NewRGBA(image.Rect(0, 0, faceDim, faceDim))
	draw.ApproxBiLinear.Scale(face, face.Bounds(), img, centreSquare(img.Bounds()), draw.Src, nil)

	hist := make([]float32, hueBins*satBins)
	for y := 0; y < faceDim; y++ {
		for x := 0; x < faceDim; x++ {
			i := face.PixOffset(x, y)
			h, s := hueSat(face.Pix[i], face.Pix[i+1], face.Pix[i+2])
			hb := min(int(h/360*hueBins), hueBins-1)
			sb := min(int(s*satBins), satBins-1)
			hist[hb*satBins+sb]++
		}
	}
	normalize(hist)

	buf := make([]byte, 4*len(hist))
	for i, v := range hist {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf, nil
}

func (HistogramMatcher) Score(a, b []byte) (float64, error) {
	ha, err := decodeSignature(a)
	if err != nil {
		return 0, err
	}
	hb, err := decodeSignature(b)
	if err != nil {
		return 0, err
	}
	return correlate(ha, hb), nil
}

func decodeSignature(b []byte) ([]float32, error) {
	if len(b) != 4*hueBins*satBins {
		return nil, fmt.Errorf("%w: %d bytes", errBadSignature, len(b))
	}
	out := make([]float32, hueBins*satBins)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

func centreSquare(r image.Rectangle) image.Rectangle {
	side := min(r.Dx(), r.Dy())
	x := r.Min.X + (r.Dx()-side)/2
	y := r.Min.Y + (r.Dy()-side)/2
	return image.Rect(x, y, x+side, y+side)
}

// hueSat returns hue in degrees and saturation in [0,1].
func hueSat(r8, g8, b8 uint8) (float64, float64) {
	r, g, b := float64(r8)/255, float64(g8)/255, float64(b8)/255
	hi := max(r, g, b)
	lo := min(r, g, b)
	d := hi - lo
	if hi == 0 || d == 0 {
		return 0, 0
	}

	var h float64
	switch hi {
	case r:
		h = 60 * math.Mod((g-b)/d, 6)
	case g:
		h = 60 * ((b-r)/d + 2)
	default:
		h = 60 * ((r-g)/d + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, d / hi
}

// normalize rescales to [0,1] in place.
func normalize(h []float32) {
	lo, hi := h[0], h[0]
	for _, v := range h {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi == lo {
		return
	}
	for i, v := range h {
		h[i] = (v - lo) / (hi - lo)
	}
}

func correlate(a, b []float32) float64 {
	var ma, mb float64
	for i := range a {
		ma += float64(a[i])
		mb += float64(b[i])
	}
	ma /= float64(len(a))
	mb /= float64(len(b))

	var num, da, db float64
	for i := range a {
		x, y := float64(a[i])-ma, float64(b[i])-mb
		num += x * y
		da += x * x
		db += y * y
	}
	if da == 0 || db == 0 {
		if da == db {
			return 1
		}
		return 0
	}
	return num / math.Sqrt(da*db)
}
