package audio

import (
	"context"
	"errors"
	log "log/slog"
	"math"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	SampleRate = 16000
	frameSize  = 320 // 20ms
	frameDur   = time.Second * frameSize / SampleRate
	hangover   = 600 * time.Millisecond
	calibrate  = 300 * time.Millisecond
)

// ErrSilence means nobody started talking before the timeout.
var ErrSilence = errors.New("no speech before timeout")

// Phrase bounds one capture.
type Phrase struct {
	Timeout   time.Duration // wait for speech onset
	Limit     time.Duration // max phrase length once started
	Threshold float64       // RMS onset level
	Calibrate bool          // raise Threshold to the ambient level first
}

// Recorder reads 16kHz mono frames from the default input device. One
// capture runs at a time.
type Recorder struct {
	mu sync.Mutex
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// RecordPhrase blocks until a phrase has been spoken and followed by
// silence, the limit is hit, or ctx is done.
func (r *Recorder) RecordPhrase(ctx context.Context, p Phrase) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf := make([]float32, frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	if p.Calibrate {
		var ambient float64
		n := int(calibrate / frameDur)
		for i := 0; i < n; i++ {
			if err := stream.Read(); err != nil {
				return nil, err
			}
			ambient = math.Max(ambient, frameRMS(buf))
		}
		if level := ambient * 1.5; level > p.Threshold {
			log.Debug("Raised onset threshold", "from", p.Threshold, "to", level)
			p.Threshold = level
		}
	}

	seg := newSegmenter(p)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}
		if seg.push(buf) {
			break
		}
	}

	return seg.result()
}

// segmenter cuts one phrase out of a stream of frames.
type segmenter struct {
	threshold float64
	wait      int
	limit     int

	speaking bool
	frames   int
	silent   int
	out      []float32
}

func newSegmenter(p Phrase) *segmenter {
	s := &segmenter{
		threshold: p.Threshold,
		wait:      int(p.Timeout / frameDur),
		limit:     int(p.Limit / frameDur),
		out:       make([]float32, 0, SampleRate*3),
	}
	if s.wait <= 0 {
		s.wait = int(5 * time.Second / frameDur)
	}
	if s.limit <= 0 {
		s.limit = int(10 * time.Second / frameDur)
	}
	return s
}

// push consumes one frame and reports whether the capture is over.
func (s *segmenter) push(frame []float32) bool {
	s.frames++

	if frameRMS(frame) > s.threshold {
		if !s.speaking {
			s.speaking = true
			s.frames = 1
		}
		s.silent = 0
		s.out = append(s.out, frame...)
		return s.frames >= s.limit
	}

	if !s.speaking {
		return s.frames >= s.wait
	}

	s.silent++
	s.out = append(s.out, frame...)
	return time.Duration(s.silent)*frameDur >= hangover || s.frames >= s.limit
}

func (s *segmenter) result() ([]float32, error) {
	if !s.speaking {
		return nil, ErrSilence
	}
	return s.out, nil
}

func frameRMS(f []float32) float64 {
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
