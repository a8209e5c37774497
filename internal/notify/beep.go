package notify

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

const speakerRate = beep.SampleRate(44100)

var (
	speakerOnce sync.Once
	speakerErr  error
)

// Cue plays a short mp3 before the assistant starts listening. The clip
// is decoded once and replayed from memory.
type Cue struct {
	buf *beep.Buffer
}

func NewCue(path string) (*Cue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cue: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode cue: %w", err)
	}
	defer streamer.Close()

	speakerOnce.Do(func() {
		speakerErr = speaker.Init(speakerRate, speakerRate.N(time.Second/10))
	})
	if speakerErr != nil {
		return nil, fmt.Errorf("init speaker: %w", speakerErr)
	}

	buf := beep.NewBuffer(beep.Format{SampleRate: speakerRate, NumChannels: 2, Precision: 2})
	buf.Append(beep.Resample(4, format.SampleRate, speakerRate, streamer))
	return &Cue{buf: buf}, nil
}

// Play blocks until the cue finished or ctx is done.
func (c *Cue) Play(ctx context.Context) error {
	if c == nil {
		return nil
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(c.buf.Streamer(0, c.buf.Len()), beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}
