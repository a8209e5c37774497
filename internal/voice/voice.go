// Package voice turns microphone audio, or recorded clips, into
// utterances.
package voice

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"swar/internal/audio"
	"swar/internal/speech"
	"swar/pkg/audioconv"
)

type Recorder interface {
	RecordPhrase(ctx context.Context, p audio.Phrase) ([]float32, error)
}

// Transcriber returns the raw recognizer text for 16 kHz mono PCM.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

// Cue is played before a command capture.
type Cue interface {
	Play(ctx context.Context) error
}

// Mic is the live speech.Listener.
type Mic struct {
	rec Recorder
	tr  Transcriber
	cue Cue
}

func NewMic(rec Recorder, tr Transcriber, cue Cue) *Mic {
	return &Mic{rec: rec, tr: tr, cue: cue}
}

func (m *Mic) Capture(ctx context.Context, p speech.Profile) (speech.Utterance, error) {
	if p.Cue && m.cue != nil {
		if err := m.cue.Play(ctx); err != nil && ctx.Err() == nil {
			log.Warn("Failed to play cue", "err", err)
		}
	}

	pcm, err := m.rec.RecordPhrase(ctx, audio.Phrase{
		Timeout:   p.Timeout,
		Limit:     p.PhraseLimit,
		Threshold: p.Threshold,
		Calibrate: p.Calibrate,
	})
	if errors.Is(err, audio.ErrSilence) {
		return speech.Utterance{}, speech.ErrNoSpeech
	}
	if err != nil {
		return speech.Utterance{}, fmt.Errorf("record: %w", err)
	}

	return transcribe(ctx, m.tr, pcm)
}

func transcribe(ctx context.Context, tr Transcriber, pcm []float32) (speech.Utterance, error) {
	start := time.Now()
	text, err := tr.Transcribe(ctx, pcm)
	if err != nil {
		return speech.Utterance{}, fmt.Errorf("transcribe: %w", err)
	}

	u := speech.NewUtterance(text, time.Now())
	log.Debug("Transcribed", "text", u.Text, "samples", len(pcm), "took", time.Since(start))
	if u.Empty() {
		return speech.Utterance{}, speech.ErrNoSpeech
	}
	return u, nil
}

// Replay feeds recorded clips, in order, as if they had been spoken in
// reply to command prompts. Interrupt polls and captures after the last
// clip hear a silent room.
type Replay struct {
	tr Transcriber

	mu    sync.Mutex
	clips []string
}

// NewReplay accepts a directory of clips or a comma separated list of
// files. Directory entries are replayed in name order.
func NewReplay(tr Transcriber, source string) (*Replay, error) {
	var clips []string

	if info, err := os.Stat(source); err == nil && info.IsDir() {
		entries, err := os.ReadDir(source)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() {
				clips = append(clips, filepath.Join(source, e.Name()))
			}
		}
		sort.Strings(clips)
	} else {
		for _, p := range strings.Split(source, ",") {
			if p = strings.TrimSpace(p); p != "" {
				clips = append(clips, p)
			}
		}
	}

	if len(clips) == 0 {
		return nil, fmt.Errorf("no clips in %q", source)
	}
	return &Replay{tr: tr, clips: clips}, nil
}

func (r *Replay) next() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clips) == 0 {
		return "", false
	}
	c := r.clips[0]
	r.clips = r.clips[1:]
	return c, true
}

func (r *Replay) Capture(ctx context.Context, p speech.Profile) (speech.Utterance, error) {
	clip, ok := "", false
	if p.Cue {
		clip, ok = r.next()
	}
	if !ok {
		select {
		case <-time.After(p.Timeout):
			return speech.Utterance{}, speech.ErrNoSpeech
		case <-ctx.Done():
			return speech.Utterance{}, ctx.Err()
		}
	}

	pcm, err := audioconv.DecodeFile(clip, int(p.PhraseLimit.Seconds()*audioconv.TargetRate))
	if err != nil {
		return speech.Utterance{}, fmt.Errorf("decode %s: %w", clip, err)
	}
	log.Info("Replaying clip", "file", clip, "samples", len(pcm))
	return transcribe(ctx, r.tr, pcm)
}
