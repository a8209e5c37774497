package speech

import (
	"context"
	"time"
)

// Injector lets typed text stand in for speech. Pending text wins over
// the wrapped listener; with no listener it waits on the queue alone.
type Injector struct {
	next  Listener
	queue chan string
}

func NewInjector(next Listener, size int) *Injector {
	if size <= 0 {
		size = 8
	}
	return &Injector{next: next, queue: make(chan string, size)}
}

// Inject queues text for the next capture. It reports false when the
// queue is full.
func (i *Injector) Inject(text string) bool {
	select {
	case i.queue <- text:
		return true
	default:
		return false
	}
}

func (i *Injector) Capture(ctx context.Context, p Profile) (Utterance, error) {
	select {
	case t := <-i.queue:
		return NewUtterance(t, time.Now()), nil
	default:
	}

	if i.next != nil {
		return i.next.Capture(ctx, p)
	}

	timer := time.NewTimer(p.Timeout)
	defer timer.Stop()

	select {
	case t := <-i.queue:
		return NewUtterance(t, time.Now()), nil
	case <-timer.C:
		return Utterance{}, ErrNoSpeech
	case <-ctx.Done():
		return Utterance{}, ctx.Err()
	}
}
