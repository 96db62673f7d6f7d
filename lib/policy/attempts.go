package policy

import (
	"context"
	"errors"
	"time"

	"github.com/TecharoHQ/captchamodal/internal"
	"github.com/TecharoHQ/captchamodal/lib/store"
)

// Subject identifies who is about to perform a CAPTCHA-protected action.
type Subject struct {
	Owner       string
	Application string
	User        string
}

func (s Subject) key() string {
	return internal.FastHash(s.Owner + "/" + s.Application + "/" + s.User)
}

type attempts struct {
	Count int       `json:"count"`
	Last  time.Time `json:"last"`
}

// AttemptTracker counts failed attempts per subject. Every recorded failure
// pushes the expiry of the whole counter forward.
type AttemptTracker struct {
	db     store.JSON[attempts]
	expiry time.Duration
}

func NewAttemptTracker(st store.Interface, expiry time.Duration) *AttemptTracker {
	return &AttemptTracker{
		db: store.JSON[attempts]{
			Underlying: st,
			Prefix:     "attempts:",
		},
		expiry: expiry,
	}
}

// Failures returns the number of failures recorded for s that have not expired.
func (at *AttemptTracker) Failures(ctx context.Context, s Subject) (int, error) {
	a, err := at.db.Get(ctx, s.key())
	switch {
	case errors.Is(err, store.ErrNotFound):
		return 0, nil
	case err != nil:
		return 0, err
	}

	return a.Count, nil
}

// RecordFailure adds one failure for s and returns the new count.
func (at *AttemptTracker) RecordFailure(ctx context.Context, s Subject) (int, error) {
	a, err := at.db.Update(ctx, s.key(), at.expiry, func(a attempts) attempts {
		a.Count++
		a.Last = time.Now()
		return a
	})
	if err != nil {
		return 0, err
	}

	failuresRecorded.WithLabelValues(s.Application).Inc()

	return a.Count, nil
}

// Reset forgets every failure recorded for s.
func (at *AttemptTracker) Reset(ctx context.Context, s Subject) error {
	if err := at.db.Delete(ctx, s.key()); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	return nil
}
