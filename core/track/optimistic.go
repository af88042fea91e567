package track

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/darasa/core/cache"
)

var (
	// errors
	ErrMutationPending = errors.New("a progress update for this course is already in flight")
)

// mutationState is the tagged state of one aggregate's optimistic
// transition.
type mutationState int

const (
	// stateAuthoritative: value equals the last confirmed server state.
	stateAuthoritative mutationState = iota
	// stateOptimistic: a local overlay is applied and the server write
	// is still in flight.
	stateOptimistic
	// stateRolledBack: the write failed and the overlay was discarded.
	stateRolledBack
)

type mutation struct {
	state   mutationState
	base    Progress // last authoritative value, restored on rollback
	overlay Progress
}

// MarkLessonComplete applies the completion locally first, then writes
// it to the remote store in the background.
//
// The returned Progress is the optimistic overlay, visible to all
// readers immediately. The channel resolves once the server write does:
// nil means the overlay was confirmed and is now authoritative; an error
// means the overlay was discarded and the prior authoritative value
// restored, so the caller can show a failure.
//
// The base of the overlay is always an authoritative value: when the
// session has no cached progress yet, it is fetched from the remote
// store first, so a cold mark-complete cannot clobber the server's
// completed set. Only one transition may be in flight per (user, course)
// aggregate. A second call while one is pending returns
// ErrMutationPending: a new overlay must not be computed from a base
// that is itself unconfirmed.
func (svc *Service) MarkLessonComplete(ctx context.Context, userID, courseID, lessonID string) (Progress, <-chan error, error) {
	key := ProgressKey(userID, courseID)
	done := make(chan error, 1)

	svc.mu.Lock()
	if m, ok := svc.pending[key]; ok && m.state == stateOptimistic {
		svc.mu.Unlock()
		return Progress{}, nil, ErrMutationPending
	}
	svc.mu.Unlock()

	// may hit the network on a cold cache; done outside the lock
	base, err := svc.authoritativeProgress(ctx, userID, courseID)
	if err != nil {
		return Progress{}, nil, err
	}

	svc.mu.Lock()
	if m, ok := svc.pending[key]; ok && m.state == stateOptimistic {
		svc.mu.Unlock()
		return Progress{}, nil, ErrMutationPending
	}
	if base.IsCompleted(lessonID) {
		svc.mu.Unlock()
		done <- nil
		return base, done, nil
	}
	overlay := base.withCompleted(lessonID)
	overlay.UpdatedAt = time.Now().UTC()
	m := &mutation{state: stateOptimistic, base: base, overlay: overlay}
	svc.pending[key] = m
	svc.mu.Unlock()

	svc.store.Set(cache.KindProgress, key, overlay)

	go func() {
		err := svc.ds.SetDocument(ctx, progressPath(userID), courseID, progressFields(overlay), true /* merge */)

		svc.mu.Lock()
		if err != nil {
			m.state = stateRolledBack
		} else {
			m.state = stateAuthoritative
		}
		delete(svc.pending, key)
		svc.mu.Unlock()

		if err != nil {
			// discard the overlay, restore the prior authoritative value
			svc.store.Set(cache.KindProgress, key, base)
			svc.log.Error("track: marking lesson "+lessonID+" complete failed, rolled back", err)
			done <- err
			return
		}
		// confirmed echo becomes the authoritative value
		svc.store.Set(cache.KindProgress, key, overlay)
		done <- nil
	}()

	return overlay, done, nil
}

// MutationPending reports whether an optimistic progress transition is
// in flight for the aggregate.
func (svc *Service) MutationPending(userID, courseID string) bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	m, ok := svc.pending[ProgressKey(userID, courseID)]
	return ok && m.state == stateOptimistic
}
