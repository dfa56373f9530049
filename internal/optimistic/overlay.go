// Package optimistic keeps local, not yet confirmed interaction deltas on top
// of server views. A delta is removed exactly once, by Confirm or Rollback,
// so the overlay never drifts from the server counts.
package optimistic

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/lo"

	"github.com/Victor-Weng/sunset-spot/internal/feed"
)

var ErrUnknownTicket = errors.New("optimistic: unknown or already resolved ticket")

// Delta is a local change to a post. Liked, when set, overrides the
// viewer's like state.
type Delta struct {
	Likes    int64
	Comments int64
	Liked    *bool
}

func LikeDelta() Delta {
	liked := true
	return Delta{Likes: 1, Liked: &liked}
}

func UnlikeDelta() Delta {
	liked := false
	return Delta{Likes: -1, Liked: &liked}
}

func CommentDelta() Delta {
	return Delta{Comments: 1}
}

type Ticket uint64

type pending struct {
	ticket Ticket
	postID string
	delta  Delta
}

type Overlay struct {
	mu      sync.Mutex
	next    Ticket
	pending []pending
}

func New() *Overlay {
	return &Overlay{}
}

func (o *Overlay) Apply(postID string, d Delta) Ticket {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.next++
	o.pending = append(o.pending, pending{ticket: o.next, postID: postID, delta: d})
	return o.next
}

// Confirm drops the delta once the server accepted it. The caller's next
// authoritative view already carries the change.
func (o *Overlay) Confirm(t Ticket) error {
	return o.remove(t)
}

// Rollback removes exactly the delta recorded for t.
func (o *Overlay) Rollback(t Ticket) error {
	return o.remove(t)
}

func (o *Overlay) remove(t Ticket) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	_, idx, ok := lo.FindIndexOf(o.pending, func(p pending) bool { return p.ticket == t })
	if !ok {
		return ErrUnknownTicket
	}
	o.pending = append(o.pending[:idx], o.pending[idx+1:]...)
	return nil
}

// Pending reports how many deltas are unresolved.
func (o *Overlay) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// View returns v with every pending delta for the post applied. Counts are
// floored at zero for display.
func (o *Overlay) View(v feed.PostView) feed.PostView {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, p := range o.pending {
		if p.postID != v.ID {
			continue
		}
		v.LikesCount += p.delta.Likes
		v.CommentsCount += p.delta.Comments
		if p.delta.Liked != nil {
			v.IsLiked = *p.delta.Liked
		}
	}
	v.LikesCount = max(v.LikesCount, 0)
	v.CommentsCount = max(v.CommentsCount, 0)
	return v
}

// Do applies d, runs fn and confirms on success or rolls back on error.
func (o *Overlay) Do(ctx context.Context, postID string, d Delta, fn func(context.Context) error) error {
	t := o.Apply(postID, d)
	if err := fn(ctx); err != nil {
		_ = o.Rollback(t)
		return err
	}
	return o.Confirm(t)
}
