// Package events publishes domain events after a mutation commits. Delivery
// is best effort: a failed publish never undoes the mutation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kgo "github.com/segmentio/kafka-go"

	"github.com/Victor-Weng/sunset-spot/internal/logs"
	"github.com/Victor-Weng/sunset-spot/internal/metrics"
)

const (
	PostCreated    = "post.created"
	PostLiked      = "post.liked"
	PostUnliked    = "post.unliked"
	CommentCreated = "comment.created"
	UserFollowed   = "user.followed"
	UserUnfollowed = "user.unfollowed"
)

type Event struct {
	Type       string         `json:"type"`
	ActorID    string         `json:"actor_id"`
	SubjectID  string         `json:"subject_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Emit publishes e and logs a failure instead of returning it.
func Emit(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	err := p.Publish(ctx, e)
	metrics.EventsPublished.WithLabelValues(e.Type, metrics.Outcome(err)).Inc()
	if err != nil {
		logs.LogJSON("WARN", "Event publish failed", map[string]interface{}{
			"error": err.Error(),
			"extra": fmt.Sprintf("%s %s", e.Type, e.SubjectID),
		})
	}
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Kafka writes events as JSON, keyed by subject id so one post's events stay
// ordered within a partition.
type Kafka struct {
	w *kgo.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{w: &kgo.Writer{
		Addr:         kgo.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kgo.Hash{},
		RequiredAcks: kgo.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (k *Kafka) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return k.w.WriteMessages(ctx, kgo.Message{
		Key:   []byte(e.SubjectID),
		Value: b,
		Time:  e.OccurredAt,
	})
}

func (k *Kafka) Close() error { return k.w.Close() }

// Recorder keeps published events in memory. Used by tests.
type Recorder struct {
	ch chan Event
}

func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan Event, size)}
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	select {
	case r.ch <- e:
		return nil
	default:
		return fmt.Errorf("recorder full")
	}
}

func (r *Recorder) Close() error { return nil }

// Drain returns every event recorded so far.
func (r *Recorder) Drain() []Event {
	var out []Event
	for {
		select {
		case e := <-r.ch:
			out = append(out, e)
		default:
			return out
		}
	}
}
