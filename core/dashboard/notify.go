package dashboard

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultNotificationDuration is how long a notification stays visible.
const DefaultNotificationDuration = 4200 * time.Millisecond

type Variant string

const (
	VariantSuccess Variant = "success"
	VariantError   Variant = "error"
	VariantInfo    Variant = "info"
)

// Notification is a transient message shown next to a page.
type Notification struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Variant     Variant       `json:"variant"`
	Duration    time.Duration `json:"duration"`
}

func NewNotification(title, description string, variant Variant, duration time.Duration) Notification {
	if duration <= 0 {
		duration = DefaultNotificationDuration
	}
	if variant == "" {
		variant = VariantInfo
	}
	return Notification{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Variant:     variant,
		Duration:    duration,
	}
}

// Notifier shows notifications.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type queued struct {
	notification Notification
	expires      time.Time
}

// Queue holds notifications until they are drained or expire.
type Queue struct {
	now func() time.Time

	mu    sync.Mutex
	items []queued
}

var _ Notifier = (*Queue)(nil)

func NewQueue() *Queue {
	return &Queue{now: time.Now}
}

func (q *Queue) Notify(n Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, queued{notification: n, expires: q.now().Add(n.Duration)})
}

// Drain returns the live notifications, oldest first, and empties the queue.
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	live := make([]Notification, 0, len(q.items))
	for _, item := range q.items {
		if now.Before(item.expires) {
			live = append(live, item.notification)
		}
	}
	q.items = nil
	return live
}
