package dashboard

import (
	"time"

	"github.com/trezcool/cems/core"
)

// DefaultPageSize is the page size of every paginated section.
const DefaultPageSize = 10

// Options are shared by all controllers.
type Options struct {
	PageSize             int
	NotificationDuration time.Duration
	// Year filters the teacher's exam list; empty means the current year.
	Year string
	// Now defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PageSize < 1 {
		o.PageSize = DefaultPageSize
	}
	if o.NotificationDuration <= 0 {
		o.NotificationDuration = DefaultNotificationDuration
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// sequence numbers the requests of one section so only the newest response lands.
type sequence struct {
	issued uint64
}

func (s *sequence) next() uint64 {
	s.issued++
	return s.issued
}

func (s *sequence) current(n uint64) bool {
	return n == s.issued
}

// failure formats err for a section and raises an error notification for it.
func failure(notifier Notifier, opts Options, title, fallback string, err error) string {
	msg := core.FormatError(err, fallback)
	if notifier != nil {
		notifier.Notify(NewNotification(title, msg, VariantError, opts.NotificationDuration))
	}
	return msg
}

func notifySuccess(notifier Notifier, opts Options, title, description string) {
	if notifier != nil {
		notifier.Notify(NewNotification(title, description, VariantSuccess, opts.NotificationDuration))
	}
}
