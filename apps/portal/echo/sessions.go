package echoportal

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/cems/core"
	"github.com/trezcool/cems/core/auth"
	"github.com/trezcool/cems/core/dashboard"
)

const (
	contextSessionKey    = "session"
	defaultSessionCookie = "cems_session"
)

// session is one browser's sign-in and the dashboard state behind its pages.
type session struct {
	id         string
	manager    *auth.Manager
	queue      *dashboard.Queue
	student    *dashboard.StudentController
	teacher    *dashboard.TeacherController
	examCreate *dashboard.ExamCreateController
	examManage *dashboard.ExamManageController

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// sessions is the registry of live portal sessions, keyed by cookie.
type sessions struct {
	backend  Backend
	stores   TokenStores
	logger   core.Logger
	authOpts auth.Options
	dashOpts dashboard.Options
	cookie   string
	secure   bool
	idleTTL  time.Duration
	now      func() time.Time

	mu   sync.Mutex
	byID map[string]*session
}

func newSessions(deps ServerDeps) *sessions {
	conf := deps.Conf
	cookie := conf.Portal.SessionCookie
	if cookie == "" {
		cookie = defaultSessionCookie
	}
	idleTTL := conf.Portal.SessionIdleTTL
	if idleTTL <= 0 {
		idleTTL = 12 * time.Hour
	}
	return &sessions{
		backend: deps.Backend,
		stores:  deps.Stores,
		logger:  deps.Logger,
		authOpts: auth.Options{
			AdminPath:         conf.AdminPath,
			BackgroundTimeout: conf.API.BackgroundTimeout,
		},
		dashOpts: dashboard.Options{
			PageSize:             conf.PageSize,
			NotificationDuration: conf.ToastDuration,
		},
		cookie:  cookie,
		secure:  conf.Portal.SecureCookie,
		idleTTL: idleTTL,
		now:     time.Now,
		byID:    make(map[string]*session),
	}
}

// open builds the session of id. Its token store is read here, so callers
// must not hold the registry lock.
func (r *sessions) open(id string) *session {
	manager := auth.NewManager(r.backend, r.stores.Open(id), r.logger, r.authOpts)
	queue := dashboard.NewQueue()
	return &session{
		id:         id,
		manager:    manager,
		queue:      queue,
		student:    dashboard.NewStudentController(r.backend, manager, queue, r.dashOpts),
		teacher:    dashboard.NewTeacherController(r.backend, manager, queue, r.dashOpts),
		examCreate: dashboard.NewExamCreateController(r.backend, manager, queue, r.dashOpts),
		examManage: dashboard.NewExamManageController(r.backend, manager, queue, r.dashOpts),
		lastSeen:   r.now(),
	}
}

// get returns the session of id, opening it when this portal has not seen it yet.
// When two requests open the same id, the first one registered wins and only
// it resumes whatever its token store holds.
func (r *sessions) get(id string) *session {
	r.mu.Lock()
	sess, ok := r.byID[id]
	r.mu.Unlock()

	if !ok {
		opened := r.open(id)
		r.mu.Lock()
		if sess, ok = r.byID[id]; !ok {
			sess = opened
			r.byID[id] = sess
		}
		r.mu.Unlock()
		if sess == opened {
			sess.manager.Resume()
		}
	}
	sess.touch(r.now())
	return sess
}

// sweep drops the sessions idle for longer than the idle TTL and returns how many went.
func (r *sessions) sweep(now time.Time) int {
	r.mu.Lock()
	idle := make([]string, 0)
	for id, sess := range r.byID {
		if sess.idleSince(now) > r.idleTTL {
			idle = append(idle, id)
			delete(r.byID, id)
		}
	}
	r.mu.Unlock()

	for _, id := range idle {
		r.stores.Release(id)
	}
	return len(idle)
}

func (r *sessions) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// middleware attaches the caller's session, issuing a cookie to newcomers.
func (r *sessions) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var id string
		if cookie, err := ctx.Cookie(r.cookie); err == nil {
			if parsed, err := uuid.Parse(cookie.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.New().String()
			ctx.SetCookie(&http.Cookie{
				Name:     r.cookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   r.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx.Set(contextSessionKey, r.get(id))
		return next(ctx)
	}
}

func sessionFrom(ctx echo.Context) (*session, error) {
	if sess, ok := ctx.Get(contextSessionKey).(*session); ok {
		return sess, nil
	}
	return nil, errSessionMissing
}
