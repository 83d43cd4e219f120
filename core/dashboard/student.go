package dashboard

import (
	"context"
	"sync"
)

// StudentState is what the student dashboard shows.
type StudentState struct {
	Loading      bool                      `json:"loading"`
	Error        string                    `json:"error,omitempty"`
	Profile      *StudentProfile           `json:"profile"`
	Enrollment   *Enrollment               `json:"enrollment"`
	Subjects     []Subject                 `json:"subjects"`
	CurrentGrade *string                   `json:"currentGrade"`
	Upcoming     Collection[UpcomingExam]  `json:"upcoming"`
	Marks        Collection[MarkRecord]    `json:"marks"`
	History      Collection[HistoryRecord] `json:"history"`
}

type studentPages struct {
	upcoming, marks, history int
}

// StudentController loads the student dashboard: upcoming exams, marks and
// history, each paginated on its own cursor.
type StudentController struct {
	backend  Backend
	session  Session
	notifier Notifier
	opts     Options

	mu    sync.Mutex
	state StudentState
	pages studentPages
	seq   sequence
}

func NewStudentController(backend Backend, session Session, notifier Notifier, opts Options) *StudentController {
	opts = opts.withDefaults()
	return &StudentController{
		backend:  backend,
		session:  session,
		notifier: notifier,
		opts:     opts,
		pages:    studentPages{upcoming: 1, marks: 1, history: 1},
		state: StudentState{
			Upcoming: emptyCollection[UpcomingExam](opts.PageSize),
			Marks:    emptyCollection[MarkRecord](opts.PageSize),
			History:  emptyCollection[HistoryRecord](opts.PageSize),
		},
	}
}

// State returns a snapshot of the dashboard.
func (c *StudentController) State() StudentState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Load fetches the dashboard at the current cursors.
func (c *StudentController) Load(ctx context.Context) error {
	c.mu.Lock()
	pages := c.pages
	c.mu.Unlock()
	return c.load(ctx, pages)
}

func (c *StudentController) ChangeUpcomingPage(ctx context.Context, page int) error {
	return c.changePage(ctx, page, func(p *studentPages) { p.upcoming = page })
}

func (c *StudentController) ChangeMarksPage(ctx context.Context, page int) error {
	return c.changePage(ctx, page, func(p *studentPages) { p.marks = page })
}

func (c *StudentController) ChangeHistoryPage(ctx context.Context, page int) error {
	return c.changePage(ctx, page, func(p *studentPages) { p.history = page })
}

// LoadPages moves every cursor given a page of 1 or more, then loads once.
func (c *StudentController) LoadPages(ctx context.Context, upcoming, marks, history int) error {
	c.mu.Lock()
	if upcoming >= 1 {
		c.pages.upcoming = upcoming
	}
	if marks >= 1 {
		c.pages.marks = marks
	}
	if history >= 1 {
		c.pages.history = history
	}
	pages := c.pages
	c.mu.Unlock()
	return c.load(ctx, pages)
}

// changePage ignores pages below 1.
func (c *StudentController) changePage(ctx context.Context, page int, set func(*studentPages)) error {
	if page < 1 {
		return nil
	}
	c.mu.Lock()
	set(&c.pages)
	pages := c.pages
	c.mu.Unlock()
	return c.load(ctx, pages)
}

func (c *StudentController) load(ctx context.Context, pages studentPages) error {
	c.mu.Lock()
	n := c.seq.next()
	c.state.Loading = true
	c.state.Error = ""
	c.mu.Unlock()

	data, err := c.backend.StudentDashboard(ctx, c.session.Authorization(), StudentQuery{
		UpcomingPage: pages.upcoming,
		MarksPage:    pages.marks,
		HistoryPage:  pages.history,
		PageSize:     c.opts.PageSize,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.seq.current(n) {
		return nil
	}
	c.state.Loading = false
	if err != nil {
		c.state.Error = failure(c.notifier, c.opts, "Failed to load dashboard", "Unable to load student dashboard.", err)
		return err
	}
	profile := data.Profile
	c.state.Profile = &profile
	c.state.Enrollment = data.Enrollment
	c.state.Subjects = data.Subjects
	c.state.CurrentGrade = data.CurrentGrade
	c.state.Upcoming = NewCollection(data.UpcomingExams, pages.upcoming, c.opts.PageSize)
	c.state.Marks = NewCollection(data.Marks, pages.marks, c.opts.PageSize)
	c.state.History = NewCollection(data.History, pages.history, c.opts.PageSize)
	return nil
}
