package dashboard

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// TeacherState is what the teacher dashboard shows. Each section carries its own error.
type TeacherState struct {
	Summary        *TeacherDashboard `json:"summary"`
	SummaryLoading bool              `json:"summaryLoading"`
	SummaryError   string            `json:"summaryError,omitempty"`

	Classes        Collection[TeacherClass] `json:"classes"`
	ClassesLoading bool                     `json:"classesLoading"`
	ClassesError   string                   `json:"classesError,omitempty"`

	SelectedClassID   *int                    `json:"selectedClassId"`
	ClassExams        Collection[TeacherExam] `json:"classExams"`
	ClassExamsLoading bool                    `json:"classExamsLoading"`
	ClassExamsError   string                  `json:"classExamsError,omitempty"`

	Exams        Collection[TeacherExam] `json:"exams"`
	ExamsLoading bool                    `json:"examsLoading"`
	ExamsError   string                  `json:"examsError,omitempty"`
}

// TeacherController loads the teacher dashboard: summary, classes, the exams
// of the selected class and the teacher's own exams.
type TeacherController struct {
	backend  Backend
	session  Session
	notifier Notifier
	opts     Options

	mu      sync.Mutex
	state   TeacherState
	summary sequence
	classes sequence
	byClass sequence
	exams   sequence
}

func NewTeacherController(backend Backend, session Session, notifier Notifier, opts Options) *TeacherController {
	opts = opts.withDefaults()
	return &TeacherController{
		backend:  backend,
		session:  session,
		notifier: notifier,
		opts:     opts,
		state: TeacherState{
			Classes:    emptyCollection[TeacherClass](opts.PageSize),
			ClassExams: emptyCollection[TeacherExam](opts.PageSize),
			Exams:      emptyCollection[TeacherExam](opts.PageSize),
		},
	}
}

func (c *TeacherController) State() TeacherState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Load fetches every section from its first page. Sections fail independently;
// the first error is returned.
func (c *TeacherController) Load(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return c.loadSummary(ctx) })
	g.Go(func() error { return c.loadClasses(ctx, 1) })
	g.Go(func() error { return c.loadExams(ctx, 1) })
	return g.Wait()
}

func (c *TeacherController) ChangeClassesPage(ctx context.Context, page int) error {
	if page < 1 {
		return nil
	}
	return c.loadClasses(ctx, page)
}

// SelectClass shows the first page of exams of a class.
func (c *TeacherController) SelectClass(ctx context.Context, classID int) error {
	return c.loadClassExams(ctx, classID, 1)
}

// ChangeClassExamsPage is a no-op without a selected class.
func (c *TeacherController) ChangeClassExamsPage(ctx context.Context, page int) error {
	if page < 1 {
		return nil
	}
	c.mu.Lock()
	selected := c.state.SelectedClassID
	c.mu.Unlock()
	if selected == nil {
		return nil
	}
	return c.loadClassExams(ctx, *selected, page)
}

func (c *TeacherController) ChangeExamsPage(ctx context.Context, page int) error {
	if page < 1 {
		return nil
	}
	return c.loadExams(ctx, page)
}

func (c *TeacherController) loadSummary(ctx context.Context) error {
	c.mu.Lock()
	n := c.summary.next()
	c.state.SummaryLoading = true
	c.state.SummaryError = ""
	c.mu.Unlock()

	data, err := c.backend.TeacherDashboard(ctx, c.session.Authorization())

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.summary.current(n) {
		return nil
	}
	c.state.SummaryLoading = false
	if err != nil {
		c.state.SummaryError = failure(c.notifier, c.opts, "Failed to load dashboard", "Unable to load teacher dashboard.", err)
		return err
	}
	c.state.Summary = &data
	return nil
}

// loadClasses selects the first class of the page, or clears the selection when the page is empty.
func (c *TeacherController) loadClasses(ctx context.Context, page int) error {
	c.mu.Lock()
	n := c.classes.next()
	c.state.ClassesLoading = true
	c.state.ClassesError = ""
	c.mu.Unlock()

	res, err := c.backend.TeacherClasses(ctx, c.session.Authorization(), PageQuery{Page: page, PageSize: c.opts.PageSize})

	c.mu.Lock()
	if !c.classes.current(n) {
		c.mu.Unlock()
		return nil
	}
	c.state.ClassesLoading = false
	if err != nil {
		c.state.ClassesError = failure(c.notifier, c.opts, "Failed to load classes", "Unable to load classes.", err)
		c.mu.Unlock()
		return err
	}
	c.state.Classes = NewCollection(res, page, c.opts.PageSize)
	if len(c.state.Classes.Items) == 0 {
		c.byClass.next() // outdate any class exams in flight
		c.state.SelectedClassID = nil
		c.state.ClassExams = emptyCollection[TeacherExam](c.opts.PageSize)
		c.state.ClassExamsLoading = false
		c.mu.Unlock()
		return nil
	}
	first := c.state.Classes.Items[0].ClassOfferingID
	c.mu.Unlock()
	return c.loadClassExams(ctx, first, 1)
}

func (c *TeacherController) loadClassExams(ctx context.Context, classID, page int) error {
	c.mu.Lock()
	n := c.byClass.next()
	c.state.SelectedClassID = &classID
	c.state.ClassExamsLoading = true
	c.state.ClassExamsError = ""
	c.mu.Unlock()

	res, err := c.backend.TeacherClassExams(ctx, c.session.Authorization(), classID, PageQuery{Page: page, PageSize: c.opts.PageSize})

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.byClass.current(n) {
		return nil
	}
	c.state.ClassExamsLoading = false
	if err != nil {
		c.state.ClassExamsError = failure(c.notifier, c.opts, "Failed to load class exams", "Unable to load exams for class.", err)
		c.state.ClassExams = emptyCollection[TeacherExam](c.opts.PageSize)
		return err
	}
	c.state.ClassExams = NewCollection(res, page, c.opts.PageSize)
	return nil
}

func (c *TeacherController) loadExams(ctx context.Context, page int) error {
	c.mu.Lock()
	n := c.exams.next()
	c.state.ExamsLoading = true
	c.state.ExamsError = ""
	c.mu.Unlock()

	res, err := c.backend.TeacherExams(ctx, c.session.Authorization(), PageQuery{Page: page, PageSize: c.opts.PageSize, Year: c.opts.Year})

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.exams.current(n) {
		return nil
	}
	c.state.ExamsLoading = false
	if err != nil {
		c.state.ExamsError = failure(c.notifier, c.opts, "Failed to load exams", "Unable to load exams.", err)
		return err
	}
	c.state.Exams = NewCollection(res, page, c.opts.PageSize)
	return nil
}
