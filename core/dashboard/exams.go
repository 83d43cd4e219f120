package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/cems/core"
	"github.com/trezcool/cems/core/auth"
)

const (
	// ExamMaxMarks is the fixed maximum of every exam.
	ExamMaxMarks = 100
	dateLayout   = "2006-01-02"
)

var (
	ErrNotAuthenticated = errors.New("You are not authenticated.")
	ErrNoAssignment     = errors.New("Select an assignment.")
	ErrTitleDate        = errors.New("Title and date are required.")
	ErrDateNotToday     = errors.New("Exam date must be today (no future or past dates).")
	ErrMaxMarks         = errors.New("Max marks is fixed at 100 per exam.")
	ErrNoExam           = errors.New("No exam selected.")
	ErrReadOnly         = errors.New("This exam is read-only.")
)

// ExamForm is the exam creation form.
type ExamForm struct {
	AssignmentID int     `json:"assignment_id" form:"assignment_id"`
	Title        string  `json:"title" form:"title"`
	Date         string  `json:"date" form:"date"`
	MaxMarks     float64 `json:"max_marks" form:"max_marks"`
}

type ExamCreateState struct {
	Loading     bool         `json:"loading"`
	Error       string       `json:"error,omitempty"`
	Assignments []Assignment `json:"assignments"`
	Form        ExamForm     `json:"form"`
	Submitting  bool         `json:"submitting"`
	Created     *CreatedExam `json:"created"`
}

// ExamCreateController creates exams for one of the teacher's current assignments.
type ExamCreateController struct {
	backend  Backend
	session  Session
	notifier Notifier
	opts     Options

	mu    sync.Mutex
	state ExamCreateState
	seq   sequence
}

func NewExamCreateController(backend Backend, session Session, notifier Notifier, opts Options) *ExamCreateController {
	c := &ExamCreateController{
		backend:  backend,
		session:  session,
		notifier: notifier,
		opts:     opts.withDefaults(),
	}
	c.state.Assignments = []Assignment{}
	c.state.Form = c.DefaultForm()
	return c
}

// DefaultForm is dated today with the fixed max marks.
func (c *ExamCreateController) DefaultForm() ExamForm {
	return ExamForm{Date: c.today(), MaxMarks: ExamMaxMarks}
}

func (c *ExamCreateController) today() string {
	return c.opts.Now().Format(dateLayout)
}

func (c *ExamCreateController) State() ExamCreateState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Load fetches the assignments an exam can be created for.
func (c *ExamCreateController) Load(ctx context.Context) error {
	c.mu.Lock()
	n := c.seq.next()
	c.state.Loading = true
	c.state.Error = ""
	c.mu.Unlock()

	assignments, err := c.backend.CurrentAssignments(ctx, c.session.Authorization())

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.seq.current(n) {
		return nil
	}
	c.state.Loading = false
	if err != nil {
		c.state.Error = failure(c.notifier, c.opts, "Failed to load assignments", "Unable to load assignments.", err)
		return err
	}
	if assignments == nil {
		assignments = []Assignment{}
	}
	c.state.Assignments = assignments
	return nil
}

// Validate checks form against the exam rules.
func (c *ExamCreateController) Validate(form ExamForm) error {
	switch {
	case form.AssignmentID == 0:
		return ErrNoAssignment
	case strings.TrimSpace(form.Title) == "" || strings.TrimSpace(form.Date) == "":
		return ErrTitleDate
	case form.Date != c.today():
		return ErrDateNotToday
	case form.MaxMarks != ExamMaxMarks:
		return ErrMaxMarks
	}
	return nil
}

// Create validates form and creates the exam.
func (c *ExamCreateController) Create(ctx context.Context, form ExamForm) (CreatedExam, error) {
	authz := c.session.Authorization()

	c.mu.Lock()
	c.state.Form = form
	c.state.Created = nil
	err := c.Validate(form)
	if err == nil && !authz.Pair.Valid() {
		err = ErrNotAuthenticated
	}
	if err != nil {
		c.state.Error = err.Error()
		c.mu.Unlock()
		return CreatedExam{}, err
	}
	c.state.Error = ""
	c.state.Submitting = true
	c.mu.Unlock()

	exam, err := c.backend.CreateExam(ctx, authz, NewExam{
		AssignmentID: form.AssignmentID,
		Title:        strings.TrimSpace(form.Title),
		Date:         form.Date,
		MaxMarks:     form.MaxMarks,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Submitting = false
	if err != nil {
		c.state.Error = failure(c.notifier, c.opts, "Creation failed", "Could not create exam.", err)
		return CreatedExam{}, err
	}
	c.state.Created = &exam
	c.state.Form = c.DefaultForm()
	notifySuccess(c.notifier, c.opts, "Exam created", fmt.Sprintf("%q has been created.", exam.Title))
	return exam, nil
}

// ManagePath is where a created exam is managed.
func ManagePath(examID int) string {
	return auth.PathTeacherExamManage + "?examId=" + strconv.Itoa(examID)
}

// RosterRow is a roster entry with the mark being edited.
type RosterRow struct {
	RosterEntry
	PendingMark *float64 `json:"pending_mark"`
}

// Mark is the value that would be saved: the pending mark, else the existing one.
func (r RosterRow) Mark() *float64 {
	if r.PendingMark != nil {
		return r.PendingMark
	}
	return r.ExistingMark
}

type ExamManageState struct {
	ExamID  int         `json:"examId"`
	Loading bool        `json:"loading"`
	Error   string      `json:"error,omitempty"`
	Detail  *ExamDetail `json:"detail"`
	Roster  []RosterRow `json:"roster"`
	Saving  bool        `json:"saving"`
	Saved   *SavedMarks `json:"saved"`
}

// ExamManageController edits the marks of one exam.
type ExamManageController struct {
	backend  Backend
	session  Session
	notifier Notifier
	opts     Options

	mu    sync.Mutex
	state ExamManageState
	seq   sequence
}

func NewExamManageController(backend Backend, session Session, notifier Notifier, opts Options) *ExamManageController {
	return &ExamManageController{
		backend:  backend,
		session:  session,
		notifier: notifier,
		opts:     opts.withDefaults(),
		state:    ExamManageState{Roster: []RosterRow{}},
	}
}

func (c *ExamManageController) State() ExamManageState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	st.Roster = append([]RosterRow(nil), c.state.Roster...)
	return st
}

// Load fetches the exam and its roster; pending marks start from the existing ones.
func (c *ExamManageController) Load(ctx context.Context, examID int) error {
	c.mu.Lock()
	n := c.seq.next()
	c.state = ExamManageState{ExamID: examID, Roster: []RosterRow{}}
	if examID <= 0 {
		c.state.Error = ErrNoExam.Error()
		c.mu.Unlock()
		return ErrNoExam
	}
	c.state.Loading = true
	c.mu.Unlock()

	detail, err := c.backend.ExamDetail(ctx, c.session.Authorization(), examID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.seq.current(n) {
		return nil
	}
	c.state.Loading = false
	if err != nil {
		c.state.Error = failure(c.notifier, c.opts, "Failed to load exam", "Unable to load exam.", err)
		return err
	}
	c.state.Detail = &detail
	c.state.Roster = make([]RosterRow, 0, len(detail.Roster))
	for _, entry := range detail.Roster {
		row := RosterRow{RosterEntry: entry}
		if entry.ExistingMark != nil {
			mark := *entry.ExistingMark
			row.PendingMark = &mark
		}
		c.state.Roster = append(c.state.Roster, row)
	}
	return nil
}

// SetMark edits the pending mark of a student; nil clears it.
func (c *ExamManageController) SetMark(enrollmentID int, mark *float64) error {
	return c.SetMarks(map[int]*float64{enrollmentID: mark})
}

// SetMarks edits several pending marks at once, keyed by student enrollment.
// Either every edit applies or none does.
func (c *ExamManageController) SetMarks(marks map[int]*float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Detail == nil {
		return ErrNoExam
	}
	if !c.state.Detail.AllowEdit {
		return ErrReadOnly
	}

	ids := make([]int, 0, len(marks))
	for id := range marks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	rows := make([]int, len(ids))
	for i, id := range ids {
		row, err := c.rosterRow(id, marks[id])
		if err != nil {
			return err
		}
		rows[i] = row
	}
	for i, id := range ids {
		mark := marks[id]
		if mark != nil {
			m := *mark
			mark = &m
		}
		c.state.Roster[rows[i]].PendingMark = mark
	}
	return nil
}

// rosterRow checks mark against the exam and finds the row it belongs to.
func (c *ExamManageController) rosterRow(enrollmentID int, mark *float64) (int, error) {
	if mark != nil && (*mark < 0 || *mark > c.state.Detail.Exam.MaxMarks) {
		return 0, core.NewValidationError(nil, core.FieldError{
			Field: "marks_obtained",
			Error: fmt.Sprintf("must be between 0 and %g", c.state.Detail.Exam.MaxMarks),
		})
	}
	for i := range c.state.Roster {
		if c.state.Roster[i].StudentEnrollmentID == enrollmentID {
			return i, nil
		}
	}
	return 0, errors.Errorf("student enrollment %d is not on the roster", enrollmentID)
}

// Save posts every roster row holding a mark.
func (c *ExamManageController) Save(ctx context.Context) (SavedMarks, error) {
	c.mu.Lock()
	detail := c.state.Detail
	switch {
	case detail == nil:
		c.mu.Unlock()
		return SavedMarks{}, ErrNoExam
	case !detail.AllowEdit:
		c.mu.Unlock()
		return SavedMarks{}, ErrReadOnly
	}
	marks := make([]MarkEntry, 0, len(c.state.Roster))
	for _, row := range c.state.Roster {
		if mark := row.Mark(); mark != nil {
			marks = append(marks, MarkEntry{StudentEnrollmentID: row.StudentEnrollmentID, MarksObtained: *mark})
		}
	}
	examID := detail.Exam.ID
	c.state.Saving = true
	c.state.Saved = nil
	c.mu.Unlock()

	res, err := c.backend.SaveMarks(ctx, c.session.Authorization(), examID, marks)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Saving = false
	if err != nil {
		failure(c.notifier, c.opts, "Save failed", "Could not save marks.", err)
		return SavedMarks{}, err
	}
	c.state.Saved = &res
	notifySuccess(c.notifier, c.opts, "Marks saved", fmt.Sprintf("%d marks saved.", res.Saved))
	return res, nil
}
