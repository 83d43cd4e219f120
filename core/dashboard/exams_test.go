package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cems/core"
)

var examDay = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func examOptions() Options {
	return Options{Now: func() time.Time { return examDay }}
}

func TestExamCreateController_Validate(t *testing.T) {
	c := NewExamCreateController(&fakeBackend{}, signedIn(), nil, examOptions())
	valid := ExamForm{AssignmentID: 2, Title: "Midterm", Date: "2026-03-02", MaxMarks: 100}

	tests := []struct {
		name string
		edit func(f *ExamForm)
		want error
	}{
		{name: "valid", edit: func(f *ExamForm) {}, want: nil},
		{name: "no assignment", edit: func(f *ExamForm) { f.AssignmentID = 0 }, want: ErrNoAssignment},
		{name: "blank title", edit: func(f *ExamForm) { f.Title = "  " }, want: ErrTitleDate},
		{name: "no date", edit: func(f *ExamForm) { f.Date = "" }, want: ErrTitleDate},
		{name: "tomorrow", edit: func(f *ExamForm) { f.Date = "2026-03-03" }, want: ErrDateNotToday},
		{name: "max marks", edit: func(f *ExamForm) { f.MaxMarks = 50 }, want: ErrMaxMarks},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := valid
			tt.edit(&form)
			assert.Equal(t, tt.want, c.Validate(form))
		})
	}
	assert.Equal(t, ExamForm{Date: "2026-03-02", MaxMarks: 100}, c.DefaultForm())
}

func TestExamCreateController_Create(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		backend := &fakeBackend{
			assignments: []Assignment{{ID: 2, AcademicYear: "2025/26"}},
			created:     CreatedExam{ID: 9, Title: "Midterm"},
		}
		notes := &recorder{}
		c := NewExamCreateController(backend, signedIn(), notes, examOptions())
		require.NoError(t, c.Load(context.Background()))
		assert.Len(t, c.State().Assignments, 1)

		exam, err := c.Create(context.Background(), ExamForm{AssignmentID: 2, Title: " Midterm ", Date: "2026-03-02", MaxMarks: 100})
		require.NoError(t, err)
		assert.Equal(t, 9, exam.ID)
		assert.Equal(t, "Midterm", backend.newExams[0].Title)
		assert.Equal(t, "/dashboard/teacher/exams/manage?examId=9", ManagePath(exam.ID))
		require.Len(t, notes.all(), 1)
		assert.Equal(t, `"Midterm" has been created.`, notes.all()[0].Description)
	})

	t.Run("invalid form never reaches the backend", func(t *testing.T) {
		backend := &fakeBackend{}
		c := NewExamCreateController(backend, signedIn(), nil, examOptions())
		_, err := c.Create(context.Background(), ExamForm{Title: "Midterm", Date: "2026-03-02", MaxMarks: 100})
		assert.Equal(t, ErrNoAssignment, err)
		assert.Equal(t, "Select an assignment.", c.State().Error)
		assert.Empty(t, backend.newExams)
	})

	t.Run("anonymous", func(t *testing.T) {
		c := NewExamCreateController(&fakeBackend{}, &fakeSession{}, nil, examOptions())
		_, err := c.Create(context.Background(), ExamForm{AssignmentID: 2, Title: "Midterm", Date: "2026-03-02", MaxMarks: 100})
		assert.Equal(t, ErrNotAuthenticated, err)
	})

	t.Run("backend failure", func(t *testing.T) {
		backend := &fakeBackend{createErr: &core.APIError{
			Message: "Invalid data",
			Status:  400,
			Details: core.Object{{Key: "title", Value: []interface{}{"Exam with this title already exists."}}},
		}}
		notes := &recorder{}
		c := NewExamCreateController(backend, signedIn(), notes, examOptions())
		_, err := c.Create(context.Background(), ExamForm{AssignmentID: 2, Title: "Midterm", Date: "2026-03-02", MaxMarks: 100})
		require.Error(t, err)
		assert.Equal(t, "Invalid data | Title: Exam with this title already exists.", c.State().Error)
		assert.Equal(t, "Creation failed", notes.all()[0].Title)
	})
}

func examDetail(allowEdit bool) ExamDetail {
	return ExamDetail{
		Exam:      Exam{ID: 9, Title: "Midterm", MaxMarks: 100},
		AllowEdit: allowEdit,
		Roster: []RosterEntry{
			{StudentEnrollmentID: 1, StudentName: "Amira", ExistingMark: floatPtr(70)},
			{StudentEnrollmentID: 2, StudentName: "Bilal"},
			{StudentEnrollmentID: 3, StudentName: "Chen"},
		},
	}
}

func TestExamManageController(t *testing.T) {
	ctx := context.Background()

	t.Run("no exam", func(t *testing.T) {
		c := NewExamManageController(&fakeBackend{}, signedIn(), nil, Options{})
		assert.Equal(t, ErrNoExam, c.Load(ctx, 0))
		assert.Equal(t, "No exam selected.", c.State().Error)
		_, err := c.Save(ctx)
		assert.Equal(t, ErrNoExam, err)
	})

	t.Run("save posts rows with a mark", func(t *testing.T) {
		backend := &fakeBackend{detail: examDetail(true)}
		notes := &recorder{}
		c := NewExamManageController(backend, signedIn(), notes, Options{})
		require.NoError(t, c.Load(ctx, 9))
		assert.Equal(t, 70.0, *c.State().Roster[0].PendingMark)

		require.NoError(t, c.SetMark(2, floatPtr(55.5)))
		_, isValidation := c.SetMark(3, floatPtr(101)).(*core.ValidationError)
		assert.True(t, isValidation)
		assert.Error(t, c.SetMark(42, floatPtr(1)))

		res, err := c.Save(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Saved)
		assert.Equal(t, []MarkEntry{
			{StudentEnrollmentID: 1, MarksObtained: 70},
			{StudentEnrollmentID: 2, MarksObtained: 55.5},
		}, backend.savedMarks)
		assert.Equal(t, "2 marks saved.", notes.all()[0].Description)
	})

	t.Run("a bad edit leaves every row untouched", func(t *testing.T) {
		c := NewExamManageController(&fakeBackend{detail: examDetail(true)}, signedIn(), nil, Options{})
		require.NoError(t, c.Load(ctx, 9))

		err := c.SetMarks(map[int]*float64{1: nil, 2: floatPtr(40), 3: floatPtr(101)})
		_, isValidation := err.(*core.ValidationError)
		assert.True(t, isValidation)
		assert.Error(t, c.SetMarks(map[int]*float64{2: floatPtr(40), 42: floatPtr(1)}))

		roster := c.State().Roster
		require.NotNil(t, roster[0].PendingMark)
		assert.Equal(t, 70.0, *roster[0].PendingMark)
		assert.Nil(t, roster[1].PendingMark)
		assert.Nil(t, roster[2].PendingMark)

		require.NoError(t, c.SetMarks(map[int]*float64{1: nil, 2: floatPtr(40)}))
		roster = c.State().Roster
		assert.Nil(t, roster[0].PendingMark)
		assert.Equal(t, 40.0, *roster[1].PendingMark)
	})

	t.Run("read-only exam refuses edits", func(t *testing.T) {
		backend := &fakeBackend{detail: examDetail(false)}
		c := NewExamManageController(backend, signedIn(), nil, Options{})
		require.NoError(t, c.Load(ctx, 9))
		assert.Equal(t, ErrReadOnly, c.SetMark(2, floatPtr(50)))
		_, err := c.Save(ctx)
		assert.Equal(t, ErrReadOnly, err)
		assert.Nil(t, backend.savedMarks)
	})

	t.Run("load failure", func(t *testing.T) {
		notes := &recorder{}
		c := NewExamManageController(&fakeBackend{detailErr: errUnavailable}, signedIn(), notes, Options{})
		assert.Error(t, c.Load(ctx, 9))
		assert.Equal(t, "Service unavailable", c.State().Error)
		assert.Equal(t, "Failed to load exam", notes.all()[0].Title)
	})
}
