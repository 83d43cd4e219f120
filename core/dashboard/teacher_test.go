package dashboard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classesPage(ids ...int) Page[TeacherClass] {
	page := Page[TeacherClass]{Count: intPtr(len(ids))}
	for _, id := range ids {
		page.Results = append(page.Results, TeacherClass{ClassOfferingID: id, ClassName: "Grade 10"})
	}
	return page
}

func TestTeacherController_Load(t *testing.T) {
	backend := &fakeBackend{
		classes: func(q PageQuery) (Page[TeacherClass], error) { return classesPage(4, 5), nil },
		classExams: func(classID int, q PageQuery) (Page[TeacherExam], error) {
			return Page[TeacherExam]{Results: []TeacherExam{{ID: classID * 10}}}, nil
		},
		exams: func(q PageQuery) (Page[TeacherExam], error) {
			return Page[TeacherExam]{Count: intPtr(31), Results: []TeacherExam{{ID: 1}}}, nil
		},
	}
	c := NewTeacherController(backend, signedIn(), nil, Options{})

	require.NoError(t, c.Load(context.Background()))
	st := c.State()
	assert.Equal(t, 2, st.Summary.SubjectCount)
	assert.Len(t, st.Classes.Items, 2)
	require.NotNil(t, st.SelectedClassID)
	assert.Equal(t, 4, *st.SelectedClassID)
	assert.Equal(t, 40, st.ClassExams.Items[0].ID)
	assert.Equal(t, 31, st.Exams.TotalCount)
	assert.Equal(t, 4, st.Exams.TotalPages())

	require.NoError(t, c.SelectClass(context.Background(), 5))
	st = c.State()
	assert.Equal(t, 5, *st.SelectedClassID)
	assert.Equal(t, 50, st.ClassExams.Items[0].ID)
}

func TestTeacherController_EmptyClassPageClearsSelection(t *testing.T) {
	backend := &fakeBackend{classes: func(q PageQuery) (Page[TeacherClass], error) {
		if q.Page == 1 {
			return classesPage(4), nil
		}
		return classesPage(), nil
	}}
	c := NewTeacherController(backend, signedIn(), nil, Options{})
	ctx := context.Background()

	require.NoError(t, c.ChangeClassesPage(ctx, 1))
	require.NotNil(t, c.State().SelectedClassID)

	require.NoError(t, c.ChangeClassesPage(ctx, 2))
	st := c.State()
	assert.Nil(t, st.SelectedClassID)
	assert.Empty(t, st.ClassExams.Items)
	assert.Equal(t, 2, st.Classes.PageIndex)

	calls := len(backend.classCalls)
	require.NoError(t, c.ChangeClassExamsPage(ctx, 2))
	assert.Len(t, backend.classCalls, calls, "no class selected")
}

func TestTeacherController_SectionsFailIndependently(t *testing.T) {
	backend := &fakeBackend{
		classes: func(q PageQuery) (Page[TeacherClass], error) { return classesPage(4), nil },
		classExams: func(classID int, q PageQuery) (Page[TeacherExam], error) {
			return Page[TeacherExam]{}, errUnavailable
		},
		exams: func(q PageQuery) (Page[TeacherExam], error) {
			return Page[TeacherExam]{Results: []TeacherExam{{ID: 1}}}, nil
		},
	}
	notes := &recorder{}
	c := NewTeacherController(backend, signedIn(), notes, Options{})

	err := c.Load(context.Background())
	assert.Equal(t, errUnavailable, err)

	st := c.State()
	assert.Equal(t, "Service unavailable", st.ClassExamsError)
	assert.Empty(t, st.ClassesError)
	assert.Empty(t, st.ExamsError)
	assert.Empty(t, st.SummaryError)
	assert.Len(t, st.Classes.Items, 1)
	assert.Len(t, st.Exams.Items, 1)
	require.Len(t, notes.all(), 1)
	assert.Equal(t, "Failed to load class exams", notes.all()[0].Title)
}

func TestTeacherController_PageBelowOneIsIgnored(t *testing.T) {
	called := 0
	backend := &fakeBackend{exams: func(q PageQuery) (Page[TeacherExam], error) {
		called++
		return Page[TeacherExam]{}, nil
	}}
	c := NewTeacherController(backend, signedIn(), nil, Options{Year: "2025/26"})
	ctx := context.Background()

	require.NoError(t, c.ChangeExamsPage(ctx, 0))
	require.NoError(t, c.ChangeClassesPage(ctx, -2))
	require.NoError(t, c.ChangeClassExamsPage(ctx, 0))
	assert.Zero(t, called)
}
