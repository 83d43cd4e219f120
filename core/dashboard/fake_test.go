package dashboard

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/cems/core"
	"github.com/trezcool/cems/core/auth"
)

var errUnavailable = &core.APIError{Message: "Service unavailable", Status: 503}

type fakeSession struct {
	pair      auth.CredentialPair
	refreshed []auth.CredentialPair
}

func (s *fakeSession) Authorization() auth.Authorization {
	return auth.Authorization{
		Pair:        s.pair,
		OnRefreshed: func(p auth.CredentialPair) { s.refreshed = append(s.refreshed, p) },
	}
}

func signedIn() *fakeSession {
	return &fakeSession{pair: auth.CredentialPair{Access: "a", Refresh: "r"}}
}

type recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recorder) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// fakeBackend answers from canned data. Hooks, when set, replace the canned answers.
type fakeBackend struct {
	mu sync.Mutex

	student      func(q StudentQuery) (StudentDashboard, error)
	summary      func() (TeacherDashboard, error)
	classes      func(q PageQuery) (Page[TeacherClass], error)
	classExams   func(classID int, q PageQuery) (Page[TeacherExam], error)
	exams        func(q PageQuery) (Page[TeacherExam], error)
	assignments  []Assignment
	assignErr    error
	created      CreatedExam
	createErr    error
	detail       ExamDetail
	detailErr    error
	savedMarks   []MarkEntry
	saveErr      error
	studentCalls []StudentQuery
	classCalls   []int
	newExams     []NewExam
}

func (b *fakeBackend) StudentDashboard(_ context.Context, _ auth.Authorization, q StudentQuery) (StudentDashboard, error) {
	b.mu.Lock()
	b.studentCalls = append(b.studentCalls, q)
	b.mu.Unlock()
	return b.student(q)
}

func (b *fakeBackend) TeacherDashboard(_ context.Context, _ auth.Authorization) (TeacherDashboard, error) {
	if b.summary == nil {
		return TeacherDashboard{SubjectCount: 2}, nil
	}
	return b.summary()
}

func (b *fakeBackend) TeacherClasses(_ context.Context, _ auth.Authorization, q PageQuery) (Page[TeacherClass], error) {
	if b.classes == nil {
		return Page[TeacherClass]{}, nil
	}
	return b.classes(q)
}

func (b *fakeBackend) TeacherClassExams(_ context.Context, _ auth.Authorization, classID int, q PageQuery) (Page[TeacherExam], error) {
	b.mu.Lock()
	b.classCalls = append(b.classCalls, classID)
	b.mu.Unlock()
	if b.classExams == nil {
		return Page[TeacherExam]{}, nil
	}
	return b.classExams(classID, q)
}

func (b *fakeBackend) TeacherExams(_ context.Context, _ auth.Authorization, q PageQuery) (Page[TeacherExam], error) {
	if b.exams == nil {
		return Page[TeacherExam]{}, nil
	}
	return b.exams(q)
}

func (b *fakeBackend) CreateExam(_ context.Context, _ auth.Authorization, exam NewExam) (CreatedExam, error) {
	b.newExams = append(b.newExams, exam)
	return b.created, b.createErr
}

func (b *fakeBackend) ExamDetail(_ context.Context, _ auth.Authorization, _ int) (ExamDetail, error) {
	return b.detail, b.detailErr
}

func (b *fakeBackend) SaveMarks(_ context.Context, _ auth.Authorization, _ int, marks []MarkEntry) (SavedMarks, error) {
	b.savedMarks = marks
	if b.saveErr != nil {
		return SavedMarks{}, b.saveErr
	}
	return SavedMarks{Saved: len(marks)}, nil
}

func (b *fakeBackend) CurrentAssignments(_ context.Context, _ auth.Authorization) ([]Assignment, error) {
	return b.assignments, b.assignErr
}

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }

func strPtr(s string) *string { return &s }

func wrapped(err error) error { return errors.Wrap(err, "fetch") }
