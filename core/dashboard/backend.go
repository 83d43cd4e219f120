package dashboard

import (
	"context"

	"github.com/trezcool/cems/core/auth"
)

// Backend is the part of the REST API the dashboards read and write.
// Every call carries the session's Authorization so silently refreshed
// credentials flow back to the session.
type Backend interface {
	StudentDashboard(ctx context.Context, authz auth.Authorization, q StudentQuery) (StudentDashboard, error)

	TeacherDashboard(ctx context.Context, authz auth.Authorization) (TeacherDashboard, error)
	TeacherClasses(ctx context.Context, authz auth.Authorization, q PageQuery) (Page[TeacherClass], error)
	TeacherClassExams(ctx context.Context, authz auth.Authorization, classID int, q PageQuery) (Page[TeacherExam], error)
	TeacherExams(ctx context.Context, authz auth.Authorization, q PageQuery) (Page[TeacherExam], error)
	CreateExam(ctx context.Context, authz auth.Authorization, exam NewExam) (CreatedExam, error)
	ExamDetail(ctx context.Context, authz auth.Authorization, examID int) (ExamDetail, error)
	SaveMarks(ctx context.Context, authz auth.Authorization, examID int, marks []MarkEntry) (SavedMarks, error)

	CurrentAssignments(ctx context.Context, authz auth.Authorization) ([]Assignment, error)
}

// Session hands out the credentials of the signed-in user.
// *auth.Manager implements it.
type Session interface {
	Authorization() auth.Authorization
}
