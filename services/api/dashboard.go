package apisvc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/trezcool/cems/core/auth"
	"github.com/trezcool/cems/core/dashboard"
)

var _ dashboard.Backend = (*Client)(nil)

func setInt(q url.Values, key string, v int) {
	if v > 0 {
		q.Set(key, strconv.Itoa(v))
	}
}

func pageQuery(p dashboard.PageQuery) url.Values {
	q := url.Values{}
	setInt(q, "page", p.Page)
	setInt(q, "page_size", p.PageSize)
	if p.Year != "" {
		q.Set("year", p.Year)
	}
	return q
}

func (c *Client) StudentDashboard(ctx context.Context, authz auth.Authorization, sq dashboard.StudentQuery) (dashboard.StudentDashboard, error) {
	q := url.Values{}
	if sq.Year != "" {
		q.Set("year", sq.Year)
	}
	setInt(q, "upcoming_page", sq.UpcomingPage)
	setInt(q, "upcoming_page_size", sq.PageSize)
	setInt(q, "marks_page", sq.MarksPage)
	setInt(q, "marks_page_size", sq.PageSize)
	setInt(q, "history_page", sq.HistoryPage)
	setInt(q, "history_page_size", sq.PageSize)

	var res dashboard.StudentDashboard
	err := c.Send(ctx, "/student/dashboard/", RequestOptions{Query: q}.Authorized(authz), &res)
	return res, err
}

func (c *Client) TeacherDashboard(ctx context.Context, authz auth.Authorization) (dashboard.TeacherDashboard, error) {
	var res dashboard.TeacherDashboard
	err := c.Send(ctx, "/teacher/dashboard/", RequestOptions{}.Authorized(authz), &res)
	return res, err
}

func (c *Client) TeacherClasses(ctx context.Context, authz auth.Authorization, pq dashboard.PageQuery) (dashboard.Page[dashboard.TeacherClass], error) {
	var res dashboard.Page[dashboard.TeacherClass]
	err := c.Send(ctx, "/teacher/classes/", RequestOptions{Query: pageQuery(pq)}.Authorized(authz), &res)
	return res, err
}

func (c *Client) TeacherClassExams(ctx context.Context, authz auth.Authorization, classID int, pq dashboard.PageQuery) (dashboard.Page[dashboard.TeacherExam], error) {
	var res dashboard.Page[dashboard.TeacherExam]
	path := fmt.Sprintf("/teacher/classes/%d/exams/", classID)
	err := c.Send(ctx, path, RequestOptions{Query: pageQuery(pq)}.Authorized(authz), &res)
	return res, err
}

func (c *Client) TeacherExams(ctx context.Context, authz auth.Authorization, pq dashboard.PageQuery) (dashboard.Page[dashboard.TeacherExam], error) {
	var res dashboard.Page[dashboard.TeacherExam]
	err := c.Send(ctx, "/teacher/exams/", RequestOptions{Query: pageQuery(pq)}.Authorized(authz), &res)
	return res, err
}

func (c *Client) CreateExam(ctx context.Context, authz auth.Authorization, exam dashboard.NewExam) (dashboard.CreatedExam, error) {
	var res dashboard.CreatedExam
	err := c.Send(ctx, "/teacher/exams/", RequestOptions{Method: http.MethodPost, Body: exam}.Authorized(authz), &res)
	return res, err
}

func (c *Client) ExamDetail(ctx context.Context, authz auth.Authorization, examID int) (dashboard.ExamDetail, error) {
	var res dashboard.ExamDetail
	err := c.Send(ctx, fmt.Sprintf("/teacher/exams/%d/", examID), RequestOptions{}.Authorized(authz), &res)
	return res, err
}

func (c *Client) SaveMarks(ctx context.Context, authz auth.Authorization, examID int, marks []dashboard.MarkEntry) (dashboard.SavedMarks, error) {
	if marks == nil {
		marks = []dashboard.MarkEntry{}
	}
	body := map[string]interface{}{"marks": marks}
	var res dashboard.SavedMarks
	err := c.Send(ctx, fmt.Sprintf("/teacher/exams/%d/marks/", examID), RequestOptions{Method: http.MethodPost, Body: body}.Authorized(authz), &res)
	return res, err
}

func (c *Client) CurrentAssignments(ctx context.Context, authz auth.Authorization) ([]dashboard.Assignment, error) {
	var res struct {
		Results []dashboard.Assignment `json:"results"`
	}
	err := c.Send(ctx, "/reference/assignments/current/", RequestOptions{}.Authorized(authz), &res)
	return res.Results, err
}
