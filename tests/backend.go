package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/cems/core"
	"github.com/trezcool/cems/core/auth"
	"github.com/trezcool/cems/core/dashboard"
)

// Seeded accounts of the fake backend.
const (
	StudentUsername = "amira.k"
	StudentPassword = "student-pass"
	TeacherUsername = "tina"
	TeacherPassword = "teacher-pass"
	AdminUsername   = "ada"
	AdminPassword   = "admin-pass"

	// ResetUID and ResetToken form the only valid password reset link.
	ResetUID   = "MQ"
	ResetToken = "set-password"
)

type FakeUser struct {
	ID               int
	Username         string
	Password         string
	Email            string
	Roles            auth.RoleFlags
	StudentProfileID *int
	TeacherProfileID *int
}

type tokenClaims struct {
	jwt.StandardClaims
	Kind string `json:"typ"`
}

// Backend is an in-process CEMS REST API for tests, served under /api.
type Backend struct {
	Server *httptest.Server

	e      *echo.Echo
	secret []byte

	mu            sync.Mutex
	users         map[string]*FakeUser
	calls         map[string]int
	revoked       map[string]bool
	failures      map[string]failure
	issued        int
	nextID        int
	exams         []dashboard.TeacherExam
	marks         map[int]map[int]float64
	accessTTL     time.Duration
	upcoming      []dashboard.UpcomingExam
	lastResetMail string
}

type failure struct {
	status int
	body   string
}

// NewBackend starts a fake backend closed at the end of the test.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		e:         echo.New(),
		secret:    []byte("cems-test-secret"),
		users:     make(map[string]*FakeUser),
		calls:     make(map[string]int),
		revoked:   make(map[string]bool),
		failures:  make(map[string]failure),
		marks:     make(map[int]map[int]float64),
		accessTTL: 5 * time.Minute,
		nextID:    100,
	}
	b.seed()
	b.routes()
	b.Server = httptest.NewServer(b.e)
	t.Cleanup(b.Server.Close)
	return b
}

func intPtr(i int) *int { return &i }

func (b *Backend) seed() {
	b.users[StudentUsername] = &FakeUser{ID: 1, Username: StudentUsername, Password: StudentPassword, Email: "amira@cems.test", Roles: auth.RoleFlags{Student: true}, StudentProfileID: intPtr(11)}
	b.users[TeacherUsername] = &FakeUser{ID: 2, Username: TeacherUsername, Password: TeacherPassword, Email: "tina@cems.test", Roles: auth.RoleFlags{Teacher: true}, TeacherProfileID: intPtr(21)}
	b.users[AdminUsername] = &FakeUser{ID: 3, Username: AdminUsername, Password: AdminPassword, Email: "ada@cems.test", Roles: auth.RoleFlags{Admin: true, Teacher: true}, TeacherProfileID: intPtr(22)}

	for i := 1; i <= 12; i++ {
		b.upcoming = append(b.upcoming, dashboard.UpcomingExam{ID: i, Title: fmt.Sprintf("Quiz %d", i), Subject: "Mathematics", Date: "2026-03-02", MaxMarks: 100})
	}
	b.exams = []dashboard.TeacherExam{
		{ID: 1, Title: "Algebra test", Date: "2026-02-10", MaxMarks: 100, Status: "published", Class: "Grade 10 - Atlas", Subject: "Mathematics", AcademicYear: "2025/26"},
		{ID: 2, Title: "Geometry test", Date: "2026-02-20", MaxMarks: 100, Status: "draft", Class: "Grade 11 - Borealis", Subject: "Mathematics", AcademicYear: "2025/26"},
	}
}

// Config points a configuration at the backend.
func (b *Backend) Config() *core.Config {
	conf := &core.Config{Env: "TEST", Debug: true, TestMode: true, AppName: "CEMS", AdminPath: "/admin/", PageSize: 10, ToastDuration: dashboard.DefaultNotificationDuration}
	conf.API.Origin = b.Server.URL
	conf.API.PathPrefix = "/api"
	conf.API.Timeout = 5 * time.Second
	conf.API.BackgroundTimeout = 5 * time.Second
	conf.Portal.PublicOrigin = "http://portal.test"
	conf.Portal.SessionCookie = "cems_session"
	conf.Portal.SessionIdleTTL = time.Hour
	conf.Portal.ShutdownTimeout = time.Second
	conf.Redis.OpTimeout = time.Second
	return conf
}

// Calls counts the requests made to an API path such as "/teacher/dashboard/".
func (b *Backend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method+" "+path]
}

// TotalCalls counts every request made to paths starting with prefix.
func (b *Backend) TotalCalls(prefix string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for key, n := range b.calls {
		if strings.HasPrefix(strings.SplitN(key, " ", 2)[1], prefix) {
			total += n
		}
	}
	return total
}

// Fail makes the next request to path answer status with a JSON body.
func (b *Backend) Fail(path string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = failure{status: status, body: body}
}

// Revoke rejects an access token from now on, as if it had expired.
func (b *Backend) Revoke(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[token] = true
}

// LastResetEmail is the address of the last password reset request.
func (b *Backend) LastResetEmail() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastResetMail
}

// Marks returns the saved marks of an exam, by student enrollment.
func (b *Backend) Marks(examID int) map[int]float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[int]float64)
	for k, v := range b.marks[examID] {
		out[k] = v
	}
	return out
}

// Issue returns a valid credential pair for username.
func (b *Backend) Issue(username string) auth.CredentialPair {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issuePair(username)
}

func (b *Backend) issuePair(username string) auth.CredentialPair {
	return auth.CredentialPair{
		Access:  b.sign(username, "access", b.accessTTL),
		Refresh: b.sign(username, "refresh", 24*time.Hour),
	}
}

func (b *Backend) sign(username, kind string, ttl time.Duration) string {
	b.issued++
	claims := tokenClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   username,
			Id:        strconv.Itoa(b.issued),
			ExpiresAt: time.Now().Add(ttl).Unix(),
		},
		Kind: kind,
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	return token
}

// userFor validates a token of kind; it must be called with the lock held.
func (b *Backend) userFor(token, kind string) *FakeUser {
	if token == "" || b.revoked[token] {
		return nil
	}
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) { return b.secret, nil })
	if err != nil || !parsed.Valid || claims.Kind != kind {
		return nil
	}
	return b.users[claims.Subject]
}

func (b *Backend) routes() {
	b.e.HideBanner = true
	b.e.Use(b.record)

	api := b.e.Group("/api")
	api.POST("/auth/login/", b.login)
	api.POST("/auth/register/student/", b.register)
	api.POST("/auth/token/refresh/", b.refresh)
	api.POST("/auth/password-reset/", b.passwordReset)
	api.POST("/auth/password-reset/confirm/", b.passwordResetConfirm)

	authed := api.Group("", b.authenticate)
	authed.GET("/auth/me/", b.me)
	authed.GET("/student/dashboard/", b.studentDashboard)
	authed.GET("/teacher/dashboard/", b.teacherDashboard)
	authed.GET("/teacher/classes/", b.teacherClasses)
	authed.GET("/teacher/classes/:id/exams/", b.teacherClassExams)
	authed.GET("/teacher/exams/", b.teacherExams)
	authed.POST("/teacher/exams/", b.createExam)
	authed.GET("/teacher/exams/:id/", b.examDetail)
	authed.POST("/teacher/exams/:id/marks/", b.saveMarks)
	authed.GET("/reference/assignments/current/", b.currentAssignments)
}

func (b *Backend) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := strings.TrimPrefix(c.Request().URL.Path, "/api")
		b.mu.Lock()
		b.calls[c.Request().Method+" "+path]++
		fail, ok := b.failures[path]
		delete(b.failures, path)
		b.mu.Unlock()
		if ok {
			return c.JSONBlob(fail.status, []byte(fail.body))
		}
		return next(c)
	}
}

func (b *Backend) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		b.mu.Lock()
		usr := b.userFor(token, "access")
		b.mu.Unlock()
		if usr == nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Given token not valid for any token type", "code": "token_not_valid"})
		}
		c.Set("user", usr)
		return next(c)
	}
}

func currentUser(c echo.Context) *FakeUser {
	return c.Get("user").(*FakeUser)
}

func (b *Backend) login(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Malformed request."})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	usr, ok := b.users[req.Username]
	if !ok || usr.Password != req.Password {
		return c.JSON(http.StatusBadRequest, echo.Map{"non_field_errors": []string{"Unable to log in with provided credentials."}})
	}
	pair := b.issuePair(usr.Username)
	return c.JSON(http.StatusOK, echo.Map{
		"access":  pair.Access,
		"refresh": pair.Refresh,
		"user": echo.Map{
			"id":                 usr.ID,
			"username":           usr.Username,
			"role":               string(usr.Roles.Primary()),
			"student_profile_id": usr.StudentProfileID,
			"teacher_profile_id": usr.TeacherProfileID,
		},
	})
}

func (b *Backend) register(c echo.Context) error {
	var req auth.StudentRegistration
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Malformed request."})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, taken := b.users[req.Username]; taken {
		return c.JSON(http.StatusBadRequest, echo.Map{"username": []string{"A user with that username already exists."}})
	}
	if req.Password1 != req.Password2 {
		return c.JSON(http.StatusBadRequest, echo.Map{"password2": []string{"The two password fields didn't match."}})
	}
	b.nextID++
	usr := &FakeUser{ID: b.nextID, Username: req.Username, Password: req.Password1, Email: req.Email, Roles: auth.RoleFlags{Student: true}, StudentProfileID: intPtr(b.nextID + 1000)}
	b.users[usr.Username] = usr
	pair := b.issuePair(usr.Username)
	return c.JSON(http.StatusCreated, echo.Map{
		"access":          pair.Access,
		"refresh":         pair.Refresh,
		"user":            echo.Map{"id": usr.ID, "username": usr.Username, "email": usr.Email},
		"student_profile": echo.Map{"id": *usr.StudentProfileID, "user_id": usr.ID, "full_name": req.FullName},
	})
}

func (b *Backend) refresh(c echo.Context) error {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Malformed request."})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	usr := b.userFor(req.Refresh, "refresh")
	if usr == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Token is invalid or expired", "code": "token_not_valid"})
	}
	return c.JSON(http.StatusOK, echo.Map{"access": b.sign(usr.Username, "access", b.accessTTL)})
}

func (b *Backend) passwordReset(c echo.Context) error {
	var req auth.PasswordResetRequest
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"email": []string{"This field is required."}})
	}
	b.mu.Lock()
	b.lastResetMail = req.Email
	b.mu.Unlock()
	return c.JSON(http.StatusOK, echo.Map{"detail": "Password reset e-mail has been sent."})
}

func (b *Backend) passwordResetConfirm(c echo.Context) error {
	var req auth.PasswordResetConfirm
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Malformed request."})
	}
	if req.UID != ResetUID || req.Token != ResetToken {
		return c.JSON(http.StatusBadRequest, echo.Map{"token": []string{"Invalid value"}})
	}
	if req.NewPassword1 != req.NewPassword2 {
		return c.JSON(http.StatusBadRequest, echo.Map{"new_password2": []string{"The two password fields didn't match."}})
	}
	b.mu.Lock()
	b.users[StudentUsername].Password = req.NewPassword1
	b.mu.Unlock()
	return c.JSON(http.StatusOK, echo.Map{"detail": "Password has been reset with the new password."})
}

func (b *Backend) me(c echo.Context) error {
	usr := currentUser(c)
	return c.JSON(http.StatusOK, echo.Map{
		"id":                 usr.ID,
		"username":           usr.Username,
		"email":              usr.Email,
		"roles":              usr.Roles,
		"student_profile_id": usr.StudentProfileID,
		"teacher_profile_id": usr.TeacherProfileID,
	})
}

func intQuery(c echo.Context, name string, def int) int {
	if v, err := strconv.Atoi(c.QueryParam(name)); err == nil && v > 0 {
		return v
	}
	return def
}

func paginate[T any](c echo.Context, items []T, pageKey, sizeKey string) dashboard.Page[T] {
	page, size := intQuery(c, pageKey, 1), intQuery(c, sizeKey, dashboard.DefaultPageSize)
	start, end := (page-1)*size, page*size
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}
	count := len(items)
	out := dashboard.Page[T]{Count: &count, Results: append([]T{}, items[start:end]...)}
	if end < len(items) {
		next := fmt.Sprintf("?%s=%d", pageKey, page+1)
		out.Next = &next
	}
	if page > 1 {
		prev := fmt.Sprintf("?%s=%d", pageKey, page-1)
		out.Previous = &prev
	}
	return out
}

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, echo.Map{"detail": "You do not have permission to perform this action."})
}

func (b *Backend) studentDashboard(c echo.Context) error {
	usr := currentUser(c)
	if !usr.Roles.HasAny(auth.RoleStudent, auth.RoleAdmin) {
		return forbidden(c)
	}
	b.mu.Lock()
	upcoming := append([]dashboard.UpcomingExam(nil), b.upcoming...)
	b.mu.Unlock()
	grade := "A-"
	return c.JSON(http.StatusOK, dashboard.StudentDashboard{
		Profile:       dashboard.StudentProfile{ID: 11, UserID: usr.ID, Username: usr.Username, FullName: "Amira Khan", StudentID: "ST-2048"},
		Enrollment:    &dashboard.Enrollment{ID: 5, AcademicYear: "2025/26", ClassOffering: dashboard.ClassOffering{ID: 4, Name: "Grade 10 - Atlas"}, StudentID: "ST-2048"},
		Subjects:      []dashboard.Subject{{ID: 1, Name: "Mathematics"}},
		UpcomingExams: paginate(c, upcoming, "upcoming_page", "upcoming_page_size"),
		Marks:         paginate(c, []dashboard.MarkRecord{{ExamID: 1, ExamTitle: "Algebra test", Subject: "Mathematics", Date: "2026-02-10", MarksObtained: 88, MaxMarks: 100}}, "marks_page", "marks_page_size"),
		CurrentGrade:  &grade,
		History:       paginate(c, []dashboard.HistoryRecord{{AcademicYear: "2024/25", ClassName: "Grade 9 - Atlas"}}, "history_page", "history_page_size"),
	})
}

func isTeacher(usr *FakeUser) bool {
	return usr.Roles.HasAny(auth.RoleTeacher, auth.RoleAdmin)
}

func assignments() []dashboard.Assignment {
	return []dashboard.Assignment{
		{ID: 7, AcademicYear: "2025/26", ClassOffering: dashboard.ClassOffering{ID: 4, Name: "Grade 10 - Atlas"}, Subject: dashboard.Subject{ID: 1, Name: "Mathematics"}, StudentCount: 3},
		{ID: 8, AcademicYear: "2025/26", ClassOffering: dashboard.ClassOffering{ID: 5, Name: "Grade 11 - Borealis"}, Subject: dashboard.Subject{ID: 1, Name: "Mathematics"}, StudentCount: 2},
	}
}

func (b *Backend) teacherDashboard(c echo.Context) error {
	usr := currentUser(c)
	if !isTeacher(usr) {
		return forbidden(c)
	}
	name := "Tina Teach"
	return c.JSON(http.StatusOK, dashboard.TeacherDashboard{
		TeacherProfile: dashboard.TeacherProfile{ID: 21, UserID: usr.ID, FullName: &name, Username: usr.Username},
		Assignments:    assignments(),
		CurrentExams:   []dashboard.ExamSummary{{ID: 2, Title: "Geometry test", Date: "2026-02-20", Status: "draft"}},
		PastExams:      []dashboard.ExamSummary{{ID: 1, Title: "Algebra test", Date: "2026-02-10"}},
		SubjectCount:   1,
		CurrentYear:    &dashboard.YearRef{ID: 4, Year: "2025/26"},
	})
}

func (b *Backend) teacherClasses(c echo.Context) error {
	if !isTeacher(currentUser(c)) {
		return forbidden(c)
	}
	classes := []dashboard.TeacherClass{
		{ClassOfferingID: 4, ClassName: "Grade 10 - Atlas", AcademicYear: "2025/26", ExamCount: 1},
		{ClassOfferingID: 5, ClassName: "Grade 11 - Borealis", AcademicYear: "2025/26", ExamCount: 1},
	}
	return c.JSON(http.StatusOK, paginate(c, classes, "page", "page_size"))
}

func (b *Backend) teacherClassExams(c echo.Context) error {
	if !isTeacher(currentUser(c)) {
		return forbidden(c)
	}
	classID, _ := strconv.Atoi(c.Param("id"))
	class := map[int]string{4: "Grade 10 - Atlas", 5: "Grade 11 - Borealis"}[classID]
	b.mu.Lock()
	var exams []dashboard.TeacherExam
	for _, exam := range b.exams {
		if exam.Class == class {
			exams = append(exams, exam)
		}
	}
	b.mu.Unlock()
	return c.JSON(http.StatusOK, paginate(c, exams, "page", "page_size"))
}

func (b *Backend) teacherExams(c echo.Context) error {
	if !isTeacher(currentUser(c)) {
		return forbidden(c)
	}
	b.mu.Lock()
	exams := append([]dashboard.TeacherExam(nil), b.exams...)
	b.mu.Unlock()
	return c.JSON(http.StatusOK, paginate(c, exams, "page", "page_size"))
}

func (b *Backend) createExam(c echo.Context) error {
	usr := currentUser(c)
	if !isTeacher(usr) {
		return forbidden(c)
	}
	var req dashboard.NewExam
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Malformed request."})
	}
	var assignment *dashboard.Assignment
	for _, a := range assignments() {
		if a.ID == req.AssignmentID {
			a := a
			assignment = &a
		}
	}
	if assignment == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"assignment_id": []string{"Invalid assignment."}})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	exam := dashboard.TeacherExam{ID: b.nextID, Title: req.Title, Date: req.Date, MaxMarks: req.MaxMarks, Status: "draft", Class: assignment.ClassOffering.Name, Subject: assignment.Subject.Name, AcademicYear: assignment.AcademicYear}
	b.exams = append(b.exams, exam)
	return c.JSON(http.StatusCreated, dashboard.CreatedExam{
		ID: exam.ID, AssignmentID: assignment.ID, Title: exam.Title, Date: exam.Date, MaxMarks: exam.MaxMarks,
		Status: exam.Status, CreatedBy: usr.ID, AcademicYear: exam.AcademicYear,
	})
}

func (b *Backend) findExam(c echo.Context) (dashboard.TeacherExam, bool) {
	id, _ := strconv.Atoi(c.Param("id"))
	for _, exam := range b.exams {
		if exam.ID == id {
			return exam, true
		}
	}
	return dashboard.TeacherExam{}, false
}

func (b *Backend) examDetail(c echo.Context) error {
	if !isTeacher(currentUser(c)) {
		return forbidden(c)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	exam, ok := b.findExam(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "Not found."})
	}
	saved := b.marks[exam.ID]
	roster := []dashboard.RosterEntry{
		{StudentEnrollmentID: 31, StudentName: "Amira Khan", StudentID: "ST-2048", Roll: "10A-07"},
		{StudentEnrollmentID: 32, StudentName: "Bilal Odhiambo", StudentID: "ST-2049", Roll: "8"},
	}
	for i := range roster {
		if mark, ok := saved[roster[i].StudentEnrollmentID]; ok {
			mark := mark
			roster[i].ExistingMark = &mark
		}
	}
	return c.JSON(http.StatusOK, dashboard.ExamDetail{
		Exam:      dashboard.Exam{ID: exam.ID, Title: exam.Title, Date: exam.Date, MaxMarks: exam.MaxMarks, Status: exam.Status, Assignment: dashboard.ExamAssignment{ID: 7, ClassOffering: exam.Class, Subject: exam.Subject}},
		AllowEdit: exam.Status != "published",
		ReadOnly:  exam.Status == "published",
		Roster:    roster,
	})
}

func (b *Backend) saveMarks(c echo.Context) error {
	if !isTeacher(currentUser(c)) {
		return forbidden(c)
	}
	var req struct {
		Marks []dashboard.MarkEntry `json:"marks"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Malformed request."})
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	exam, ok := b.findExam(c)
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "Not found."})
	}
	if exam.Status == "published" {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "Marks are locked for this exam."})
	}
	if b.marks[exam.ID] == nil {
		b.marks[exam.ID] = make(map[int]float64)
	}
	for _, m := range req.Marks {
		b.marks[exam.ID][m.StudentEnrollmentID] = m.MarksObtained
	}
	return c.JSON(http.StatusOK, dashboard.SavedMarks{Saved: len(req.Marks)})
}

func (b *Backend) currentAssignments(c echo.Context) error {
	if !isTeacher(currentUser(c)) {
		return forbidden(c)
	}
	return c.JSON(http.StatusOK, echo.Map{"results": assignments()})
}
