package dashboard

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Page is the paginated list shape of the API.
type Page[T any] struct {
	Count    *int    `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
	Message  string  `json:"message,omitempty"`
}

// Collection is one page of a section, as shown to the user.
type Collection[T any] struct {
	Items       []T  `json:"items"`
	TotalCount  int  `json:"totalCount"`
	PageIndex   int  `json:"pageIndex"`
	PageSize    int  `json:"pageSize"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

// NewCollection maps a fetched page; a missing count falls back to the number of results.
func NewCollection[T any](page Page[T], pageIndex, pageSize int) Collection[T] {
	items := page.Results
	if items == nil {
		items = []T{}
	}
	total := len(items)
	if page.Count != nil {
		total = *page.Count
	}
	return Collection[T]{
		Items:       items,
		TotalCount:  total,
		PageIndex:   pageIndex,
		PageSize:    pageSize,
		HasNext:     page.Next != nil && *page.Next != "",
		HasPrevious: page.Previous != nil && *page.Previous != "",
	}
}

func emptyCollection[T any](pageSize int) Collection[T] {
	return Collection[T]{Items: []T{}, PageIndex: 1, PageSize: pageSize}
}

// TotalPages is at least 1.
func (c Collection[T]) TotalPages() int {
	if c.PageSize < 1 || c.TotalCount <= c.PageSize {
		return 1
	}
	return (c.TotalCount + c.PageSize - 1) / c.PageSize
}

// Roll is a roll number, sent by the API as either a number or a string.
type Roll string

func (r *Roll) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*r = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*r = Roll(str)
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return err
	}
	*r = Roll(s)
	return nil
}

type (
	ClassOffering struct {
		ID    int     `json:"id"`
		Name  string  `json:"name"`
		Level *string `json:"level"`
	}

	Subject struct {
		ID   int     `json:"id"`
		Name string  `json:"name"`
		Code *string `json:"code"`
	}

	Assignment struct {
		ID            int           `json:"id"`
		AcademicYear  string        `json:"academic_year"`
		ClassOffering ClassOffering `json:"class_offering"`
		Subject       Subject       `json:"subject"`
		StudentCount  int           `json:"student_count,omitempty"`
	}
)

// Label is "<class> · <subject> (<year>)".
func (a Assignment) Label() string {
	return a.ClassOffering.Name + " · " + a.Subject.Name + " (" + a.AcademicYear + ")"
}

// student dashboard
type (
	StudentProfile struct {
		ID        int    `json:"id"`
		UserID    int    `json:"user_id"`
		Username  string `json:"username"`
		FullName  string `json:"full_name"`
		StudentID string `json:"student_id"`
	}

	Enrollment struct {
		ID            int           `json:"id"`
		AcademicYear  string        `json:"academic_year"`
		ClassOffering ClassOffering `json:"class_offering"`
		RollNumber    *int          `json:"roll_number"`
		StudentID     string        `json:"student_id"`
		Grade         *string       `json:"grade"`
	}

	UpcomingExam struct {
		ID       int     `json:"id"`
		Title    string  `json:"title"`
		Subject  string  `json:"subject"`
		Date     string  `json:"date"`
		MaxMarks float64 `json:"max_marks"`
	}

	MarkRecord struct {
		ExamID        int      `json:"exam_id"`
		ExamTitle     string   `json:"exam_title"`
		Subject       string   `json:"subject"`
		Date          string   `json:"date"`
		MarksObtained float64  `json:"marks_obtained"`
		MaxMarks      float64  `json:"max_marks"`
		HighestMark   *float64 `json:"highest_mark"`
		LowestMark    *float64 `json:"lowest_mark"`
	}

	SubjectResult struct {
		ID      int      `json:"id"`
		Name    string   `json:"name"`
		Code    *string  `json:"code"`
		Percent *float64 `json:"percent"`
		Grade   *string  `json:"grade"`
	}

	HistoryRecord struct {
		AcademicYear   string          `json:"academic_year"`
		ClassName      string          `json:"class_name"`
		RollNumber     *int            `json:"roll_number"`
		TotalExams     *int            `json:"total_exams"`
		OverallPercent *float64        `json:"overall_percent"`
		OverallGrade   *string         `json:"overall_grade"`
		Subjects       []SubjectResult `json:"subjects"`
	}

	StudentDashboard struct {
		Profile       StudentProfile      `json:"profile"`
		Enrollment    *Enrollment         `json:"enrollment"`
		Subjects      []Subject           `json:"subjects"`
		UpcomingExams Page[UpcomingExam]  `json:"upcoming_exams"`
		Marks         Page[MarkRecord]    `json:"marks"`
		CurrentGrade  *string             `json:"current_grade"`
		History       Page[HistoryRecord] `json:"history"`
		Message       string              `json:"message,omitempty"`
	}

	// StudentQuery carries the three independent cursors of the student dashboard.
	StudentQuery struct {
		Year         string
		UpcomingPage int
		MarksPage    int
		HistoryPage  int
		PageSize     int
	}
)

// teacher dashboard
type (
	TeacherProfile struct {
		ID           int     `json:"id"`
		UserID       int     `json:"user_id"`
		FullName     *string `json:"full_name"`
		EmployeeCode *string `json:"employee_code"`
		Username     string  `json:"username"`
	}

	ExamSummary struct {
		ID     int    `json:"id"`
		Title  string `json:"title"`
		Date   string `json:"date"`
		Status string `json:"status,omitempty"`
	}

	YearRef struct {
		ID   int    `json:"id"`
		Year string `json:"year"`
	}

	TeacherDashboard struct {
		TeacherProfile TeacherProfile `json:"teacher_profile"`
		Assignments    []Assignment   `json:"assignments"`
		CurrentExams   []ExamSummary  `json:"current_exams"`
		PastExams      []ExamSummary  `json:"past_exams"`
		SubjectCount   int            `json:"subject_count"`
		CurrentYear    *YearRef       `json:"current_year"`
		Message        string         `json:"message,omitempty"`
	}

	TeacherClass struct {
		ClassOfferingID int    `json:"class_offering_id"`
		ClassName       string `json:"class_name"`
		AcademicYear    string `json:"academic_year"`
		ExamCount       int    `json:"exam_count"`
	}

	TeacherExam struct {
		ID           int     `json:"id"`
		Title        string  `json:"title"`
		Date         string  `json:"date"`
		MaxMarks     float64 `json:"max_marks"`
		Status       string  `json:"status"`
		Class        string  `json:"class,omitempty"`
		Subject      string  `json:"subject,omitempty"`
		AcademicYear string  `json:"academic_year,omitempty"`
	}

	PageQuery struct {
		Page     int
		PageSize int
		Year     string
	}

	NewExam struct {
		AssignmentID int     `json:"assignment_id"`
		Title        string  `json:"title"`
		Date         string  `json:"date"`
		MaxMarks     float64 `json:"max_marks"`
		Status       string  `json:"status,omitempty"`
	}

	CreatedExam struct {
		ID           int     `json:"id"`
		AssignmentID int     `json:"assignment_id"`
		Title        string  `json:"title"`
		Date         string  `json:"date"`
		MaxMarks     float64 `json:"max_marks"`
		Status       string  `json:"status"`
		CreatedBy    int     `json:"created_by"`
		AcademicYear string  `json:"academic_year"`
	}

	ExamAssignment struct {
		ID            int    `json:"id"`
		ClassOffering string `json:"class_offering"`
		Subject       string `json:"subject"`
	}

	Exam struct {
		ID         int            `json:"id"`
		Title      string         `json:"title"`
		Date       string         `json:"date"`
		MaxMarks   float64        `json:"max_marks"`
		Status     string         `json:"status"`
		Assignment ExamAssignment `json:"assignment"`
	}

	RosterEntry struct {
		StudentEnrollmentID int      `json:"student_enrollment_id"`
		StudentName         string   `json:"student_name"`
		StudentID           string   `json:"student_id"`
		Roll                Roll     `json:"roll"`
		ExistingMark        *float64 `json:"existing_mark"`
	}

	ExamDetail struct {
		Exam      Exam          `json:"exam"`
		AllowEdit bool          `json:"allow_edit"`
		ReadOnly  bool          `json:"read_only"`
		Roster    []RosterEntry `json:"roster"`
	}

	MarkEntry struct {
		StudentEnrollmentID int     `json:"student_enrollment_id"`
		MarksObtained       float64 `json:"marks_obtained"`
	}

	SavedMarks struct {
		Saved   int    `json:"saved"`
		Message string `json:"message,omitempty"`
	}
)
