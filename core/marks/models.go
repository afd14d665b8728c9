package marks

import (
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
)

// Status is the stage a MarkRecord currently rests at. Records enter the
// pipeline at StatusEntered and only ever move along the edges defined in the
// transition table; StatusPublished is terminal until an administrative
// re-open.
type Status string

const (
	StatusEntered      Status = "ENTERED"
	StatusPendingTutor Status = "PENDING_TUTOR"
	StatusPendingAdmin Status = "PENDING_ADMIN"
	StatusPublished    Status = "PUBLISHED"
)

var AllStatuses = []Status{StatusEntered, StatusPendingTutor, StatusPendingAdmin, StatusPublished}

func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Roles, as supplied by the identity collaborator via JWT claims.
const (
	RoleAdmin   = "admin"
	RoleTutor   = "tutor"
	RoleFaculty = "faculty"
	RoleStudent = "student"
)

var AllRoles = []string{RoleAdmin, RoleTutor, RoleFaculty, RoleStudent}

// Actor identifies the authenticated caller. The identity service owns the
// account; the workflow only ever consumes the (id, role) pair.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// GroupKey identifies a verification group: the (schedule, subject, section)
// unit over which completeness and stage transitions are evaluated.
type GroupKey struct {
	ScheduleID string `json:"schedule_id" query:"schedule_id" validate:"required"`
	SubjectID  string `json:"subject_id" query:"subject_id" validate:"required"`
	SectionID  string `json:"section_id" query:"section_id" validate:"required"`
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ScheduleID, k.SubjectID, k.SectionID)
}

// MarkRecord is a student's score for one (schedule, subject) assessment.
// There is at most one record per (student, schedule, subject) triple.
type MarkRecord struct {
	ID             string       `db:"id" json:"id"`
	StudentID      string       `db:"student_id" json:"student_id"`
	ScheduleID     string       `db:"schedule_id" json:"schedule_id"`
	SubjectID      string       `db:"subject_id" json:"subject_id"`
	Score          null.Float64 `db:"score" json:"score"`
	Status         Status       `db:"status" json:"status"`
	ModifiedBy     string       `db:"modified_by" json:"modified_by"`
	ModifiedByRole string       `db:"modified_by_role" json:"modified_by_role"`
	ModifiedAt     time.Time    `db:"modified_at" json:"modified_at"` // UTC
}

// Editable reports whether faculty may still write this record's score.
// Once a group is submitted for review the score is read-only until a
// rejection brings it back to StatusEntered.
func (r MarkRecord) Editable() bool {
	return r.Status == StatusEntered
}

// ScoreEntry contains the information needed to record a student's score.
type ScoreEntry struct {
	StudentID  string  `json:"student_id" validate:"required"`
	ScheduleID string  `json:"schedule_id" validate:"required"`
	SubjectID  string  `json:"subject_id" validate:"required"`
	Score      float64 `json:"score" validate:"min=0"`
}

func (se *ScoreEntry) Validate() error {
	se.StudentID = core.CleanString(se.StudentID)
	se.ScheduleID = core.CleanString(se.ScheduleID)
	se.SubjectID = core.CleanString(se.SubjectID)
	return core.Validate.Struct(se)
}

// TransitionRequest asks the engine to move a whole verification group along
// one edge of the state machine. ClearScores is only honored on reject edges:
// by default a rejected group keeps its scores for faculty to correct in place.
type TransitionRequest struct {
	GroupKey
	Transition  Transition `json:"transition" validate:"required,transition"`
	ClearScores bool       `json:"clear_scores"`
}

func (tr *TransitionRequest) Validate() error {
	tr.ScheduleID = core.CleanString(tr.ScheduleID)
	tr.SubjectID = core.CleanString(tr.SubjectID)
	tr.SectionID = core.CleanString(tr.SectionID)
	return core.Validate.Struct(tr)
}

// QueryFilter narrows record queries; zero fields are ignored and available
// fields combine with AND. SectionID filters through the enrollment roster.
type QueryFilter struct {
	ScheduleID string  `query:"schedule_id"`
	SubjectID  string  `query:"subject_id"`
	SectionID  string  `query:"section_id"`
	StudentID  string  `query:"student_id"`
	Status     *Status `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.ScheduleID == "" && qf.SubjectID == "" && qf.SectionID == "" && qf.StudentID == "" && qf.Status == nil
}
