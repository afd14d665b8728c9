package marks

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRecordNotFound    = errors.New("mark record not found")
	ErrScheduleNotFound  = errors.New("schedule not found")
	ErrUnknownTransition = errors.New("unknown transition")
)

// InvalidScoreError is returned when a score falls outside the schedule's
// configured range. Nothing is written.
type InvalidScoreError struct {
	Score    float64
	MaxScore float64
}

func (e *InvalidScoreError) Error() string {
	return fmt.Sprintf("score %g is outside the valid range [0, %g]", e.Score, e.MaxScore)
}

// StageLockedError is returned on score writes while the record is under
// review or published. Status may be empty when the lock was only detected
// by the store's conditional write.
type StageLockedError struct {
	StudentID string
	Status    Status
}

func (e *StageLockedError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("record for student %s is no longer editable", e.StudentID)
	}
	return fmt.Sprintf("record for student %s is locked in stage %s", e.StudentID, e.Status)
}

// IncompleteGroupError is returned when a group cannot transition as a unit:
// enrolled students without a record, or records not at the expected stage.
type IncompleteGroupError struct {
	Key                 GroupKey
	Expected            Status
	MissingStudentIDs   []string
	MismatchedStatusIDs []string
}

func (e *IncompleteGroupError) Error() string {
	parts := []string{fmt.Sprintf("group %s is not fully at %s", e.Key, e.Expected)}
	if len(e.MissingStudentIDs) > 0 {
		parts = append(parts, fmt.Sprintf("%d student(s) without a record", len(e.MissingStudentIDs)))
	}
	if len(e.MismatchedStatusIDs) > 0 {
		parts = append(parts, fmt.Sprintf("%d record(s) at another stage", len(e.MismatchedStatusIDs)))
	}
	return strings.Join(parts, ": ")
}

// UnauthorizedTransitionError is returned when the actor's role does not match
// the requested transition. Never silently downgraded.
type UnauthorizedTransitionError struct {
	Role       string
	Transition Transition
}

func (e *UnauthorizedTransitionError) Error() string {
	return fmt.Sprintf("role %q may not request transition %q", e.Role, e.Transition)
}

// ConcurrentModificationError is returned when another actor raced the same
// group transition. The caller must re-check readiness before retrying;
// nothing was written.
type ConcurrentModificationError struct {
	Key      GroupKey
	Expected int
	Updated  int
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("group %s was modified concurrently (%d of %d records still at the expected stage), retry after refresh",
		e.Key, e.Updated, e.Expected)
}
