package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/marks"
)

// referenceRegistry reads the portal's reference tables (schedules, subjects,
// enrollment). The workflow trusts these as ground truth and never writes them.
type referenceRegistry struct {
	db *sqlx.DB
}

var _ marks.ReferenceRegistry = (*referenceRegistry)(nil) // interface compliance check

func NewReferenceRegistry(db *sqlx.DB) *referenceRegistry {
	return &referenceRegistry{db: db}
}

// trapNoRowsErr maps psql "no rows" err to marks.ErrScheduleNotFound
func (reg referenceRegistry) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return marks.ErrScheduleNotFound
	}
	return errors.Wrap(err, msg)
}

func (reg referenceRegistry) GetRoster(ctx context.Context, key marks.GroupKey) ([]string, error) {
	// the schedule must exist for the group key to be meaningful
	var exists bool
	if err := reg.db.GetContext(ctx, &exists, "SELECT true FROM schedule WHERE id = $1", key.ScheduleID); err != nil {
		return nil, reg.trapNoRowsErr(err, "checking schedule")
	}

	q := `
		SELECT e.student_id FROM enrollment e
		WHERE e.subject_id = $1 AND e.section_id = $2
		ORDER BY e.student_id`

	roster := make([]string, 0)
	if err := reg.db.SelectContext(ctx, &roster, q, key.SubjectID, key.SectionID); err != nil {
		return nil, errors.Wrap(err, "querying roster")
	}
	return roster, nil
}

func (reg referenceRegistry) GetMaxScore(ctx context.Context, scheduleID string) (float64, error) {
	var maxScore float64
	if err := reg.db.GetContext(ctx, &maxScore, "SELECT max_score FROM schedule WHERE id = $1", scheduleID); err != nil {
		return 0, reg.trapNoRowsErr(err, "getting schedule max score")
	}
	return maxScore, nil
}

func (reg referenceRegistry) GetScheduleCategory(ctx context.Context, scheduleID string) (marks.ScheduleCategory, error) {
	var category marks.ScheduleCategory
	if err := reg.db.GetContext(ctx, &category, "SELECT category FROM schedule WHERE id = $1", scheduleID); err != nil {
		return "", reg.trapNoRowsErr(err, "getting schedule category")
	}
	return category, nil
}
