package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/marks"
)

const recordColumns = "id, student_id, schedule_id, subject_id, score, status, modified_by, modified_by_role, modified_at"

type markRepository struct {
	db *sqlx.DB
}

var _ marks.Repository = (*markRepository)(nil) // interface compliance check

func NewMarkRepository(db *sqlx.DB) *markRepository {
	return &markRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to marks.ErrRecordNotFound
func (repo markRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return marks.ErrRecordNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo markRepository) GetRecord(ctx context.Context, studentID, scheduleID, subjectID string) (marks.MarkRecord, error) {
	q := fmt.Sprintf(
		"SELECT %s FROM mark_record WHERE student_id = $1 AND schedule_id = $2 AND subject_id = $3",
		recordColumns)

	var rec marks.MarkRecord
	if err := repo.db.GetContext(ctx, &rec, q, studentID, scheduleID, subjectID); err != nil {
		return marks.MarkRecord{}, repo.trapNoRowsErr(err, "getting mark record")
	}
	return rec, nil
}

func (repo markRepository) UpsertScore(ctx context.Context, rec marks.MarkRecord) (marks.MarkRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	// conditional on the stored status still being editable so that a score
	// write racing a group transition can never touch a locked record
	q := fmt.Sprintf(`
		INSERT INTO mark_record (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (student_id, schedule_id, subject_id) DO UPDATE
		SET score            = EXCLUDED.score,
		    status           = EXCLUDED.status,
		    modified_by      = EXCLUDED.modified_by,
		    modified_by_role = EXCLUDED.modified_by_role,
		    modified_at      = EXCLUDED.modified_at
		WHERE mark_record.status = $10
		RETURNING %s`, recordColumns, recordColumns)

	var saved marks.MarkRecord
	err := repo.db.GetContext(ctx, &saved, q,
		rec.ID, rec.StudentID, rec.ScheduleID, rec.SubjectID, rec.Score, rec.Status,
		rec.ModifiedBy, rec.ModifiedByRole, rec.ModifiedAt, marks.StatusEntered,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return marks.MarkRecord{}, &marks.StageLockedError{StudentID: rec.StudentID}
		}
		return marks.MarkRecord{}, errors.Wrap(err, "upserting mark record")
	}
	return saved, nil
}

func (repo markRepository) GetGroupRecords(ctx context.Context, key marks.GroupKey, roster []string) ([]marks.MarkRecord, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM mark_record
		WHERE schedule_id = $1 AND subject_id = $2 AND student_id = ANY($3)
		ORDER BY student_id`, recordColumns)

	records := make([]marks.MarkRecord, 0, len(roster))
	if err := repo.db.SelectContext(ctx, &records, q, key.ScheduleID, key.SubjectID, pq.Array(roster)); err != nil {
		return nil, errors.Wrap(err, "querying group records")
	}
	return records, nil
}

func (repo markRepository) BulkSetStatus(
	ctx context.Context,
	ids []string,
	from, to marks.Status,
	clearScores bool,
	actor marks.Actor,
) (int, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// conditional update: rows already moved by a concurrent caller do not
	// match and are excluded from the count
	q := `
		UPDATE mark_record
		SET status           = $1,
		    score            = CASE WHEN $2 THEN NULL ELSE score END,
		    modified_by      = $3,
		    modified_by_role = $4,
		    modified_at      = $5
		WHERE id = ANY($6) AND status = $7`

	res, err := tx.ExecContext(ctx, q, to, clearScores, actor.ID, actor.Role, time.Now().UTC(), pq.Array(ids), from)
	if err != nil {
		return 0, errors.Wrap(err, "bulk updating status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting updated rows")
	}

	// all-or-nothing: roll back unless every record transitioned
	if int(n) != len(ids) {
		return int(n), nil
	}
	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "committing transaction")
	}
	return int(n), nil
}

func (repo markRepository) FilterRecords(
	ctx context.Context,
	filter marks.QueryFilter,
	ordering ...core.DBOrdering,
) ([]marks.MarkRecord, error) {
	conds := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ScheduleID != "" {
		conds = append(conds, "schedule_id = "+arg(filter.ScheduleID))
	}
	if filter.SubjectID != "" {
		conds = append(conds, "subject_id = "+arg(filter.SubjectID))
	}
	if filter.StudentID != "" {
		conds = append(conds, "student_id = "+arg(filter.StudentID))
	}
	if filter.Status != nil {
		conds = append(conds, "status = "+arg(*filter.Status))
	}
	if filter.SectionID != "" {
		// section membership lives in the portal's enrollment table
		conds = append(conds, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM enrollment e
			 WHERE e.student_id::text = mark_record.student_id
			   AND e.subject_id::text = mark_record.subject_id
			   AND e.section_id = %s)`, arg(filter.SectionID)))
	}

	q := fmt.Sprintf("SELECT %s FROM mark_record", recordColumns)
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	if len(ordering) > 0 {
		ords := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			ords = append(ords, ord.String())
		}
		q += " ORDER BY " + strings.Join(ords, ", ")
	} else {
		q += " ORDER BY schedule_id, subject_id, student_id"
	}

	records := make([]marks.MarkRecord, 0)
	if err := repo.db.SelectContext(ctx, &records, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering mark records")
	}
	return records, nil
}
