package marks

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
)

type (
	// Repository persists MarkRecords; it is the only write path to them.
	//
	// BulkSetStatus is the conditional primitive that group transitions build
	// on: within a single transaction it moves every given record from `from`
	// to `to`, rolls back unless all of them still were at `from`, and returns
	// the number of records that matched. Records already moved by a
	// concurrent caller are never partially transitioned.
	Repository interface {
		GetRecord(ctx context.Context, studentID, scheduleID, subjectID string) (MarkRecord, error)
		// UpsertScore writes the record conditionally on its stored status
		// still being editable; a lost race surfaces as StageLockedError.
		UpsertScore(ctx context.Context, rec MarkRecord) (MarkRecord, error)
		GetGroupRecords(ctx context.Context, key GroupKey, roster []string) ([]MarkRecord, error)
		BulkSetStatus(ctx context.Context, ids []string, from, to Status, clearScores bool, actor Actor) (int, error)
		FilterRecords(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]MarkRecord, error)
	}

	// ReferenceRegistry supplies read-only reference data owned by the rest of
	// the portal (schedules, rosters). It is re-read on every completeness
	// check rather than cached, so staleness is bounded by the check itself.
	ReferenceRegistry interface {
		GetRoster(ctx context.Context, key GroupKey) ([]string, error)
		GetMaxScore(ctx context.Context, scheduleID string) (float64, error)
		GetScheduleCategory(ctx context.Context, scheduleID string) (ScheduleCategory, error)
	}

	Service interface {
		UpsertScore(ctx context.Context, entry ScoreEntry, actor Actor) (MarkRecord, error)
		GetGroup(ctx context.Context, key GroupKey) ([]MarkRecord, error)
		Apply(ctx context.Context, req TransitionRequest, actor Actor) (int, error)
		Readiness(ctx context.Context, key GroupKey, target Status) (Readiness, error)
	}

	service struct {
		repo     Repository
		reg      ReferenceRegistry
		notifSvc core.NotificationService
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, reg ReferenceRegistry, notifSvc core.NotificationService, logger core.Logger) Service {
	return &service{
		repo:     repo,
		reg:      reg,
		notifSvc: notifSvc,
		logger:   logger,
	}
}

// UpsertScore records a student's score, creating the MarkRecord on first
// write. The score is validated against the schedule's configured maximum
// before any write; edits are refused once the record left StatusEntered.
func (svc *service) UpsertScore(ctx context.Context, entry ScoreEntry, actor Actor) (MarkRecord, error) {
	maxScore, err := svc.reg.GetMaxScore(ctx, entry.ScheduleID)
	if err != nil {
		return MarkRecord{}, errors.Wrap(err, "getting schedule max score")
	}
	if entry.Score < 0 || entry.Score > maxScore {
		return MarkRecord{}, &InvalidScoreError{Score: entry.Score, MaxScore: maxScore}
	}

	rec := MarkRecord{
		StudentID:      entry.StudentID,
		ScheduleID:     entry.ScheduleID,
		SubjectID:      entry.SubjectID,
		Score:          null.Float64From(entry.Score),
		Status:         StatusEntered,
		ModifiedBy:     actor.ID,
		ModifiedByRole: actor.Role,
		ModifiedAt:     time.Now().UTC(),
	}

	existing, err := svc.repo.GetRecord(ctx, entry.StudentID, entry.ScheduleID, entry.SubjectID)
	switch {
	case err == nil:
		if !existing.Editable() {
			return MarkRecord{}, &StageLockedError{StudentID: entry.StudentID, Status: existing.Status}
		}
		rec.ID = existing.ID
	case errors.Cause(err) == ErrRecordNotFound:
		// first write creates the record lazily
	default:
		return MarkRecord{}, errors.Wrap(err, "getting mark record")
	}

	rec, err = svc.repo.UpsertScore(ctx, rec)
	return rec, errors.Wrap(err, "upserting score")
}

// GetGroup returns the group's records in roster order. Enrolled students
// without a record are simply absent, never placeholder rows.
func (svc *service) GetGroup(ctx context.Context, key GroupKey) ([]MarkRecord, error) {
	roster, err := svc.reg.GetRoster(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "getting roster")
	}
	records, err := svc.repo.GetGroupRecords(ctx, key, roster)
	if err != nil {
		return nil, errors.Wrap(err, "getting group records")
	}
	return orderByRoster(roster, records), nil
}

// Apply moves a whole verification group along one edge of the state machine.
// The group transitions as an indivisible unit: completeness is re-checked
// against the roster, the conditional bulk update must cover every record, and
// a raced transition surfaces as ConcurrentModificationError with no partial
// update. Re-applying an already completed transition is a no-op returning 0.
func (svc *service) Apply(ctx context.Context, req TransitionRequest, actor Actor) (int, error) {
	e, ok := transitionEdges[req.Transition]
	if !ok {
		return 0, core.NewValidationError(ErrUnknownTransition,
			core.FieldError{Field: "transition", Error: ErrUnknownTransition.Error()})
	}
	if !e.allows(actor.Role) {
		return 0, &UnauthorizedTransitionError{Role: actor.Role, Transition: req.Transition}
	}

	roster, err := svc.reg.GetRoster(ctx, req.GroupKey)
	if err != nil {
		return 0, errors.Wrap(err, "getting roster")
	}
	records, err := svc.repo.GetGroupRecords(ctx, req.GroupKey, roster)
	if err != nil {
		return 0, errors.Wrap(err, "getting group records")
	}

	rep := EvaluateReadiness(req.GroupKey, e.from, roster, records)
	if !rep.Complete {
		if len(roster) > 0 && len(rep.MissingStudentIDs) == 0 && allAtStatus(records, e.to) {
			return 0, nil // transition already applied
		}
		return 0, &IncompleteGroupError{
			Key:                 req.GroupKey,
			Expected:            e.from,
			MissingStudentIDs:   rep.MissingStudentIDs,
			MismatchedStatusIDs: rep.MismatchedStatusIDs,
		}
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	clearScores := req.ClearScores && e.reject

	n, err := svc.repo.BulkSetStatus(ctx, ids, e.from, e.to, clearScores, actor)
	if err != nil {
		return 0, errors.Wrap(err, "bulk setting status")
	}
	if n != len(ids) {
		return 0, &ConcurrentModificationError{Key: req.GroupKey, Expected: len(ids), Updated: n}
	}

	svc.notifSvc.NotifyTransition(core.TransitionEvent{
		ScheduleID:   req.ScheduleID,
		SubjectID:    req.SubjectID,
		SectionID:    req.SectionID,
		Transition:   string(req.Transition),
		NewStatus:    string(e.to),
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		UpdatedCount: n,
		OccurredAt:   time.Now().UTC(),
	})
	return n, nil
}

// Readiness exposes the completeness check so UIs can show why a group cannot
// yet advance, without attempting the transition.
func (svc *service) Readiness(ctx context.Context, key GroupKey, target Status) (Readiness, error) {
	if !target.Valid() {
		return Readiness{}, core.NewValidationError(errors.New("invalid target status"),
			core.FieldError{Field: "target_status", Error: statusText})
	}
	roster, err := svc.reg.GetRoster(ctx, key)
	if err != nil {
		return Readiness{}, errors.Wrap(err, "getting roster")
	}
	records, err := svc.repo.GetGroupRecords(ctx, key, roster)
	if err != nil {
		return Readiness{}, errors.Wrap(err, "getting group records")
	}
	return EvaluateReadiness(key, target, roster, records), nil
}

func allAtStatus(records []MarkRecord, status Status) bool {
	for _, rec := range records {
		if rec.Status != status {
			return false
		}
	}
	return len(records) > 0
}

func orderByRoster(roster []string, records []MarkRecord) []MarkRecord {
	byStudent := make(map[string]MarkRecord, len(records))
	for _, rec := range records {
		byStudent[rec.StudentID] = rec
	}
	ordered := make([]MarkRecord, 0, len(records))
	for _, studentID := range roster {
		if rec, ok := byStudent[studentID]; ok {
			ordered = append(ordered, rec)
		}
	}
	return ordered
}
