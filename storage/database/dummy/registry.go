package dummydb

import (
	"context"

	"github.com/trezcool/alama/core/marks"
)

type referenceRegistry struct {
	db *DB
}

var _ marks.ReferenceRegistry = (*referenceRegistry)(nil) // interface compliance check

func NewReferenceRegistry(db *DB) marks.ReferenceRegistry {
	return &referenceRegistry{db: db}
}

func (reg *referenceRegistry) GetRoster(ctx context.Context, key marks.GroupKey) ([]string, error) {
	reg.db.schedule.RLock()
	defer reg.db.schedule.RUnlock()

	if _, ok := reg.db.schedule.table[key.ScheduleID]; !ok {
		return nil, marks.ErrScheduleNotFound
	}
	roster := reg.db.schedule.rosters[key.SubjectID+"/"+key.SectionID]
	out := make([]string, len(roster))
	copy(out, roster)
	return out, nil
}

func (reg *referenceRegistry) GetMaxScore(ctx context.Context, scheduleID string) (float64, error) {
	reg.db.schedule.RLock()
	defer reg.db.schedule.RUnlock()

	sched, ok := reg.db.schedule.table[scheduleID]
	if !ok {
		return 0, marks.ErrScheduleNotFound
	}
	return sched.maxScore, nil
}

func (reg *referenceRegistry) GetScheduleCategory(ctx context.Context, scheduleID string) (marks.ScheduleCategory, error) {
	reg.db.schedule.RLock()
	defer reg.db.schedule.RUnlock()

	sched, ok := reg.db.schedule.table[scheduleID]
	if !ok {
		return "", marks.ErrScheduleNotFound
	}
	return sched.category, nil
}
