package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/marks"
)

type markRepository struct {
	db *DB
}

var _ marks.Repository = (*markRepository)(nil) // interface compliance check

func NewMarkRepository(db *DB) marks.Repository {
	return &markRepository{db: db}
}

func (repo *markRepository) query() []marks.MarkRecord {
	records := make([]marks.MarkRecord, 0, len(repo.db.marks.table))
	for _, rec := range repo.db.marks.table {
		records = append(records, *rec)
	}
	return records
}

func (repo *markRepository) GetRecord(ctx context.Context, studentID, scheduleID, subjectID string) (marks.MarkRecord, error) {
	repo.db.marks.RLock()
	defer repo.db.marks.RUnlock()

	for _, rec := range repo.db.marks.table {
		if rec.StudentID == studentID && rec.ScheduleID == scheduleID && rec.SubjectID == subjectID {
			return *rec, nil
		}
	}
	return marks.MarkRecord{}, marks.ErrRecordNotFound
}

func (repo *markRepository) UpsertScore(ctx context.Context, rec marks.MarkRecord) (marks.MarkRecord, error) {
	repo.db.marks.Lock()
	defer repo.db.marks.Unlock()

	for _, existing := range repo.db.marks.table {
		if existing.StudentID == rec.StudentID && existing.ScheduleID == rec.ScheduleID && existing.SubjectID == rec.SubjectID {
			if existing.Status != marks.StatusEntered {
				return marks.MarkRecord{}, &marks.StageLockedError{StudentID: rec.StudentID}
			}
			rec.ID = existing.ID
			repo.db.marks.table[rec.ID] = &rec
			return rec, nil
		}
	}

	rec.ID = uuid.New().String()
	repo.db.marks.table[rec.ID] = &rec
	return rec, nil
}

func (repo *markRepository) GetGroupRecords(ctx context.Context, key marks.GroupKey, roster []string) ([]marks.MarkRecord, error) {
	repo.db.marks.RLock()
	defer repo.db.marks.RUnlock()

	enrolled := make(map[string]bool, len(roster))
	for _, studentID := range roster {
		enrolled[studentID] = true
	}

	records := make([]marks.MarkRecord, 0, len(roster))
	for _, rec := range repo.query() {
		if rec.ScheduleID == key.ScheduleID && rec.SubjectID == key.SubjectID && enrolled[rec.StudentID] {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StudentID < records[j].StudentID })
	return records, nil
}

func (repo *markRepository) BulkSetStatus(
	ctx context.Context,
	ids []string,
	from, to marks.Status,
	clearScores bool,
	actor marks.Actor,
) (int, error) {
	repo.db.marks.Lock()
	defer repo.db.marks.Unlock()

	// conditional check-and-set: count first, apply only if every record matched
	matched := 0
	for _, id := range ids {
		if rec, ok := repo.db.marks.table[id]; ok && rec.Status == from {
			matched++
		}
	}
	if matched != len(ids) {
		return matched, nil
	}

	now := time.Now().UTC()
	for _, id := range ids {
		rec := repo.db.marks.table[id]
		rec.Status = to
		if clearScores {
			rec.Score = null.Float64{}
		}
		rec.ModifiedBy = actor.ID
		rec.ModifiedByRole = actor.Role
		rec.ModifiedAt = now
	}
	return matched, nil
}

func (repo *markRepository) FilterRecords(
	ctx context.Context,
	filter marks.QueryFilter,
	ordering ...core.DBOrdering,
) ([]marks.MarkRecord, error) {
	var roster map[string]bool
	if filter.SectionID != "" {
		repo.db.schedule.RLock()
		roster = make(map[string]bool)
		for _, studentID := range repo.db.schedule.rosters[filter.SubjectID+"/"+filter.SectionID] {
			roster[studentID] = true
		}
		repo.db.schedule.RUnlock()
	}

	repo.db.marks.RLock()
	defer repo.db.marks.RUnlock()

	records := make([]marks.MarkRecord, 0)
	for _, rec := range repo.query() {
		if filter.ScheduleID != "" && rec.ScheduleID != filter.ScheduleID {
			continue
		}
		if filter.SubjectID != "" && rec.SubjectID != filter.SubjectID {
			continue
		}
		if filter.StudentID != "" && rec.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		if roster != nil && !roster[rec.StudentID] {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		ri, rj := records[i], records[j]
		if ri.ScheduleID != rj.ScheduleID {
			return ri.ScheduleID < rj.ScheduleID
		}
		if ri.SubjectID != rj.SubjectID {
			return ri.SubjectID < rj.SubjectID
		}
		return ri.StudentID < rj.StudentID
	})
	return records, nil
}
