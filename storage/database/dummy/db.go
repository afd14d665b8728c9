package dummydb

import (
	"sync"

	"github.com/trezcool/alama/core/marks"
)

type (
	DB struct {
		marks    *markTable
		schedule *scheduleTable
	}

	markTable struct {
		sync.RWMutex
		table map[string]*marks.MarkRecord // by record ID
	}

	schedule struct {
		maxScore float64
		category marks.ScheduleCategory
	}

	scheduleTable struct {
		sync.RWMutex
		table   map[string]schedule // by schedule ID
		rosters map[string][]string // by subjectID + "/" + sectionID
	}
)

func Open() (*DB, error) {
	db := &DB{
		marks: &markTable{table: make(map[string]*marks.MarkRecord)},
		schedule: &scheduleTable{
			table:   make(map[string]schedule),
			rosters: make(map[string][]string),
		},
	}
	return db, nil
}

// AddSchedule seeds a schedule into the reference data.
func (db *DB) AddSchedule(id string, maxScore float64, category marks.ScheduleCategory) {
	db.schedule.Lock()
	defer db.schedule.Unlock()
	db.schedule.table[id] = schedule{maxScore: maxScore, category: category}
}

// SetRoster seeds the enrolled students for a (subject, section) pair.
func (db *DB) SetRoster(subjectID, sectionID string, studentIDs ...string) {
	db.schedule.Lock()
	defer db.schedule.Unlock()
	db.schedule.rosters[subjectID+"/"+sectionID] = studentIDs
}
