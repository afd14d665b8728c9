package marks

// Readiness reports whether a verification group may leave the target stage as
// one unit, and if not, exactly why: which enrolled students have no record
// yet and which records rest at another stage.
type Readiness struct {
	Key                 GroupKey `json:"group"`
	TargetStatus        Status   `json:"target_status"`
	Complete            bool     `json:"complete"`
	EnrolledCount       int      `json:"enrolled_count"`
	RecordCount         int      `json:"record_count"`
	MissingStudentIDs   []string `json:"missing_student_ids"`
	MismatchedStatusIDs []string `json:"mismatched_status_ids"`
}

// EvaluateReadiness computes group completeness against the roster read at
// evaluation time. Pure function, no side effects; used both as the engine's
// pre-check and as the readiness query backing tutor/admin dashboards.
func EvaluateReadiness(key GroupKey, target Status, roster []string, records []MarkRecord) Readiness {
	rep := Readiness{
		Key:           key,
		TargetStatus:  target,
		EnrolledCount: len(roster),
		RecordCount:   len(records),
	}

	byStudent := make(map[string]MarkRecord, len(records))
	for _, rec := range records {
		byStudent[rec.StudentID] = rec
	}

	for _, studentID := range roster {
		rec, ok := byStudent[studentID]
		if !ok {
			rep.MissingStudentIDs = append(rep.MissingStudentIDs, studentID)
			continue
		}
		if rec.Status != target {
			rep.MismatchedStatusIDs = append(rep.MismatchedStatusIDs, studentID)
		}
	}

	rep.Complete = len(roster) > 0 && len(rep.MissingStudentIDs) == 0 && len(rep.MismatchedStatusIDs) == 0
	return rep
}
