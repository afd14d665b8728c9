package marks

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/alama/core"
)

// fakeRepository is a minimal in-memory Repository honoring the conditional
// BulkSetStatus contract. bulkSetStatusFunc, when set, overrides BulkSetStatus
// so races can be simulated.
type fakeRepository struct {
	records           map[string]*MarkRecord // by ID
	nextID            int
	bulkSetStatusFunc func(ids []string, from, to Status) (int, error)
}

var _ Repository = (*fakeRepository)(nil)

func newFakeRepository() *fakeRepository {
	return &fakeRepository{records: make(map[string]*MarkRecord)}
}

func (repo *fakeRepository) GetRecord(_ context.Context, studentID, scheduleID, subjectID string) (MarkRecord, error) {
	for _, rec := range repo.records {
		if rec.StudentID == studentID && rec.ScheduleID == scheduleID && rec.SubjectID == subjectID {
			return *rec, nil
		}
	}
	return MarkRecord{}, ErrRecordNotFound
}

func (repo *fakeRepository) UpsertScore(_ context.Context, rec MarkRecord) (MarkRecord, error) {
	if rec.ID == "" {
		repo.nextID++
		rec.ID = fmt.Sprintf("rec%d", repo.nextID)
	} else if existing, ok := repo.records[rec.ID]; ok && existing.Status != StatusEntered {
		return MarkRecord{}, &StageLockedError{StudentID: rec.StudentID}
	}
	repo.records[rec.ID] = &rec
	return rec, nil
}

func (repo *fakeRepository) GetGroupRecords(_ context.Context, key GroupKey, roster []string) ([]MarkRecord, error) {
	enrolled := make(map[string]bool, len(roster))
	for _, studentID := range roster {
		enrolled[studentID] = true
	}
	records := make([]MarkRecord, 0, len(roster))
	for _, rec := range repo.records {
		if rec.ScheduleID == key.ScheduleID && rec.SubjectID == key.SubjectID && enrolled[rec.StudentID] {
			records = append(records, *rec)
		}
	}
	return records, nil
}

func (repo *fakeRepository) BulkSetStatus(_ context.Context, ids []string, from, to Status, clearScores bool, actor Actor) (int, error) {
	if repo.bulkSetStatusFunc != nil {
		return repo.bulkSetStatusFunc(ids, from, to)
	}

	matched := 0
	for _, id := range ids {
		if rec, ok := repo.records[id]; ok && rec.Status == from {
			matched++
		}
	}
	if matched != len(ids) {
		return matched, nil
	}
	for _, id := range ids {
		rec := repo.records[id]
		rec.Status = to
		if clearScores {
			rec.Score = null.Float64{}
		}
		rec.ModifiedBy = actor.ID
		rec.ModifiedByRole = actor.Role
		rec.ModifiedAt = time.Now().UTC()
	}
	return matched, nil
}

func (repo *fakeRepository) FilterRecords(_ context.Context, filter QueryFilter, _ ...core.DBOrdering) ([]MarkRecord, error) {
	records := make([]MarkRecord, 0)
	for _, rec := range repo.records {
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
		records = append(records, *rec)
	}
	return records, nil
}

type fakeRegistry struct {
	maxScores  map[string]float64
	categories map[string]ScheduleCategory
	rosters    map[GroupKey][]string
}

var _ ReferenceRegistry = (*fakeRegistry)(nil)

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		maxScores:  make(map[string]float64),
		categories: make(map[string]ScheduleCategory),
		rosters:    make(map[GroupKey][]string),
	}
}

func (reg *fakeRegistry) GetRoster(_ context.Context, key GroupKey) ([]string, error) {
	if _, ok := reg.maxScores[key.ScheduleID]; !ok {
		return nil, ErrScheduleNotFound
	}
	return reg.rosters[key], nil
}

func (reg *fakeRegistry) GetMaxScore(_ context.Context, scheduleID string) (float64, error) {
	maxScore, ok := reg.maxScores[scheduleID]
	if !ok {
		return 0, ErrScheduleNotFound
	}
	return maxScore, nil
}

func (reg *fakeRegistry) GetScheduleCategory(_ context.Context, scheduleID string) (ScheduleCategory, error) {
	cat, ok := reg.categories[scheduleID]
	if !ok {
		return "", ErrScheduleNotFound
	}
	return cat, nil
}

type fakeNotifier struct {
	events []core.TransitionEvent
}

func (svc *fakeNotifier) NotifyTransition(event core.TransitionEvent) {
	svc.events = append(svc.events, event)
}

var (
	testKey     = GroupKey{ScheduleID: "sched1", SubjectID: "math", SectionID: "A"}
	facultyUser = Actor{ID: "fac1", Role: RoleFaculty}
	tutorUser   = Actor{ID: "tut1", Role: RoleTutor}
	adminUser   = Actor{ID: "adm1", Role: RoleAdmin}
)

func testService(roster ...string) (Service, *fakeRepository, *fakeRegistry, *fakeNotifier) {
	repo := newFakeRepository()
	reg := newFakeRegistry()
	reg.maxScores[testKey.ScheduleID] = 100
	reg.categories[testKey.ScheduleID] = CategoryTheory
	reg.rosters[testKey] = roster
	notif := &fakeNotifier{}
	return NewService(repo, reg, notif, nil), repo, reg, notif
}

func enterScores(t *testing.T, svc Service, studentIDs ...string) {
	t.Helper()
	for _, studentID := range studentIDs {
		entry := ScoreEntry{StudentID: studentID, ScheduleID: testKey.ScheduleID, SubjectID: testKey.SubjectID, Score: 42}
		if _, err := svc.UpsertScore(context.Background(), entry, facultyUser); err != nil {
			t.Fatalf("UpsertScore(%s) failed, %v", studentID, err)
		}
	}
}

func applyAll(t *testing.T, svc Service, transitions ...Transition) {
	t.Helper()
	actors := map[Transition]Actor{
		TransitionSubmit:      facultyUser,
		TransitionVerify:      tutorUser,
		TransitionPublish:     adminUser,
		TransitionTutorReject: tutorUser,
		TransitionAdminReject: adminUser,
	}
	for _, trans := range transitions {
		req := TransitionRequest{GroupKey: testKey, Transition: trans}
		if _, err := svc.Apply(context.Background(), req, actors[trans]); err != nil {
			t.Fatalf("Apply(%s) failed, %v", trans, err)
		}
	}
}

func Test_service_UpsertScore(t *testing.T) {
	ctx := context.Background()

	t.Run("score above schedule max is refused", func(t *testing.T) {
		svc, repo, _, _ := testService("std1")

		entry := ScoreEntry{StudentID: "std1", ScheduleID: testKey.ScheduleID, SubjectID: testKey.SubjectID, Score: 105}
		_, err := svc.UpsertScore(ctx, entry, facultyUser)
		var invalidErr *InvalidScoreError
		if !errors.As(err, &invalidErr) {
			t.Fatalf("UpsertScore() error = %v, want InvalidScoreError", err)
		}
		if invalidErr.MaxScore != 100 {
			t.Errorf("InvalidScoreError.MaxScore = %g, want 100", invalidErr.MaxScore)
		}
		if len(repo.records) != 0 {
			t.Errorf("record was written despite invalid score")
		}
	})

	t.Run("unknown schedule", func(t *testing.T) {
		svc, _, _, _ := testService("std1")

		entry := ScoreEntry{StudentID: "std1", ScheduleID: "nope", SubjectID: testKey.SubjectID, Score: 10}
		if _, err := svc.UpsertScore(ctx, entry, facultyUser); errors.Cause(err) != ErrScheduleNotFound {
			t.Errorf("UpsertScore() error = %v, want %v", err, ErrScheduleNotFound)
		}
	})

	t.Run("first write creates the record", func(t *testing.T) {
		svc, _, _, _ := testService("std1")

		entry := ScoreEntry{StudentID: "std1", ScheduleID: testKey.ScheduleID, SubjectID: testKey.SubjectID, Score: 42}
		rec, err := svc.UpsertScore(ctx, entry, facultyUser)
		if err != nil {
			t.Fatalf("UpsertScore() failed, %v", err)
		}
		if rec.ID == "" {
			t.Error("record was not assigned an ID")
		}
		if rec.Status != StatusEntered {
			t.Errorf("record Status = %s, want %s", rec.Status, StatusEntered)
		}
		if !rec.Score.Valid || rec.Score.Float64 != 42 {
			t.Errorf("record Score = %v, want 42", rec.Score)
		}
		if rec.ModifiedBy != facultyUser.ID || rec.ModifiedByRole != RoleFaculty {
			t.Errorf("record audit trail = (%s, %s), want (%s, %s)", rec.ModifiedBy, rec.ModifiedByRole, facultyUser.ID, RoleFaculty)
		}
	})

	t.Run("re-entry updates in place", func(t *testing.T) {
		svc, repo, _, _ := testService("std1")
		enterScores(t, svc, "std1")

		entry := ScoreEntry{StudentID: "std1", ScheduleID: testKey.ScheduleID, SubjectID: testKey.SubjectID, Score: 77}
		rec, err := svc.UpsertScore(ctx, entry, facultyUser)
		if err != nil {
			t.Fatalf("UpsertScore() failed, %v", err)
		}
		if len(repo.records) != 1 {
			t.Fatalf("got %d records, want 1", len(repo.records))
		}
		if rec.Score.Float64 != 77 {
			t.Errorf("record Score = %g, want 77", rec.Score.Float64)
		}
	})

	t.Run("locked once submitted", func(t *testing.T) {
		svc, _, _, _ := testService("std1")
		enterScores(t, svc, "std1")
		applyAll(t, svc, TransitionSubmit)

		entry := ScoreEntry{StudentID: "std1", ScheduleID: testKey.ScheduleID, SubjectID: testKey.SubjectID, Score: 50}
		_, err := svc.UpsertScore(ctx, entry, facultyUser)
		var lockedErr *StageLockedError
		if !errors.As(err, &lockedErr) {
			t.Fatalf("UpsertScore() error = %v, want StageLockedError", err)
		}
		if lockedErr.Status != StatusPendingTutor {
			t.Errorf("StageLockedError.Status = %s, want %s", lockedErr.Status, StatusPendingTutor)
		}
	})
}

func Test_service_Apply(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown transition", func(t *testing.T) {
		svc, _, _, _ := testService("std1")

		req := TransitionRequest{GroupKey: testKey, Transition: "yeet"}
		_, err := svc.Apply(ctx, req, adminUser)
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("Apply() error = %v, want ValidationError", err)
		}
	})

	t.Run("role not allowed on edge", func(t *testing.T) {
		svc, _, _, _ := testService("std1")
		enterScores(t, svc, "std1")

		req := TransitionRequest{GroupKey: testKey, Transition: TransitionPublish}
		_, err := svc.Apply(ctx, req, facultyUser)
		var unauthErr *UnauthorizedTransitionError
		if !errors.As(err, &unauthErr) {
			t.Fatalf("Apply() error = %v, want UnauthorizedTransitionError", err)
		}
		if unauthErr.Role != RoleFaculty || unauthErr.Transition != TransitionPublish {
			t.Errorf("UnauthorizedTransitionError = %+v", unauthErr)
		}
	})

	t.Run("incomplete group is refused with missing students", func(t *testing.T) {
		svc, _, _, _ := testService("std1", "std2", "std3")
		enterScores(t, svc, "std1", "std2")

		req := TransitionRequest{GroupKey: testKey, Transition: TransitionSubmit}
		_, err := svc.Apply(ctx, req, facultyUser)
		var incErr *IncompleteGroupError
		if !errors.As(err, &incErr) {
			t.Fatalf("Apply() error = %v, want IncompleteGroupError", err)
		}
		if !reflect.DeepEqual(incErr.MissingStudentIDs, []string{"std3"}) {
			t.Errorf("MissingStudentIDs = %v, want [std3]", incErr.MissingStudentIDs)
		}
		if incErr.Expected != StatusEntered {
			t.Errorf("Expected = %s, want %s", incErr.Expected, StatusEntered)
		}
	})

	t.Run("empty roster is refused", func(t *testing.T) {
		svc, _, _, _ := testService()

		req := TransitionRequest{GroupKey: testKey, Transition: TransitionSubmit}
		var incErr *IncompleteGroupError
		if _, err := svc.Apply(ctx, req, facultyUser); !errors.As(err, &incErr) {
			t.Errorf("Apply() error = %v, want IncompleteGroupError", err)
		}
	})

	t.Run("complete group moves as one unit", func(t *testing.T) {
		svc, repo, _, notif := testService("std1", "std2", "std3")
		enterScores(t, svc, "std1", "std2", "std3")

		req := TransitionRequest{GroupKey: testKey, Transition: TransitionSubmit}
		n, err := svc.Apply(ctx, req, facultyUser)
		if err != nil {
			t.Fatalf("Apply() failed, %v", err)
		}
		if n != 3 {
			t.Errorf("Apply() = %d, want 3", n)
		}
		for _, rec := range repo.records {
			if rec.Status != StatusPendingTutor {
				t.Errorf("record %s Status = %s, want %s", rec.ID, rec.Status, StatusPendingTutor)
			}
		}
		if len(notif.events) != 1 {
			t.Fatalf("got %d notification events, want 1", len(notif.events))
		}
		event := notif.events[0]
		if event.Transition != string(TransitionSubmit) || event.NewStatus != string(StatusPendingTutor) || event.UpdatedCount != 3 {
			t.Errorf("unexpected notification event %+v", event)
		}
	})

	t.Run("re-applying a done transition is a no-op", func(t *testing.T) {
		svc, _, _, notif := testService("std1", "std2")
		enterScores(t, svc, "std1", "std2")
		applyAll(t, svc, TransitionSubmit)

		req := TransitionRequest{GroupKey: testKey, Transition: TransitionSubmit}
		n, err := svc.Apply(ctx, req, facultyUser)
		if err != nil {
			t.Fatalf("Apply() failed, %v", err)
		}
		if n != 0 {
			t.Errorf("Apply() = %d, want 0", n)
		}
		if len(notif.events) != 1 {
			t.Errorf("got %d notification events, want 1 (no event for the no-op)", len(notif.events))
		}
	})

	t.Run("raced transition is rolled back", func(t *testing.T) {
		svc, repo, _, notif := testService("std1", "std2")
		enterScores(t, svc, "std1", "std2")

		repo.bulkSetStatusFunc = func(ids []string, from, to Status) (int, error) {
			return len(ids) - 1, nil // another actor took one record away mid-flight
		}

		req := TransitionRequest{GroupKey: testKey, Transition: TransitionSubmit}
		_, err := svc.Apply(ctx, req, facultyUser)
		var concErr *ConcurrentModificationError
		if !errors.As(err, &concErr) {
			t.Fatalf("Apply() error = %v, want ConcurrentModificationError", err)
		}
		if concErr.Expected != 2 || concErr.Updated != 1 {
			t.Errorf("ConcurrentModificationError = %+v, want Expected=2 Updated=1", concErr)
		}
		if len(notif.events) != 0 {
			t.Errorf("notification emitted for a failed transition")
		}
	})

	t.Run("reject keeps scores by default", func(t *testing.T) {
		svc, repo, _, _ := testService("std1", "std2")
		enterScores(t, svc, "std1", "std2")
		applyAll(t, svc, TransitionSubmit)

		req := TransitionRequest{GroupKey: testKey, Transition: TransitionTutorReject}
		if _, err := svc.Apply(ctx, req, tutorUser); err != nil {
			t.Fatalf("Apply() failed, %v", err)
		}
		for _, rec := range repo.records {
			if rec.Status != StatusEntered {
				t.Errorf("record %s Status = %s, want %s", rec.ID, rec.Status, StatusEntered)
			}
			if !rec.Score.Valid {
				t.Errorf("record %s score was cleared without clear_scores", rec.ID)
			}
		}
	})

	t.Run("reject clears scores on request", func(t *testing.T) {
		svc, repo, _, _ := testService("std1", "std2")
		enterScores(t, svc, "std1", "std2")
		applyAll(t, svc, TransitionSubmit)

		req := TransitionRequest{GroupKey: testKey, Transition: TransitionTutorReject, ClearScores: true}
		if _, err := svc.Apply(ctx, req, tutorUser); err != nil {
			t.Fatalf("Apply() failed, %v", err)
		}
		for _, rec := range repo.records {
			if rec.Score.Valid {
				t.Errorf("record %s score survived clear_scores", rec.ID)
			}
		}
	})

	t.Run("clear_scores is ignored on forward edges", func(t *testing.T) {
		svc, repo, _, _ := testService("std1")
		enterScores(t, svc, "std1")

		req := TransitionRequest{GroupKey: testKey, Transition: TransitionSubmit, ClearScores: true}
		if _, err := svc.Apply(ctx, req, facultyUser); err != nil {
			t.Fatalf("Apply() failed, %v", err)
		}
		for _, rec := range repo.records {
			if !rec.Score.Valid {
				t.Errorf("score cleared on a forward edge")
			}
		}
	})

	t.Run("full pipeline round trip", func(t *testing.T) {
		svc, repo, _, notif := testService("std1", "std2")
		enterScores(t, svc, "std1", "std2")
		applyAll(t, svc,
			TransitionSubmit,
			TransitionVerify,
			TransitionAdminReject, // back to the tutor once
			TransitionVerify,
			TransitionPublish,
		)

		for _, rec := range repo.records {
			if rec.Status != StatusPublished {
				t.Errorf("record %s Status = %s, want %s", rec.ID, rec.Status, StatusPublished)
			}
		}
		if len(notif.events) != 5 {
			t.Errorf("got %d notification events, want 5", len(notif.events))
		}

		// published records are locked for good
		entry := ScoreEntry{StudentID: "std1", ScheduleID: testKey.ScheduleID, SubjectID: testKey.SubjectID, Score: 99}
		var lockedErr *StageLockedError
		if _, err := svc.UpsertScore(ctx, entry, facultyUser); !errors.As(err, &lockedErr) {
			t.Errorf("UpsertScore() after publish error = %v, want StageLockedError", err)
		}
	})
}

func Test_service_GetGroup(t *testing.T) {
	svc, _, _, _ := testService("std2", "std1", "std3")
	enterScores(t, svc, "std1", "std3")

	records, err := svc.GetGroup(context.Background(), testKey)
	if err != nil {
		t.Fatalf("GetGroup() failed, %v", err)
	}

	// roster order, absent students skipped
	got := make([]string, 0, len(records))
	for _, rec := range records {
		got = append(got, rec.StudentID)
	}
	if want := []string{"std1", "std3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("GetGroup() students = %v, want %v", got, want)
	}
}

func Test_service_Readiness(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid target status", func(t *testing.T) {
		svc, _, _, _ := testService("std1")

		var vErr *core.ValidationError
		if _, err := svc.Readiness(ctx, testKey, "REJECTED"); !errors.As(err, &vErr) {
			t.Errorf("Readiness() error = %v, want ValidationError", err)
		}
	})

	t.Run("reports missing students", func(t *testing.T) {
		svc, _, _, _ := testService("std1", "std2")
		enterScores(t, svc, "std1")

		rep, err := svc.Readiness(ctx, testKey, StatusEntered)
		if err != nil {
			t.Fatalf("Readiness() failed, %v", err)
		}
		if rep.Complete {
			t.Error("Complete = true, want false")
		}
		if !reflect.DeepEqual(rep.MissingStudentIDs, []string{"std2"}) {
			t.Errorf("MissingStudentIDs = %v, want [std2]", rep.MissingStudentIDs)
		}
	})

	t.Run("complete group", func(t *testing.T) {
		svc, _, _, _ := testService("std1", "std2")
		enterScores(t, svc, "std1", "std2")

		rep, err := svc.Readiness(ctx, testKey, StatusEntered)
		if err != nil {
			t.Fatalf("Readiness() failed, %v", err)
		}
		if !rep.Complete {
			t.Error("Complete = false, want true")
		}
	})
}
