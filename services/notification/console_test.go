package notifsvc

import (
	"strings"
	"testing"
	"time"

	"github.com/trezcool/alama/core"
)

func TestFormatTransition(t *testing.T) {
	event := core.TransitionEvent{
		ScheduleID:   "sched1",
		SubjectID:    "math",
		SectionID:    "A",
		Transition:   "submit",
		NewStatus:    "PENDING_TUTOR",
		ActorID:      "fac1",
		ActorRole:    "faculty",
		UpdatedCount: 3,
		OccurredAt:   time.Now().UTC(),
	}

	msg := FormatTransition(event)
	for _, want := range []string{"sched1", "math", "A", "PENDING_TUTOR", "3 records", "submit", "faculty fac1"} {
		if !strings.Contains(msg, want) {
			t.Errorf("FormatTransition() = %q, missing %q", msg, want)
		}
	}
}

func Test_consoleServiceMock_NotifyTransition(t *testing.T) {
	svc := NewConsoleServiceMock()

	before := len(SentEvents)
	svc.NotifyTransition(core.TransitionEvent{ScheduleID: "sched1", Transition: "verify"})

	if len(SentEvents) != before+1 {
		t.Fatalf("got %d sent events, want %d", len(SentEvents), before+1)
	}
	if got := SentEvents[len(SentEvents)-1].Transition; got != "verify" {
		t.Errorf("last event transition = %s, want verify", got)
	}
}
