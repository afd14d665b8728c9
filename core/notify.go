package core

import "time"

// TransitionEvent describes a successful group stage transition.
// Fields are flat so collaborators do not need the marks domain package.
type TransitionEvent struct {
	ScheduleID   string    `json:"schedule_id"`
	SubjectID    string    `json:"subject_id"`
	SectionID    string    `json:"section_id"`
	Transition   string    `json:"transition"`
	NewStatus    string    `json:"new_status"`
	ActorID      string    `json:"actor_id"`
	ActorRole    string    `json:"actor_role"`
	UpdatedCount int       `json:"updated_count"`
	OccurredAt   time.Time `json:"occurred_at"` // UTC
}

// NotificationService is any service that can fan transition events out to
// interested parties. Delivery is fire-and-forget: implementations must never
// block the caller nor surface delivery failures back to the workflow.
type NotificationService interface {
	NotifyTransition(event TransitionEvent)
}
