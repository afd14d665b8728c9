package marks

// Transition is a named edge of the marks state machine.
type Transition string

const (
	// TransitionSubmit hands a fully entered group over for tutor verification.
	TransitionSubmit Transition = "submit"
	// TransitionVerify records the tutor's verification and queues the group for admin approval.
	TransitionVerify Transition = "verify"
	// TransitionPublish is the admin approval that makes the group's results official.
	TransitionPublish Transition = "publish"
	// TransitionTutorReject sends the group back to faculty for correction.
	TransitionTutorReject Transition = "tutor_reject"
	// TransitionAdminReject sends the group back for another round of tutor verification.
	TransitionAdminReject Transition = "admin_reject"
)

var AllTransitions = []Transition{
	TransitionSubmit,
	TransitionVerify,
	TransitionPublish,
	TransitionTutorReject,
	TransitionAdminReject,
}

type edge struct {
	from, to Status
	reject   bool
	roles    []string
}

func (e edge) allows(role string) bool {
	for _, r := range e.roles {
		if r == role {
			return true
		}
	}
	return false
}

// transitionEdges is the single authorization table consulted by the engine:
// which roles may request which edge, and the uniform from/to statuses the
// whole group must move between.
var transitionEdges = map[Transition]edge{
	TransitionSubmit:      {from: StatusEntered, to: StatusPendingTutor, roles: []string{RoleFaculty, RoleTutor}},
	TransitionVerify:      {from: StatusPendingTutor, to: StatusPendingAdmin, roles: []string{RoleTutor}},
	TransitionPublish:     {from: StatusPendingAdmin, to: StatusPublished, roles: []string{RoleAdmin}},
	TransitionTutorReject: {from: StatusPendingTutor, to: StatusEntered, reject: true, roles: []string{RoleTutor}},
	TransitionAdminReject: {from: StatusPendingAdmin, to: StatusPendingTutor, reject: true, roles: []string{RoleAdmin}},
}

func (t Transition) Valid() bool {
	_, ok := transitionEdges[t]
	return ok
}

// Edge returns the from/to statuses of the transition.
func (t Transition) Edge() (from, to Status, ok bool) {
	e, ok := transitionEdges[t]
	return e.from, e.to, ok
}

// IsReject reports whether the transition is one of the back edges.
func (t Transition) IsReject() bool {
	return transitionEdges[t].reject
}

// AllowedFor reports whether the given role may request this transition.
func (t Transition) AllowedFor(role string) bool {
	return transitionEdges[t].allows(role)
}
