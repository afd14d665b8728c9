package dummynotif

import (
	"sync"

	"github.com/trezcool/alama/core"
)

// service records events synchronously so tests can assert on them.
type service struct {
	mu     sync.Mutex
	events []core.TransitionEvent
}

var _ core.NotificationService = (*service)(nil)

func NewService() *service {
	return &service{events: make([]core.TransitionEvent, 0)}
}

func (svc *service) NotifyTransition(event core.TransitionEvent) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.events = append(svc.events, event)
}

func (svc *service) SentEvents() []core.TransitionEvent {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	out := make([]core.TransitionEvent, len(svc.events))
	copy(out, svc.events)
	return out
}
