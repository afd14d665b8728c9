package notifsvc

import (
	"fmt"
	"log"
	"sync"

	"github.com/trezcool/alama/core"
)

var (
	SentEvents = make([]core.TransitionEvent, 0)
	mu         sync.Mutex
)

type consoleService struct {
	subjPrefix    string
	disableOutput bool
}

var _ core.NotificationService = (*consoleService)(nil)

func NewConsoleService() core.NotificationService {
	return &consoleService{subjPrefix: "[" + core.Conf.AppName + "] "}
}

func (svc consoleService) NotifyTransition(event core.TransitionEvent) {
	go svc.send(event)
}

func (svc consoleService) send(event core.TransitionEvent) {
	if !svc.disableOutput {
		log.Println(svc.subjPrefix + FormatTransition(event))
	}
	mu.Lock()
	SentEvents = append(SentEvents, event)
	mu.Unlock()
}

// FormatTransition renders a transition event as a one-line human message.
func FormatTransition(event core.TransitionEvent) string {
	return fmt.Sprintf(
		"marks for schedule %s / subject %s / section %s moved to %s (%d records, %s by %s %s)",
		event.ScheduleID, event.SubjectID, event.SectionID, event.NewStatus,
		event.UpdatedCount, event.Transition, event.ActorRole, event.ActorID,
	)
}

type consoleServiceMock struct {
	consoleService
}

func NewConsoleServiceMock() core.NotificationService {
	return &consoleServiceMock{
		consoleService: consoleService{
			subjPrefix:    "[" + core.Conf.AppName + "] ",
			disableOutput: true,
		},
	}
}

func (svc *consoleServiceMock) NotifyTransition(event core.TransitionEvent) {
	// run synchronously
	svc.send(event)
}
