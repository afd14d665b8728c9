package notifsvc

import (
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/alama/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// sendgridService emails transition events to the configured staff addresses.
// Delivery runs in the background; failures are logged and never surfaced to
// the workflow.
type sendgridService struct {
	key        string
	from       *sgmail.Email
	recipients []string
	subjPrefix string
	logger     core.Logger
}

var _ core.NotificationService = (*sendgridService)(nil)

func NewSendgridService(logger core.Logger) core.NotificationService {
	return &sendgridService{
		key:        core.Conf.SendgridAPIKey,
		from:       sgmail.NewEmail(core.Conf.DefaultFromEmail.Name, core.Conf.DefaultFromEmail.Address),
		recipients: core.Conf.NotifyEmails,
		subjPrefix: "[" + core.Conf.AppName + "] ",
		logger:     logger,
	}
}

func (svc *sendgridService) NotifyTransition(event core.TransitionEvent) {
	if len(svc.recipients) == 0 {
		return
	}
	go svc.send(event)
}

func (svc *sendgridService) send(event core.TransitionEvent) {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + "Marks moved to " + event.NewStatus
	for _, to := range svc.recipients {
		p.AddTos(sgmail.NewEmail("", to))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", FormatTransition(event)))

	req := sendgrid.GetRequest(svc.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		svc.logger.Error("sending transition notification", err)
		return
	}
	if res.StatusCode >= http.StatusBadRequest {
		svc.logger.Error("sending transition notification", map[string]interface{}{
			"status": res.StatusCode,
			"body":   res.Body,
		})
	}
}
