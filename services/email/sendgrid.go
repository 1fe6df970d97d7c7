package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"golang.org/x/sync/errgroup"

	"github.com/foureyes/bando/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

type sendgridService struct {
	key         string
	from        *sgmail.Email
	subjPrefix  string
	concurrency int
	logger      core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

// NewSendgridService sends emails in the background, at most conf.Server.NotifyConcurrency at a time.
func NewSendgridService(conf *core.Config, logger core.Logger) core.EmailService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		key:         conf.SendgridApiKey,
		from:        sgmail.NewEmail(from.Name, from.Address),
		subjPrefix:  "[" + conf.AppName + "] ",
		concurrency: conf.Server.NotifyConcurrency,
		logger:      logger,
	}
}

func (svc sendgridService) SendMessages(messages ...*core.EmailMessage) {
	go func() {
		var g errgroup.Group
		if svc.concurrency > 0 {
			g.SetLimit(svc.concurrency)
		}
		for _, msg := range messages {
			msg := msg
			g.Go(func() error {
				if err := msg.Render(); err != nil {
					svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
					return nil
				}
				if msg.HasRecipients() && msg.HasContent() {
					svc.send(*msg)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}

func (svc sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject

	for _, to := range msg.To {
		p.AddTos(svc.getSGEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(svc.getSGEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(svc.getSGEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return m
}

func (svc sendgridService) getSGEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

func (svc sendgridService) send(msg core.EmailMessage) {
	req := sendgrid.GetRequest(svc.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(svc.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
	} else if res.StatusCode >= http.StatusBadRequest {
		svc.logger.Error(fmt.Sprintf("sending email - status: %d - Body: %s", res.StatusCode, res.Body))
	}
}
