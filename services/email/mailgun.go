package emailsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/pkg/errors"

	"github.com/enrollgsrp/gsrp-enroll/core"
)

const mailgunTimeout = 30 * time.Second

// mailgunSender is the part of mailgun.Mailgun used to send messages.
type mailgunSender interface {
	NewMessage(from, subject, text string, to ...string) *mailgun.Message
	Send(ctx context.Context, m *mailgun.Message) (string, string, error)
}

type mailgunService struct {
	mg              mailgunSender
	from            string
	frontendBaseURL string
	logger          core.Logger
}

var _ core.EmailService = (*mailgunService)(nil)

func NewMailgunService(conf *core.Config, logger core.Logger) core.EmailService {
	mg := mailgun.NewMailgun(conf.Mail.MailgunDomain, conf.Mail.MailgunAPIKey)
	if conf.Mail.MailgunEU {
		mg.SetAPIBase(mailgun.APIBaseEU)
	}
	from := conf.DefaultFromEmail()
	return &mailgunService{
		mg:              mg,
		from:            from.String(),
		frontendBaseURL: conf.FrontendBaseURL,
		logger:          logger,
	}
}

func (svc mailgunService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := msg.Render(svc.frontendBaseURL); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
				return
			}
			if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
				ctx, cancel := context.WithTimeout(context.Background(), mailgunTimeout)
				defer cancel()
				if err := svc.send(ctx, *msg); err != nil {
					svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
				}
			}
		}()
	}
}

func (svc mailgunService) prepare(msg core.EmailMessage) *mailgun.Message {
	m := svc.mg.NewMessage(svc.from, msg.Subject, msg.TextContent)
	for _, to := range msg.To {
		if err := m.AddRecipient(to.String()); err != nil {
			svc.logger.Warn(fmt.Sprintf("mailgun: dropping recipient %s", to.Address), err)
		}
	}
	for _, cc := range msg.Cc {
		m.AddCC(cc.String())
	}
	for _, bcc := range msg.Bcc {
		m.AddBCC(bcc.String())
	}
	if msg.HTMLContent != "" {
		m.SetHtml(msg.HTMLContent)
	}
	for _, at := range msg.Attachments {
		m.AddBufferAttachment(at.Filename, at.Data)
	}
	return m
}

func (svc mailgunService) send(ctx context.Context, msg core.EmailMessage) error {
	_, id, err := svc.mg.Send(ctx, svc.prepare(msg))
	if err != nil {
		return errors.Wrap(err, "mailgun")
	}
	svc.logger.Debug("email sent", map[string]interface{}{"mailgunId": id, "subject": msg.Subject})
	return nil
}
