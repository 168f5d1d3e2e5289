package emailsvc

import (
	"fmt"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/enrollgsrp/gsrp-enroll/core"
)

type consoleService struct {
	defaultFromEmail mail.Address
	frontendBaseURL  string
	logger           core.Logger
	disableOutput    bool
}

var _ core.EmailService = (*consoleService)(nil)

// NewConsoleService prints emails instead of sending them.
func NewConsoleService(conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleService{
		defaultFromEmail: conf.DefaultFromEmail(),
		frontendBaseURL:  conf.FrontendBaseURL,
		logger:           logger,
	}
}

func (svc consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go func(msg *core.EmailMessage) {
			if _, err := svc.sendMessage(msg); err != nil {
				svc.logger.Error("sending email", err)
			}
		}(msg)
	}
}

func (svc consoleService) sendMessage(msg *core.EmailMessage) (bool, error) {
	if err := msg.Render(svc.frontendBaseURL); err != nil {
		return false, errors.Wrap(err, "rendering email")
	}
	if !(msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments())) {
		return false, nil
	}
	body, err := svc.format(*msg)
	if err != nil {
		return false, err
	}
	if !svc.disableOutput {
		svc.logger.Info(body)
	}
	return true, nil
}

// format writes msg as a MIME message.
func (svc consoleService) format(msg core.EmailMessage) (string, error) {
	body := new(strings.Builder)

	// Write mail header
	_, _ = fmt.Fprintf(body, "From: %s\r\n", svc.defaultFromEmail.String())
	_, _ = fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", msg.Subject)
	_, _ = fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		_, _ = fmt.Fprintf(body, "CC: %s\r\n", joinAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		_, _ = fmt.Fprintf(body, "BCC: %s\r\n", joinAddresses(msg.Bcc))
	}

	var mixedW *multipart.Writer
	altW := multipart.NewWriter(body)

	if msg.HasAttachments() {
		mixedW = multipart.NewWriter(body)
		_, _ = fmt.Fprintf(body, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mixedW.Boundary())
		if _, err := mixedW.CreatePart(textproto.MIMEHeader{
			"Content-Type": {"multipart/alternative; boundary=" + altW.Boundary()},
		}); err != nil {
			return "", errors.Wrap(err, "creating multipart/alternative part")
		}
	} else {
		_, _ = fmt.Fprintf(body, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", altW.Boundary())
	}

	w, err := altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return "", errors.Wrap(err, "creating text/plain part")
	}
	_, _ = fmt.Fprintf(w, "%s\r\n", msg.TextContent)

	if msg.HTMLContent != "" {
		w, err = altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=utf-8"}})
		if err != nil {
			return "", errors.Wrap(err, "creating text/html part")
		}
		_, _ = fmt.Fprintf(w, "%s\r\n", msg.HTMLContent)
	}
	_ = altW.Close()

	if mixedW != nil {
		for _, at := range msg.Attachments {
			w, err = mixedW.CreatePart(textproto.MIMEHeader{
				"Content-Type":              {at.ContentType},
				"Content-Transfer-Encoding": {"base64"},
				"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", at.Filename)}})
			if err != nil {
				return "", errors.Wrap(err, "creating "+at.ContentType+" part")
			}
			_, _ = fmt.Fprintf(w, "%s\r\n", at.Base64())
		}
		_ = mixedW.Close()
	}
	return body.String(), nil
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}

// ConsoleServiceMock renders messages synchronously and keeps the sent ones.
type ConsoleServiceMock struct {
	consoleService
	mu   sync.Mutex
	sent []core.EmailMessage
}

var _ core.EmailService = (*ConsoleServiceMock)(nil)

func NewConsoleServiceMock(conf *core.Config, logger core.Logger) *ConsoleServiceMock {
	return &ConsoleServiceMock{
		consoleService: consoleService{
			defaultFromEmail: conf.DefaultFromEmail(),
			frontendBaseURL:  conf.FrontendBaseURL,
			logger:           logger,
			disableOutput:    true,
		},
	}
}

func (svc *ConsoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		// run synchronously
		sent, err := svc.sendMessage(msg)
		if err != nil {
			svc.logger.Error("sending email", err)
			continue
		}
		if sent {
			svc.mu.Lock()
			svc.sent = append(svc.sent, *msg)
			svc.mu.Unlock()
		}
	}
}

// SentMessages returns a copy of the messages sent so far.
func (svc *ConsoleServiceMock) SentMessages() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.EmailMessage(nil), svc.sent...)
}

// Reset forgets the sent messages.
func (svc *ConsoleServiceMock) Reset() {
	svc.mu.Lock()
	svc.sent = nil
	svc.mu.Unlock()
}
