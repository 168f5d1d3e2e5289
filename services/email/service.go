package emailsvc

import (
	"github.com/pkg/errors"

	"github.com/enrollgsrp/gsrp-enroll/core"
)

// New returns the EmailService of the configured mail provider.
func New(conf *core.Config, logger core.Logger) (core.EmailService, error) {
	switch conf.Mail.Provider {
	case "", "console":
		return NewConsoleService(conf, logger), nil
	case "sendgrid":
		if conf.Mail.SendgridAPIKey == "" {
			return nil, errors.New("sendgrid: missing API key")
		}
		return NewSendgridService(conf, logger), nil
	case "mailgun":
		if conf.Mail.MailgunAPIKey == "" || conf.Mail.MailgunDomain == "" {
			return nil, errors.New("mailgun: missing API key or domain")
		}
		return NewMailgunService(conf, logger), nil
	default:
		return nil, errors.Errorf("unknown mail provider %q", conf.Mail.Provider)
	}
}
