package core

import (
	"bytes"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	"github.com/enrollgsrp/gsrp-enroll/assets"
)

const baseTemplate = "base"

var (
	templates tmplCache
	tmplErr   error
	tmplInit  sync.Once
)

type (
	tmplCacheEntry map[string]interface{}    // {ext: *Template}
	tmplCache      map[string]tmplCacheEntry // {name: {tmplCacheEntry}}

	Attachment struct {
		Data        []byte
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Base64 returns the standard base64 encoding of the attachment's content.
func (at Attachment) Base64() string {
	return base64.StdEncoding.EncodeToString(at.Data)
}

func (m *EmailMessage) getTemplate(ext string) (interface{}, bool) {
	cache, ok := templates[m.TemplateName]
	if !ok {
		return nil, ok
	}
	tmplEntry, ok := cache[ext]
	return tmplEntry, ok
}

func (m *EmailMessage) renderText(data ContextData) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	} else if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(".txt")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*texttmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buff, baseTemplate, data); err != nil {
		return err
	}
	m.TextContent = buff.String()
	return nil
}

func (m *EmailMessage) renderHTML(data ContextData) error {
	if m.TemplateName == "" {
		return nil
	}

	tmplEntry, ok := m.getTemplate(".gohtml")
	if !ok {
		return nil
	}
	tmpl, ok := tmplEntry.(*htmltmpl.Template)
	if !ok {
		return nil
	}

	var buff bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buff, baseTemplate, data); err != nil {
		return err
	}
	m.HTMLContent = buff.String()
	return nil
}

// Render fills TextContent and HTMLContent from the message's templates.
func (m *EmailMessage) Render(frontendBaseURL string) error {
	if m.TemplateName != "" {
		tmplInit.Do(parseTemplates) // only execute once during first request
		if tmplErr != nil {
			return errors.Wrap(tmplErr, "parsing email templates")
		}
		if _, ok := templates[m.TemplateName]; !ok {
			return errors.Errorf("unknown email template %q", m.TemplateName)
		}
	}
	data := ContextData{FrontendBaseURL: frontendBaseURL, Data: m.TemplateData}
	if err := m.renderText(data); err != nil {
		return err
	}
	return m.renderHTML(data)
}

// Attach reads r entirely and adds it as an attachment.
// The content type is sniffed when not provided.
func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading attachment")
	}
	at := Attachment{Filename: filename, Data: content}
	if len(ct) > 0 {
		at.ContentType = ct[0]
	} else {
		at.ContentType = http.DetectContentType(content)
	}
	m.Attachments = append(m.Attachments, at)
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return (m.TextContent != "") || (m.HTMLContent != "") }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// ParseEmailTemplates parses the embedded email templates ahead of the first Render.
func ParseEmailTemplates(logger Logger) {
	tmplInit.Do(parseTemplates)
	if tmplErr != nil {
		logger.Error("parsing email templates", tmplErr)
	}
}

func parseTemplates() {
	templates = make(tmplCache)

	root := assets.EmailTemplatesDir
	entries, err := fs.ReadDir(assets.EmailTemplates, root)
	if err != nil {
		tmplErr = err
		return
	}

	for _, e := range entries {
		fname := e.Name()
		ext := path.Ext(fname)
		if e.IsDir() || strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := templates[name]
		if !ok {
			templates[name] = make(tmplCacheEntry)
			entry = templates[name]
		}
		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(assets.EmailTemplates, path.Join(root, "_base.txt"), path.Join(root, fname))
			if err != nil {
				tmplErr = errors.Wrap(err, fname)
				return
			}
			entry[ext] = tmpl.Option("missingkey=error")
		} else {
			tmpl, err := htmltmpl.ParseFS(assets.EmailTemplates, path.Join(root, "_base.gohtml"), path.Join(root, fname))
			if err != nil {
				tmplErr = errors.Wrap(err, fname)
				return
			}
			entry[ext] = tmpl.Option("missingkey=error")
		}
	}
}
