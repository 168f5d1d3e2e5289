package enrollform

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/application"
)

const ContentTypePDF = "application/pdf"

var ErrNoTemplate = errors.New("no enrollment form template configured")

type (
	// Filler reads and fills the interactive fields of a PDF form.
	Filler interface {
		Inspect(template []byte) ([]TemplateField, error)
		// Fill sets the text fields named in values and the document title,
		// and returns the new document.
		Fill(template []byte, values map[string]string, title string) ([]byte, error)
	}

	Document struct {
		Filename    string
		Title       string
		ContentType string
		Bytes       []byte
	}

	Service struct {
		filler   Filler
		opts     Options
		logger   core.Logger
		load     func() ([]byte, error)
		nowFunc  func() time.Time
		loadOnce sync.Once

		// loaded once
		template  []byte
		fieldSet  map[string]struct{}
		inventory Inventory
		loadErr   error
	}
)

var _ application.FormRenderer = (*Service)(nil)

// NewService returns a Service filling the template read from templatePath.
func NewService(filler Filler, templatePath string, opts Options, logger core.Logger) *Service {
	return &Service{
		filler: filler,
		opts:   opts,
		logger: logger,
		load: func() ([]byte, error) {
			if templatePath == "" {
				return nil, ErrNoTemplate
			}
			return os.ReadFile(templatePath)
		},
		nowFunc: time.Now,
	}
}

// NewServiceFromBytes returns a Service filling an in-memory template.
func NewServiceFromBytes(filler Filler, template []byte, opts Options, logger core.Logger) *Service {
	svc := NewService(filler, "", opts, logger)
	svc.load = func() ([]byte, error) { return template, nil }
	return svc
}

func (svc *Service) loadTemplate() error {
	svc.loadOnce.Do(func() {
		tmpl, err := svc.load()
		if err != nil {
			svc.loadErr = errors.Wrap(err, "loading form template")
			return
		}
		fields, err := svc.filler.Inspect(tmpl)
		if err != nil {
			svc.loadErr = errors.Wrap(err, "inspecting form template")
			return
		}

		svc.template = tmpl
		svc.fieldSet = make(map[string]struct{}, len(fields))
		for _, f := range fields {
			svc.fieldSet[f.Name] = struct{}{}
		}
		svc.inventory = Classify(fields)
		svc.logger.Debug(
			fmt.Sprintf("form template loaded: %d fields", len(fields)),
			map[string]interface{}{
				"fieldKinds": svc.inventory.Kinds(),
				"TextField":  svc.inventory.TextField,
				"CheckBox":   svc.inventory.CheckBox,
				"Signature":  svc.inventory.Signature,
			},
		)
	})
	return svc.loadErr
}

// Inventory returns the classified fields of the template.
func (svc *Service) Inventory(ctx context.Context) (Inventory, error) {
	if err := svc.loadTemplate(); err != nil {
		return Inventory{}, err
	}
	return svc.inventory, ctx.Err()
}

// Render fills the template with app. Every mapped field must exist in the
// template, otherwise nothing is filled.
func (svc *Service) Render(ctx context.Context, app application.Application) (Document, error) {
	if err := svc.loadTemplate(); err != nil {
		return Document{}, err
	}

	values, err := Fields(app, svc.opts, svc.nowFunc())
	if err != nil {
		return Document{}, err
	}
	for name := range values {
		if _, ok := svc.fieldSet[name]; !ok {
			return Document{}, errors.Wrap(ErrFieldNotFound, name)
		}
	}
	if err = ctx.Err(); err != nil {
		return Document{}, err
	}

	title := Title(app)
	content, err := svc.filler.Fill(svc.template, values, title)
	if err != nil {
		return Document{}, errors.Wrap(err, "filling form")
	}
	return Document{
		Filename:    Filename(app),
		Title:       title,
		ContentType: ContentTypePDF,
		Bytes:       content,
	}, nil
}

func (svc *Service) RenderForm(ctx context.Context, app application.Application) (string, []byte, error) {
	doc, err := svc.Render(ctx, app)
	if err != nil {
		return "", nil, err
	}
	return doc.Filename, doc.Bytes, nil
}
