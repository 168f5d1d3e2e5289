package application

import "context"

type serviceMock struct {
	service
}

// NewServiceMock returns a Service that notifies guardians synchronously.
func NewServiceMock(deps Deps) Service {
	svc := &serviceMock{}
	svc.service = *NewService(deps).(*service)
	return svc
}

func (svc *serviceMock) Create(ctx context.Context, na NewApplication) (Application, error) {
	if err := na.Validate(svc.Validate); err != nil {
		return Application{}, err
	}
	app, err := svc.create(ctx, na)
	if err != nil {
		return Application{}, err
	}
	// run synchronously
	svc.notifyReceived(app)
	return app, nil
}
