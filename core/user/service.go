package user

import (
	"context"
	"net/mail"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/enrollgsrp/gsrp-enroll/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrUserExists         = errors.New("User already exists")
	ErrTokenTaken         = errors.New("confirmation token already in use")
	ErrInvalidCredentials = errors.New("Please check your email and password.")
	ErrInvalidToken       = errors.New("Invalid confirmation token")
	ErrNoRecipient        = errors.New("no recipient configured for the test message")
)

const (
	confirmationTemplate = "user_confirmation"
	testMessageTemplate  = "test_message"
)

type (
	Repository interface {
		// CreateUser returns ErrUserExists when the email is already taken and
		// ErrTokenTaken when the confirmation token is.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// SetLastLogin writes LastLogin alone, leaving concurrent changes to other fields intact.
		SetLastLogin(ctx context.Context, id string, t time.Time) (User, error)
		// SetConfirmationToken stores token only when the user has none yet, and returns the stored user.
		SetConfirmationToken(ctx context.Context, id, token string) (User, error)
		// ConfirmUser sets IsConfirmed on the user holding token in a single update.
		ConfirmUser(ctx context.Context, token string) (User, error)
	}

	Service interface {
		Register(ctx context.Context, nu NewUser) (User, error)
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		Confirm(ctx context.Context, token string) (User, error)
		SendConfirmation(ctx context.Context, email string) error
		SendTestMessage(ctx context.Context, to mail.Address) error
		Query(ctx context.Context, filter *QueryFilter) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		SetPassword(ctx context.Context, email, pwd string) (User, error)
		Upsert(ctx context.Context, nu NewUser, isAdmin bool) (User, error)
	}

	service struct {
		repo          Repository
		mailSvc       core.EmailService
		validate      *validator.Validate
		testRecipient string
		nowFunc       func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, validate *validator.Validate, conf *core.Config) Service {
	return &service{
		repo:          repo,
		mailSvc:       mailSvc,
		validate:      validate,
		testRecipient: conf.Mail.TestRecipient,
		nowFunc:       time.Now,
	}
}

func (svc *service) now() time.Time {
	return svc.nowFunc().UTC()
}

func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if nu.ConfirmationToken == "" {
		nu.ConfirmationToken = uuid.NewString()
	}

	usr := User{
		Name:              nu.Name,
		Email:             nu.Email,
		ConfirmationToken: nu.ConfirmationToken,
		CreatedAt:         svc.now(),
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, conflictError(err, "creating user")
	}
	return usr, nil
}

// conflictError turns the repository uniqueness errors into client errors.
func conflictError(err error, msg string) error {
	switch errors.Cause(err) {
	case ErrUserExists:
		return core.NewValidationError(ErrUserExists)
	case ErrTokenTaken:
		return core.NewValidationError(ErrTokenTaken, core.FieldError{Field: "confirmationToken", Error: ErrTokenTaken.Error()})
	}
	return errors.Wrap(err, msg)
}

func (svc *service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, core.NewValidationError(ErrInvalidCredentials)
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, core.NewValidationError(ErrInvalidCredentials)
	}

	if usr, err = svc.repo.SetLastLogin(ctx, usr.ID, svc.now()); err != nil {
		return User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

func (svc *service) Confirm(ctx context.Context, token string) (User, error) {
	token = core.CleanString(token)
	if token == "" {
		return User{}, core.NewValidationError(ErrInvalidToken)
	}
	usr, err := svc.repo.ConfirmUser(ctx, token)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, core.NewValidationError(ErrInvalidToken)
		}
		return User{}, errors.Wrap(err, "confirming user")
	}
	return usr, nil
}

// SendConfirmation mails the confirmation link to the user registered with email.
// Unknown and already confirmed users are silently skipped.
func (svc *service) SendConfirmation(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "finding user by email")
	}
	if usr.IsConfirmed {
		return nil
	}
	if usr.ConfirmationToken == "" {
		if usr, err = svc.repo.SetConfirmationToken(ctx, usr.ID, uuid.NewString()); err != nil {
			return errors.Wrap(err, "setting confirmation token")
		}
		if usr.IsConfirmed { // confirmed meanwhile
			return nil
		}
	}
	svc.mailSvc.SendMessages(newConfirmationMessage(usr))
	return nil
}

func newConfirmationMessage(usr User) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Hello " + usr.Name,
		TemplateName: confirmationTemplate,
		TemplateData: confirmationData{Name: usr.Name, Token: usr.ConfirmationToken},
	}
}

type confirmationData struct {
	Name  string
	Token string
}

// LinkFrom builds the confirmation URL on the frontend at baseURL.
func (d confirmationData) LinkFrom(baseURL string) string {
	return baseURL + "/user-confirmation?token=" + url.QueryEscape(d.Token)
}

func (svc *service) SendTestMessage(ctx context.Context, to mail.Address) error {
	if to.Address == "" {
		if svc.testRecipient == "" {
			return core.NewValidationError(ErrNoRecipient)
		}
		addr, err := mail.ParseAddress(svc.testRecipient)
		if err != nil {
			return errors.Wrap(err, "parsing test recipient")
		}
		to = *addr
	}
	name := to.Name
	if name == "" {
		name = to.Address
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      "Hello " + name,
		TemplateName: testMessageTemplate,
		TemplateData: struct{ Name, SentAt string }{name, svc.now().Format(time.RFC1123)},
	})
	return nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]User, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: core.CleanString(id)})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{Email: email})
}

// SetPassword validates pwd against the password policy and stores it.
func (svc *service) SetPassword(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if err = (NewPassword{Password: pwd, usr: usr}).Validate(svc.validate); err != nil {
		return User{}, err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.UpdateUser(ctx, usr)
}

// Upsert updates or creates a confirmed user.
func (svc *service) Upsert(ctx context.Context, nu NewUser, isAdmin bool) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}

	usr, err := svc.GetByEmail(ctx, nu.Email)
	exists := err == nil
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return User{}, err
		}
		usr = User{Email: nu.Email, CreatedAt: svc.now()}
	}
	usr.Name = nu.Name
	usr.IsAdmin = isAdmin
	usr.IsConfirmed = true
	if nu.ConfirmationToken != "" {
		usr.ConfirmationToken = nu.ConfirmationToken
	}
	if err = usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	if exists {
		usr, err = svc.repo.UpdateUser(ctx, usr)
	} else {
		usr, err = svc.repo.CreateUser(ctx, usr)
	}
	if err != nil {
		return User{}, conflictError(err, "saving user")
	}
	return usr, nil
}
