package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/enrollgsrp/gsrp-enroll/core"
)

type User struct {
	ID                string     `json:"_id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	PasswordHash      []byte     `json:"-"`
	ConfirmationToken string     `json:"-"`
	IsConfirmed       bool       `json:"isConfirmed"`
	IsAdmin           bool       `json:"isAdmin"`
	CreatedAt         time.Time  `json:"createdAt"` // UTC
	LastLogin         *time.Time `json:"lastLogin,omitempty"`
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	Name              string `json:"name" validate:"required,max=200"`
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required"`
	ConfirmationToken string `json:"confirmationToken" validate:"omitempty,max=128,printascii"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CollapseSpaces(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.ConfirmationToken = core.CleanString(nu.ConfirmationToken)
	return validate.Struct(nu)
}

// NewPassword is a password about to be set on usr.
type NewPassword struct {
	Password string `json:"password" validate:"required"`
	usr      User
}

func (np NewPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(np)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

type QueryFilter struct {
	Search      string `query:"search"`
	Email       string `query:"email"`
	IsConfirmed *bool  `query:"is_confirmed"`
	IsAdmin     *bool  `query:"is_admin"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Email == "" && qf.IsConfirmed == nil && qf.IsAdmin == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Email = core.CleanString(qf.Email, true /* lower */)
}

// GetFilter selects a single User; the first non-empty field wins.
type GetFilter struct {
	ID    string
	Email string
}
