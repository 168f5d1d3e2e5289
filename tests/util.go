package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/application"
	"github.com/enrollgsrp/gsrp-enroll/core/user"
)

// NewConfig returns the configuration used by tests.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:         "EnrollGSRP",
		Env:             "TEST",
		Build:           "test",
		Debug:           false,
		TestMode:        true,
		SecretKey:       "test-secret-key",
		FrontendBaseURL: "https://dpscd.enrollgsrp.com",
		Server: core.ServerConfig{
			SessionCookie: "gsrp_session",
			SessionTTL:    time.Hour,
			AuthRateLimit: 1000,
			AuthRateBurst: 1000,
		},
		Mail: core.MailConfig{
			Provider:      "console",
			FromName:      "Enroll GSRP",
			FromAddress:   "postmaster@email.enrollgsrp.com",
			TestRecipient: "Eric Anderson <anderoy@test.com>",
		},
		Form: core.FormConfig{Grade: "PreK", SchoolYear: "2025-26"},
	}
}

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// NewValidator returns a validator with every custom validator registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	application.InitValidators(validate, translator)
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	isConfirmed, isAdmin bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:              name,
		Email:             email,
		ConfirmationToken: "token-" + email,
		IsConfirmed:       isConfirmed,
		IsAdmin:           isAdmin,
		CreatedAt:         tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }

// NewApplication returns a complete submission for the child firstName lastName.
func NewApplication(firstName, lastName, school string) application.NewApplication {
	return application.NewApplication{
		Child: &application.Child{
			FirstName: firstName,
			LastName:  lastName,
			DOB:       "2021-03-14",
			Gender:    "F",
			Language:  "English",
		},
		Address: &application.Address{
			Street: "3011 W Grand Blvd",
			City:   "Detroit",
			State:  "MI",
			Zip:    "48202",
		},
		Household: &application.Household{
			ResponsibleCount: intPtr(2),
			IncomeAmount:     floatPtr(42000),
			IncomeFrequency:  "yearly",
		},
		PG1: &application.Guardian{
			FirstName: "Maya",
			LastName:  lastName,
			Phone:     "313-555-0100",
			Email:     "maya@test.com",
		},
		School: &application.School{
			FirstChoice:  school,
			SecondChoice: "Bennett Elementary",
		},
		Siblings: &application.Siblings{AtSelection: "no"},
		Referral: &application.Referral{Selected: []string{"Flyer"}},
	}
}

// CreateApplication stores a complete application submitted at createdAt.
func CreateApplication(
	t *testing.T,
	repo application.Repository,
	firstName, lastName, school string,
	createdAt time.Time,
) application.Application {
	na := NewApplication(firstName, lastName, school)
	app := application.Application{
		Child:     *na.Child,
		Address:   *na.Address,
		Household: *na.Household,
		PG1:       *na.PG1,
		School:    *na.School,
		Siblings:  *na.Siblings,
		Referral:  na.Referral,
		CreatedAt: createdAt.UTC(),
		UpdatedAt: createdAt.UTC(),
	}
	app, err := repo.CreateApplication(context.Background(), app)
	if err != nil {
		t.Fatalf("CreateApplication() failed: %v", err)
	}
	return app
}
