package application

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/enrollgsrp/gsrp-enroll/core"
)

type (
	Child struct {
		FirstName     string `json:"firstName" bson:"firstName" validate:"required"`
		MiddleName    string `json:"middleName,omitempty" bson:"middleName,omitempty"`
		LastName      string `json:"lastName" bson:"lastName" validate:"required"`
		DOB           string `json:"dob" bson:"dob" validate:"required"`
		Gender        string `json:"gender" bson:"gender" validate:"required"`
		Language      string `json:"language" bson:"language" validate:"required"`
		LanguageOther string `json:"languageOther,omitempty" bson:"languageOther,omitempty"`
	}

	Address struct {
		Street string `json:"street" bson:"street" validate:"required"`
		City   string `json:"city" bson:"city" validate:"required"`
		State  string `json:"state" bson:"state" validate:"required"`
		Zip    string `json:"zip" bson:"zip" validate:"required"`
	}

	Household struct {
		ResponsibleCount *int     `json:"responsibleCount" bson:"responsibleCount" validate:"required,min=1"`
		IncomeAmount     *float64 `json:"incomeAmount" bson:"incomeAmount" validate:"required,min=0"`
		IncomeFrequency  string   `json:"incomeFrequency" bson:"incomeFrequency" validate:"required"`
	}

	// Guardian is a parent or guardian. The primary one (pg1) must be complete.
	Guardian struct {
		FirstName string `json:"firstName,omitempty" bson:"firstName,omitempty"`
		LastName  string `json:"lastName,omitempty" bson:"lastName,omitempty"`
		Phone     string `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,phone"`
		Email     string `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email"`
	}

	School struct {
		FirstChoice  string `json:"firstChoice" bson:"firstChoice" validate:"required"`
		SecondChoice string `json:"secondChoice" bson:"secondChoice" validate:"required"`
	}

	Siblings struct {
		AtSelection   string `json:"atSelection" bson:"atSelection" validate:"required"`
		NameAndSchool string `json:"nameAndSchool,omitempty" bson:"nameAndSchool,omitempty"`
	}

	Referral struct {
		Selected  []string `json:"selected" bson:"selected"`
		OtherText string   `json:"otherText,omitempty" bson:"otherText,omitempty"`
	}

	Application struct {
		ID        string    `json:"_id"`
		Child     Child     `json:"child"`
		Address   Address   `json:"address"`
		Household Household `json:"household"`
		PG1       Guardian  `json:"pg1"`
		PG2       *Guardian `json:"pg2,omitempty"`
		School    School    `json:"school"`
		Siblings  Siblings  `json:"siblings"`
		Referral  *Referral `json:"referral,omitempty"`
		CreatedAt time.Time `json:"createdAt"` // UTC
		UpdatedAt time.Time `json:"updatedAt"` // UTC
	}
)

// FullName is the child's name as printed on the enrollment form.
func (c Child) FullName() string {
	return core.CollapseSpaces(c.FirstName + " " + c.MiddleName + " " + c.LastName)
}

func (g Guardian) FullName() string {
	return core.CollapseSpaces(g.FirstName + " " + g.LastName)
}

func (g Guardian) IsEmpty() bool {
	return g.FirstName == "" && g.LastName == "" && g.Phone == "" && g.Email == ""
}

// IsComplete reports whether every field required on the primary guardian is set.
func (g Guardian) IsComplete() bool {
	return g.FirstName != "" && g.LastName != "" && g.Phone != "" && g.Email != ""
}

// NewApplication contains information needed to submit an Application.
type NewApplication struct {
	Child     *Child     `json:"child" validate:"required"`
	Address   *Address   `json:"address" validate:"required"`
	Household *Household `json:"household" validate:"required"`
	PG1       *Guardian  `json:"pg1" validate:"required"`
	PG2       *Guardian  `json:"pg2"`
	School    *School    `json:"school" validate:"required"`
	Siblings  *Siblings  `json:"siblings" validate:"required"`
	Referral  *Referral  `json:"referral"`
}

func (na *NewApplication) Validate(validate *validator.Validate) error {
	na.clean()
	return validate.Struct(na)
}

func (na *NewApplication) clean() {
	if c := na.Child; c != nil {
		c.FirstName = core.CleanString(c.FirstName)
		c.MiddleName = core.CleanString(c.MiddleName)
		c.LastName = core.CleanString(c.LastName)
		c.DOB = core.CleanString(c.DOB)
		c.Gender = core.CleanString(c.Gender)
		c.Language = core.CleanString(c.Language)
		c.LanguageOther = core.CleanString(c.LanguageOther)
	}
	if a := na.Address; a != nil {
		a.Street = core.CleanString(a.Street)
		a.City = core.CleanString(a.City)
		a.State = core.CleanString(a.State)
		a.Zip = core.CleanString(a.Zip)
	}
	if h := na.Household; h != nil {
		h.IncomeFrequency = core.CleanString(h.IncomeFrequency)
	}
	cleanGuardian(na.PG1)
	cleanGuardian(na.PG2)
	if na.PG2 != nil && na.PG2.IsEmpty() {
		na.PG2 = nil
	}
	if s := na.School; s != nil {
		s.FirstChoice = core.CleanString(s.FirstChoice)
		s.SecondChoice = core.CleanString(s.SecondChoice)
	}
	if s := na.Siblings; s != nil {
		s.AtSelection = core.CleanString(s.AtSelection)
		s.NameAndSchool = core.CleanString(s.NameAndSchool)
	}
	if r := na.Referral; r != nil {
		selected := make([]string, 0, len(r.Selected))
		for _, s := range r.Selected {
			if s = core.CleanString(s); s != "" {
				selected = append(selected, s)
			}
		}
		r.Selected = selected
		r.OtherText = core.CleanString(r.OtherText)
	}
}

func cleanGuardian(g *Guardian) {
	if g == nil {
		return
	}
	g.FirstName = core.CleanString(g.FirstName)
	g.LastName = core.CleanString(g.LastName)
	g.Phone = core.CleanString(g.Phone)
	g.Email = core.CleanString(g.Email, true /* lower */)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	School      string    `query:"school"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.School == "" && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.School = core.CleanString(qf.School)
}

// OrderingFields maps the accepted ordering fields to their document paths.
var OrderingFields = map[string]string{
	"created_at":          "createdAt",
	"updated_at":          "updatedAt",
	"child.first_name":    "child.firstName",
	"child.last_name":     "child.lastName",
	"school.first_choice": "school.firstChoice",
}

// DefaultOrdering lists the latest submissions first.
var DefaultOrdering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
