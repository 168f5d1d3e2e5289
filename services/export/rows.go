// Package exportsvc writes applications to spreadsheets.
package exportsvc

import (
	"strings"
	"time"

	"github.com/enrollgsrp/gsrp-enroll/core/application"
)

// Headers are the column titles of every export, in row order.
var Headers = []string{
	"ID", "Submitted At",
	"Child First Name", "Child Middle Name", "Child Last Name", "Child DOB", "Child Gender", "Language", "Language Other",
	"Street", "City", "State", "Zip",
	"Responsible Count", "Income Amount", "Income Frequency",
	"PG1 First Name", "PG1 Last Name", "PG1 Phone", "PG1 Email",
	"PG2 First Name", "PG2 Last Name", "PG2 Phone", "PG2 Email",
	"School First Choice", "School Second Choice",
	"Siblings At Selection", "Siblings Name And School",
	"Referral", "Referral Other",
}

// Row flattens app in Headers order. Missing numbers are empty cells.
func Row(app application.Application) []interface{} {
	var pg2 application.Guardian
	if app.PG2 != nil {
		pg2 = *app.PG2
	}
	var ref application.Referral
	if app.Referral != nil {
		ref = *app.Referral
	}
	var responsible, income interface{} = "", ""
	if app.Household.ResponsibleCount != nil {
		responsible = *app.Household.ResponsibleCount
	}
	if app.Household.IncomeAmount != nil {
		income = *app.Household.IncomeAmount
	}

	return []interface{}{
		app.ID, app.CreatedAt.UTC().Format(time.RFC3339),
		app.Child.FirstName, app.Child.MiddleName, app.Child.LastName, app.Child.DOB, app.Child.Gender,
		app.Child.Language, app.Child.LanguageOther,
		app.Address.Street, app.Address.City, app.Address.State, app.Address.Zip,
		responsible, income, app.Household.IncomeFrequency,
		app.PG1.FirstName, app.PG1.LastName, app.PG1.Phone, app.PG1.Email,
		pg2.FirstName, pg2.LastName, pg2.Phone, pg2.Email,
		app.School.FirstChoice, app.School.SecondChoice,
		app.Siblings.AtSelection, app.Siblings.NameAndSchool,
		strings.Join(ref.Selected, ", "), ref.OtherText,
	}
}

// Rows flattens apps with Row.
func Rows(apps []application.Application) [][]interface{} {
	rows := make([][]interface{}, 0, len(apps))
	for _, app := range apps {
		rows = append(rows, Row(app))
	}
	return rows
}
