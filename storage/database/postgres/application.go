package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/application"
)

// applicationData is the JSONB body of an application row.
type applicationData struct {
	Child     application.Child     `json:"child"`
	Address   application.Address   `json:"address"`
	Household application.Household `json:"household"`
	PG1       application.Guardian  `json:"pg1"`
	PG2       *application.Guardian `json:"pg2,omitempty"`
	School    application.School    `json:"school"`
	Siblings  application.Siblings  `json:"siblings"`
	Referral  *application.Referral `json:"referral,omitempty"`
}

type applicationRow struct {
	ID        string    `db:"id"`
	Data      []byte    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row applicationRow) application() (application.Application, error) {
	var data applicationData
	if err := json.Unmarshal(row.Data, &data); err != nil {
		return application.Application{}, errors.Wrapf(err, "decoding application %s", row.ID)
	}
	return application.Application{
		ID:        row.ID,
		Child:     data.Child,
		Address:   data.Address,
		Household: data.Household,
		PG1:       data.PG1,
		PG2:       data.PG2,
		School:    data.School,
		Siblings:  data.Siblings,
		Referral:  data.Referral,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}, nil
}

// searchNames lists the lower-cased child and guardian names matched by QueryFilter.Search.
func searchNames(app application.Application) string {
	names := []string{app.Child.FirstName, app.Child.LastName, app.PG1.FirstName, app.PG1.LastName}
	if app.PG2 != nil {
		names = append(names, app.PG2.FirstName, app.PG2.LastName)
	}
	return strings.ToLower(strings.Join(names, "|"))
}

var orderingColumns = map[string]string{
	"created_at":          "created_at",
	"updated_at":          "updated_at",
	"child.first_name":    "lower(child_first_name)",
	"child.last_name":     "lower(child_last_name)",
	"school.first_choice": "lower(school_first_choice)",
}

func orderBy(ordering []core.DBOrdering) string {
	if len(ordering) == 0 {
		ordering = application.DefaultOrdering
	}
	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		col, ok := orderingColumns[ord.Field]
		if !ok {
			continue
		}
		clauses = append(clauses, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	return " ORDER BY " + strings.Join(append(clauses, "id"), ", ")
}

type applicationRepository struct {
	db *sqlx.DB
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *sqlx.DB) application.Repository {
	return &applicationRepository{db: db}
}

func (repo *applicationRepository) CreateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	data, err := json.Marshal(applicationData{
		Child:     app.Child,
		Address:   app.Address,
		Household: app.Household,
		PG1:       app.PG1,
		PG2:       app.PG2,
		School:    app.School,
		Siblings:  app.Siblings,
		Referral:  app.Referral,
	})
	if err != nil {
		return application.Application{}, errors.Wrap(err, "encoding application")
	}

	app.ID = uuid.NewString()
	app.CreatedAt = app.CreatedAt.UTC()
	app.UpdatedAt = app.UpdatedAt.UTC()
	_, err = repo.db.ExecContext(ctx,
		`INSERT INTO applications
		(id, data, child_first_name, child_last_name, school_first_choice, search_names, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		app.ID, data, app.Child.FirstName, app.Child.LastName, app.School.FirstChoice,
		searchNames(app), app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return application.Application{}, errors.Wrap(err, "inserting application")
	}
	return app, nil
}

func (repo *applicationRepository) GetApplication(ctx context.Context, id string) (application.Application, error) {
	if _, err := uuid.Parse(id); err != nil {
		return application.Application{}, application.ErrNotFound
	}
	var row applicationRow
	err := repo.db.GetContext(ctx, &row, "SELECT id, data, created_at, updated_at FROM applications WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return application.Application{}, application.ErrNotFound
		}
		return application.Application{}, errors.Wrap(err, "selecting application")
	}
	return row.application()
}

func (repo *applicationRepository) QueryApplications(
	ctx context.Context,
	filter *application.QueryFilter,
	ordering []core.DBOrdering,
) ([]application.Application, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			w.add("search_names LIKE ?", likePattern(strings.ToLower(filter.Search)))
		}
		if filter.School != "" {
			w.add("lower(school_first_choice) = lower(?)", filter.School)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	var rows []applicationRow
	q := "SELECT id, data, created_at, updated_at FROM applications" + w.String() + orderBy(ordering)
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting applications")
	}
	apps := make([]application.Application, 0, len(rows))
	for _, row := range rows {
		app, err := row.application()
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, nil
}

func (repo *applicationRepository) CountApplications(ctx context.Context) (int, error) {
	var n int
	if err := repo.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM applications"); err != nil {
		return 0, errors.Wrap(err, "counting applications")
	}
	return n, nil
}
