package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/application"
)

type applicationRepository struct {
	db *applicationTable
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *DB) application.Repository {
	return &applicationRepository{db: db.application}
}

func (repo *applicationRepository) CreateApplication(_ context.Context, app application.Application) (application.Application, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	app.ID = uuid.NewString()
	repo.db.table[app.ID] = &app
	return app, nil
}

func (repo *applicationRepository) GetApplication(_ context.Context, id string) (application.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if app, ok := repo.db.table[id]; ok {
		return *app, nil
	}
	return application.Application{}, application.ErrNotFound
}

func (repo *applicationRepository) QueryApplications(
	_ context.Context,
	filter *application.QueryFilter,
	ordering []core.DBOrdering,
) ([]application.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	apps := make([]application.Application, 0, len(repo.db.table))
	for _, app := range repo.db.table {
		if filter == nil || matches(*app, filter) {
			apps = append(apps, *app)
		}
	}
	if len(ordering) == 0 {
		ordering = application.DefaultOrdering
	}
	sort.SliceStable(apps, func(i, j int) bool { return less(apps[i], apps[j], ordering) })
	return apps, nil
}

func (repo *applicationRepository) CountApplications(_ context.Context) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.db.table), nil
}

func matches(app application.Application, filter *application.QueryFilter) bool {
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		names := []string{app.Child.FirstName, app.Child.LastName, app.PG1.FirstName, app.PG1.LastName}
		if app.PG2 != nil {
			names = append(names, app.PG2.FirstName, app.PG2.LastName)
		}
		var found bool
		for _, n := range names {
			if strings.Contains(strings.ToLower(n), search) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.School != "" && !strings.EqualFold(app.School.FirstChoice, filter.School) {
		return false
	}
	if !filter.CreatedFrom.IsZero() && app.CreatedAt.Before(filter.CreatedFrom.UTC()) {
		return false
	}
	if !filter.CreatedTo.IsZero() && app.CreatedAt.After(filter.CreatedTo.UTC()) {
		return false
	}
	return true
}

// less compares a and b on each ordering in turn.
func less(a, b application.Application, ordering []core.DBOrdering) bool {
	for _, ord := range ordering {
		var cmp int
		switch ord.Field {
		case "created_at":
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		case "updated_at":
			cmp = a.UpdatedAt.Compare(b.UpdatedAt)
		case "child.first_name":
			cmp = strings.Compare(strings.ToLower(a.Child.FirstName), strings.ToLower(b.Child.FirstName))
		case "child.last_name":
			cmp = strings.Compare(strings.ToLower(a.Child.LastName), strings.ToLower(b.Child.LastName))
		case "school.first_choice":
			cmp = strings.Compare(strings.ToLower(a.School.FirstChoice), strings.ToLower(b.School.FirstChoice))
		}
		if cmp == 0 {
			continue
		}
		if ord.Ascending {
			return cmp < 0
		}
		return cmp > 0
	}
	return false
}
