package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/enrollgsrp/gsrp-enroll/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

// query returns the users, latest first.
func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, *u)
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users
}

// taken checks usr's email and confirmation token against the other users.
func (repo *userRepository) taken(usr user.User) error {
	for _, u := range repo.db.table {
		if u.ID == usr.ID {
			continue
		}
		if u.Email == usr.Email {
			return user.ErrUserExists
		}
		if usr.ConfirmationToken != "" && u.ConfirmationToken == usr.ConfirmationToken {
			return user.ErrTokenTaken
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr.ID = ""
	if err := repo.taken(usr); err != nil {
		return user.User{}, err
	}
	usr.ID = uuid.NewString()
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	switch {
	case filter.ID != "":
		if usr, ok := repo.db.table[filter.ID]; ok {
			return *usr, nil
		}
	case filter.Email != "":
		for _, usr := range repo.db.table {
			if usr.Email == filter.Email {
				return *usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := repo.query()
	if filter == nil || filter.IsEmpty() {
		return users, nil
	}

	search := strings.ToLower(filter.Search)
	filtered := make([]user.User, 0, len(users))
	for _, u := range users {
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Name), search) &&
			!strings.Contains(u.Email, search) {
			continue
		}
		if filter.Email != "" && u.Email != filter.Email {
			continue
		}
		if filter.IsConfirmed != nil && u.IsConfirmed != *filter.IsConfirmed {
			continue
		}
		if filter.IsAdmin != nil && u.IsAdmin != *filter.IsAdmin {
			continue
		}
		filtered = append(filtered, u)
	}
	return filtered, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.taken(usr); err != nil {
		return user.User{}, err
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) SetLastLogin(_ context.Context, id string, t time.Time) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.table[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	t = t.UTC()
	usr.LastLogin = &t
	return *usr, nil
}

func (repo *userRepository) SetConfirmationToken(_ context.Context, id, token string) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.table[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if usr.ConfirmationToken == "" {
		for _, u := range repo.db.table {
			if u.ConfirmationToken == token {
				return user.User{}, user.ErrTokenTaken
			}
		}
		usr.ConfirmationToken = token
	}
	return *usr, nil
}

func (repo *userRepository) ConfirmUser(_ context.Context, token string) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, usr := range repo.db.table {
		if token != "" && usr.ConfirmationToken == token {
			usr.IsConfirmed = true
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}
