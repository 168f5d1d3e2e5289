package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/application"
	"github.com/enrollgsrp/gsrp-enroll/core/user"
	testutil "github.com/enrollgsrp/gsrp-enroll/tests"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

var userCols = []string{
	"id", "name", "email", "password_hash", "confirmation_token", "is_confirmed", "is_admin", "created_at", "last_login",
}

func TestWhere(t *testing.T) {
	var w where
	assert.Equal(t, "", w.String())

	w.add("(name ILIKE ? OR email ILIKE ?)", "%a%", "%a%")
	w.add("is_admin = ?", true)
	assert.Equal(t, " WHERE (name ILIKE $1 OR email ILIKE $2) AND is_admin = $3", w.String())
	assert.Equal(t, []interface{}{"%a%", "%a%", true}, w.args)
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `%50\%\_off\\%`, likePattern(`50%_off\`))
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, " ORDER BY created_at DESC, id", orderBy(nil))
	assert.Equal(t,
		" ORDER BY lower(child_last_name) ASC, updated_at DESC, id",
		orderBy(core.ParseOrdering("child.last_name,-updated_at")),
	)
}

func TestCreateUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	now := time.Now().UTC()

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WithArgs(sqlmock.AnyArg(), "Maya", "maya@test.com", []byte("hash"), "tok", false, false, now, nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		usr, err := repo.CreateUser(context.Background(), user.User{
			Name: "Maya", Email: "maya@test.com", PasswordHash: []byte("hash"), ConfirmationToken: "tok", CreatedAt: now,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, usr.ID)
	})

	t.Run("duplicate email", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnError(&pq.Error{Code: uniqueViolation})

		_, err := repo.CreateUser(context.Background(), user.User{Name: "Maya", Email: "maya@test.com", CreatedAt: now})
		assert.Equal(t, user.ErrUserExists, err)
	})

	t.Run("duplicate token", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: tokenIndex})

		_, err := repo.CreateUser(context.Background(), user.User{
			Name: "Maya", Email: "maya@test.com", ConfirmationToken: "tok", CreatedAt: now,
		})
		assert.Equal(t, user.ErrTokenTaken, err)
	})
}

func TestGetUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	now := time.Now().UTC()
	id := "6f1c1d1e-0000-4000-8000-000000000001"

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("maya@test.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(id, "Maya", "maya@test.com", []byte("h"), nil, true, false, now, now))

	usr, err := repo.GetUser(context.Background(), user.GetFilter{Email: "maya@test.com"})
	require.NoError(t, err)
	assert.Equal(t, id, usr.ID)
	assert.True(t, usr.IsConfirmed)
	assert.Equal(t, "", usr.ConfirmationToken)
	require.NotNil(t, usr.LastLogin)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.GetUser(context.Background(), user.GetFilter{ID: id})
	assert.Equal(t, user.ErrNotFound, err)

	// malformed ids never reach the database
	_, err = repo.GetUser(context.Background(), user.GetFilter{ID: "42"})
	assert.Equal(t, user.ErrNotFound, err)
}

func TestQueryUsers(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	confirmed := false

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM users WHERE (name ILIKE $1 OR email ILIKE $2) AND is_confirmed = $3 ORDER BY created_at DESC, id",
	)).
		WithArgs("%maya%", "%maya%", false).
		WillReturnRows(sqlmock.NewRows(userCols))

	users, err := repo.QueryUsers(context.Background(), &user.QueryFilter{Search: "maya", IsConfirmed: &confirmed})
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestConfirmUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	now := time.Now().UTC()
	id := "6f1c1d1e-0000-4000-8000-000000000001"

	for i := 0; i < 2; i++ {
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET is_confirmed = TRUE WHERE confirmation_token = $1 RETURNING")).
			WithArgs("tok").
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(id, "Maya", "maya@test.com", nil, "tok", true, false, now, nil))

		usr, err := repo.ConfirmUser(context.Background(), "tok")
		require.NoError(t, err)
		assert.True(t, usr.IsConfirmed)
	}

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users")).WithArgs("bad").WillReturnError(sql.ErrNoRows)
	_, err := repo.ConfirmUser(context.Background(), "bad")
	assert.Equal(t, user.ErrNotFound, err)

	_, err = repo.ConfirmUser(context.Background(), "")
	assert.Equal(t, user.ErrNotFound, err)
}

func TestSetLastLogin(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	now := time.Now().UTC()
	id := "6f1c1d1e-0000-4000-8000-000000000001"

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET last_login = $2 WHERE id = $1 RETURNING")).
		WithArgs(id, now).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(id, "Maya", "maya@test.com", nil, "tok", true, false, now, now))

	usr, err := repo.SetLastLogin(context.Background(), id, now)
	require.NoError(t, err)
	assert.True(t, usr.IsConfirmed)
	require.NotNil(t, usr.LastLogin)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET last_login")).WillReturnError(sql.ErrNoRows)
	_, err = repo.SetLastLogin(context.Background(), id, now)
	assert.Equal(t, user.ErrNotFound, err)

	_, err = repo.SetLastLogin(context.Background(), "42", now)
	assert.Equal(t, user.ErrNotFound, err)
}

func TestSetConfirmationToken(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	now := time.Now().UTC()
	id := "6f1c1d1e-0000-4000-8000-000000000001"
	q := regexp.QuoteMeta(
		"UPDATE users SET confirmation_token = COALESCE(NULLIF(confirmation_token, ''), $2) WHERE id = $1 RETURNING",
	)

	// an existing token wins
	mock.ExpectQuery(q).
		WithArgs(id, "fresh").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(id, "Maya", "maya@test.com", nil, "old", false, false, now, nil))
	usr, err := repo.SetConfirmationToken(context.Background(), id, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "old", usr.ConfirmationToken)

	mock.ExpectQuery(q).
		WithArgs(id, "taken").
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: tokenIndex})
	_, err = repo.SetConfirmationToken(context.Background(), id, "taken")
	assert.Equal(t, user.ErrTokenTaken, err)
}

func TestUpdateUserNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)
	id := "6f1c1d1e-0000-4000-8000-000000000001"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET name")).WillReturnResult(sqlmock.NewResult(0, 0))
	_, err := repo.UpdateUser(context.Background(), user.User{ID: id, Name: "x", Email: "x@test.com"})
	assert.Equal(t, user.ErrNotFound, err)
}

func TestApplications(t *testing.T) {
	db, mock := newMock(t)
	repo := NewApplicationRepository(db)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	na := testutil.NewApplication("Ava", "Johnson", "Bennett Elementary")
	app := application.Application{
		Child: *na.Child, Address: *na.Address, Household: *na.Household, PG1: *na.PG1,
		School: *na.School, Siblings: *na.Siblings, Referral: na.Referral,
		CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO applications")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Ava", "Johnson", "Bennett Elementary",
			"ava|johnson|maya|johnson", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	created, err := repo.CreateApplication(ctx, app)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	data := []byte(`{"child":{"firstName":"Ava","lastName":"Johnson","dob":"2021-03-14","gender":"F","language":"English"},` +
		`"address":{"street":"1 Main","city":"Detroit","state":"MI","zip":"48202"},` +
		`"household":{"responsibleCount":2,"incomeAmount":42000,"incomeFrequency":"yearly"},` +
		`"pg1":{"firstName":"Maya","lastName":"Johnson","phone":"313-555-0100","email":"maya@test.com"},` +
		`"school":{"firstChoice":"Bennett Elementary","secondChoice":"Carver STEM"},` +
		`"siblings":{"atSelection":"no"},"referral":{"selected":[]}}`)
	cols := []string{"id", "data", "created_at", "updated_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM applications WHERE id = $1")).
		WithArgs(created.ID).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(created.ID, data, now, now))
	got, err := repo.GetApplication(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ava", got.Child.FirstName)
	assert.Equal(t, 2, *got.Household.ResponsibleCount)
	assert.Equal(t, []string{}, got.Referral.Selected)

	_, err = repo.GetApplication(ctx, "not-a-uuid")
	assert.Equal(t, application.ErrNotFound, err)

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM applications WHERE search_names LIKE $1 AND lower(school_first_choice) = lower($2) ORDER BY created_at DESC, id",
	)).
		WithArgs("%ava%", "bennett elementary").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(created.ID, data, now, now))
	apps, err := repo.QueryApplications(ctx, &application.QueryFilter{Search: "AVA", School: "bennett elementary"}, nil)
	require.NoError(t, err)
	assert.Len(t, apps, 1)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM applications")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	n, err := repo.CountApplications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
