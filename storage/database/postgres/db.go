// Package postgres stores users and applications in PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/enrollgsrp/gsrp-enroll/core"
)

//go:embed migrations/*.sql
var migrations embed.FS

const uniqueViolation = "23505"

// Open connects to conf.URI and waits for the database to be ready.
func Open(ctx context.Context, conf core.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", conf.URI)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	timeout := conf.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err = ping(pingCtx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, db *sqlx.DB) error {
	var err error
	for attempts := 1; ; attempts++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		case <-ctx.Done():
			return errors.Wrap(err, "DB ping timeout")
		}
	}
}

// Migrate applies every pending migration.
func Migrate(db *sqlx.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "loading migrations")
	}
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return errors.Wrap(err, "creating migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return errors.Wrap(err, "creating migrator")
	}
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// violatedConstraint names the constraint (or unique index) behind a unique violation.
func violatedConstraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}

// likePattern matches s anywhere, with LIKE wildcards in s escaped.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// where joins conditions with AND, numbering each "?" placeholder from len(args)+1.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		cond = strings.Replace(cond, "?", "$"+strconv.Itoa(len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
