// Package database opens the storage backend named by the database URI scheme.
package database

import (
	"context"
	"net/url"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/application"
	"github.com/enrollgsrp/gsrp-enroll/core/user"
	inmemdb "github.com/enrollgsrp/gsrp-enroll/storage/database/inmem"
	"github.com/enrollgsrp/gsrp-enroll/storage/database/mongodb"
	"github.com/enrollgsrp/gsrp-enroll/storage/database/postgres"
)

const (
	EngineMongo    = "mongodb"
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

var ErrUnsupportedEngine = errors.New("unsupported database engine")

// Store holds the repositories of one open database connection.
type Store struct {
	Engine       string
	Users        user.Repository
	Applications application.Repository

	migrate func(ctx context.Context) error
	close   func(ctx context.Context) error
}

// Migrate creates the schema (tables or indexes) the repositories rely on.
func (s *Store) Migrate(ctx context.Context) error {
	if s.migrate == nil {
		return nil
	}
	return s.migrate(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// Engine returns the backend name of uri: mongodb, postgres or memory.
func Engine(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", errors.Wrap(err, "parsing database URI")
	}
	switch u.Scheme {
	case "mongodb", "mongodb+srv":
		return EngineMongo, nil
	case "postgres", "postgresql":
		return EnginePostgres, nil
	case "memory", "":
		return EngineMemory, nil
	}
	return "", errors.Wrap(ErrUnsupportedEngine, u.Scheme)
}

// Open connects to conf.URI. Every repository of the returned Store shares the connection.
func Open(ctx context.Context, conf core.DatabaseConfig) (*Store, error) {
	engine, err := Engine(conf.URI)
	if err != nil {
		return nil, err
	}

	switch engine {
	case EngineMongo:
		db, err := mongodb.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		return &Store{
			Engine:       engine,
			Users:        mongodb.NewUserRepository(db),
			Applications: mongodb.NewApplicationRepository(db),
			migrate:      db.EnsureIndexes,
			close:        db.Close,
		}, nil

	case EnginePostgres:
		db, err := postgres.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		return &Store{
			Engine:       engine,
			Users:        postgres.NewUserRepository(db),
			Applications: postgres.NewApplicationRepository(db),
			migrate:      func(context.Context) error { return postgres.Migrate(db) },
			close:        closeSQL(db),
		}, nil
	}

	db := inmemdb.Open()
	return &Store{
		Engine:       engine,
		Users:        inmemdb.NewUserRepository(db),
		Applications: inmemdb.NewApplicationRepository(db),
	}, nil
}

func closeSQL(db *sqlx.DB) func(context.Context) error {
	return func(context.Context) error { return db.Close() }
}
