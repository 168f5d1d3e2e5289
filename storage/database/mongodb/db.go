// Package mongodb stores users and applications in MongoDB.
package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/enrollgsrp/gsrp-enroll/core"
)

const (
	usersCollection        = "gsrp_users"
	applicationsCollection = "applications"
	defaultDatabase        = "gsrp"
	tokenIndex             = "confirmation_token_unique"
)

// DB is the single client shared by every repository.
type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to conf.Database.URI and waits for the server to answer a ping.
// The database name defaults to the one in the URI path.
func Open(ctx context.Context, conf core.DatabaseConfig) (*DB, error) {
	cs, err := connstring.ParseAndValidate(conf.URI)
	if err != nil {
		return nil, errors.Wrap(err, "parsing MongoDB URI")
	}
	name := conf.Name
	if name == "" {
		name = cs.Database
	}
	if name == "" {
		name = defaultDatabase
	}

	timeout := conf.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts := options.Client().ApplyURI(conf.URI).SetConnectTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to MongoDB")
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err = client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "pinging MongoDB")
	}
	return &DB{client: client, db: client.Database(name)}, nil
}

func (d *DB) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories rely on for uniqueness and ordering.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	users := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "confirmationToken", Value: 1}},
			Options: options.Index().
				SetName(tokenIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"confirmationToken": bson.M{"$type": "string"}}),
		},
	}
	if _, err := d.db.Collection(usersCollection).Indexes().CreateMany(ctx, users); err != nil {
		return errors.Wrap(err, "creating user indexes")
	}

	apps := []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "school.firstChoice", Value: 1}}},
	}
	if _, err := d.db.Collection(applicationsCollection).Indexes().CreateMany(ctx, apps); err != nil {
		return errors.Wrap(err, "creating application indexes")
	}
	return nil
}

// Drop removes every collection. Used by tests.
func (d *DB) Drop(ctx context.Context) error {
	return d.db.Drop(ctx)
}
