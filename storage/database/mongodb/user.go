package mongodb

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/enrollgsrp/gsrp-enroll/core/user"
)

type userDoc struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	Name              string             `bson:"name"`
	Email             string             `bson:"email"`
	PasswordHash      []byte             `bson:"password"`
	ConfirmationToken string             `bson:"confirmationToken,omitempty"`
	IsConfirmed       bool               `bson:"isConfirmed"`
	IsAdmin           bool               `bson:"isAdmin"`
	CreatedAt         time.Time          `bson:"createdAt"`
	LastLogin         *time.Time         `bson:"lastLogin,omitempty"`
}

func newUserDoc(usr user.User) (userDoc, error) {
	doc := userDoc{
		Name:              usr.Name,
		Email:             usr.Email,
		PasswordHash:      usr.PasswordHash,
		ConfirmationToken: usr.ConfirmationToken,
		IsConfirmed:       usr.IsConfirmed,
		IsAdmin:           usr.IsAdmin,
		CreatedAt:         usr.CreatedAt.UTC(),
		LastLogin:         usr.LastLogin,
	}
	if usr.ID != "" {
		id, err := primitive.ObjectIDFromHex(usr.ID)
		if err != nil {
			return userDoc{}, user.ErrNotFound
		}
		doc.ID = id
	}
	return doc, nil
}

func (doc userDoc) user() user.User {
	usr := user.User{
		ID:                doc.ID.Hex(),
		Name:              doc.Name,
		Email:             doc.Email,
		PasswordHash:      doc.PasswordHash,
		ConfirmationToken: doc.ConfirmationToken,
		IsConfirmed:       doc.IsConfirmed,
		IsAdmin:           doc.IsAdmin,
		CreatedAt:         doc.CreatedAt.UTC(),
	}
	if doc.LastLogin != nil {
		lastLogin := doc.LastLogin.UTC()
		usr.LastLogin = &lastLogin
	}
	return usr
}

// userConflict maps a duplicate key error to the user field that caused it.
func userConflict(err error) error {
	if strings.Contains(err.Error(), tokenIndex) {
		return user.ErrTokenTaken
	}
	return user.ErrUserExists
}

type userRepository struct {
	coll *mongo.Collection
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{coll: db.db.Collection(usersCollection)}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = ""
	doc, err := newUserDoc(usr)
	if err != nil {
		return user.User{}, err
	}
	doc.ID = primitive.NewObjectID()

	if _, err = repo.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, userConflict(err)
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return doc.user(), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var q bson.M
	switch {
	case filter.ID != "":
		id, err := primitive.ObjectIDFromHex(filter.ID)
		if err != nil {
			return user.User{}, user.ErrNotFound
		}
		q = bson.M{"_id": id}
	case filter.Email != "":
		q = bson.M{"email": filter.Email}
	default:
		return user.User{}, user.ErrNotFound
	}
	return repo.findOne(ctx, q)
}

func (repo *userRepository) findOne(ctx context.Context, q bson.M) (user.User, error) {
	var doc userDoc
	if err := repo.coll.FindOne(ctx, q).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "finding user")
	}
	return doc.user(), nil
}

func userQuery(filter *user.QueryFilter) bson.M {
	q := bson.M{}
	if filter == nil {
		return q
	}
	if filter.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		q["$or"] = bson.A{bson.M{"name": re}, bson.M{"email": re}}
	}
	if filter.Email != "" {
		q["email"] = filter.Email
	}
	if filter.IsConfirmed != nil {
		q["isConfirmed"] = *filter.IsConfirmed
	}
	if filter.IsAdmin != nil {
		q["isAdmin"] = *filter.IsAdmin
	}
	return q
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter) ([]user.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := repo.coll.Find(ctx, userQuery(filter), opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	var docs []userDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding users")
	}

	users := make([]user.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, doc.user())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	doc, err := newUserDoc(usr)
	if err != nil {
		return user.User{}, err
	}
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, userConflict(err)
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if res.MatchedCount == 0 {
		return user.User{}, user.ErrNotFound
	}
	return doc.user(), nil
}

func (repo *userRepository) ConfirmUser(ctx context.Context, token string) (user.User, error) {
	if token == "" {
		return user.User{}, user.ErrNotFound
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDoc
	err := repo.coll.FindOneAndUpdate(ctx,
		bson.M{"confirmationToken": token},
		bson.M{"$set": bson.M{"isConfirmed": true}},
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "confirming user")
	}
	return doc.user(), nil
}

func (repo *userRepository) updateOne(ctx context.Context, q bson.M, update bson.M) (user.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDoc
	if err := repo.coll.FindOneAndUpdate(ctx, q, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, userConflict(err)
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return doc.user(), nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id string, t time.Time) (user.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return user.User{}, user.ErrNotFound
	}
	return repo.updateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"lastLogin": t.UTC()}})
}

func (repo *userRepository) SetConfirmationToken(ctx context.Context, id, token string) (user.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return user.User{}, user.ErrNotFound
	}
	usr, err := repo.updateOne(ctx,
		bson.M{"_id": oid, "confirmationToken": bson.M{"$in": bson.A{nil, ""}}},
		bson.M{"$set": bson.M{"confirmationToken": token}},
	)
	if errors.Is(err, user.ErrNotFound) {
		// already holds a token, or gone
		return repo.findOne(ctx, bson.M{"_id": oid})
	}
	return usr, err
}
