package mongodb

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/enrollgsrp/gsrp-enroll/core"
	"github.com/enrollgsrp/gsrp-enroll/core/application"
)

type applicationDoc struct {
	ID        primitive.ObjectID    `bson:"_id,omitempty"`
	Child     application.Child     `bson:"child"`
	Address   application.Address   `bson:"address"`
	Household application.Household `bson:"household"`
	PG1       application.Guardian  `bson:"pg1"`
	PG2       *application.Guardian `bson:"pg2,omitempty"`
	School    application.School    `bson:"school"`
	Siblings  application.Siblings  `bson:"siblings"`
	Referral  *application.Referral `bson:"referral,omitempty"`
	CreatedAt time.Time             `bson:"createdAt"`
	UpdatedAt time.Time             `bson:"updatedAt"`
}

func newApplicationDoc(app application.Application) applicationDoc {
	return applicationDoc{
		Child:     app.Child,
		Address:   app.Address,
		Household: app.Household,
		PG1:       app.PG1,
		PG2:       app.PG2,
		School:    app.School,
		Siblings:  app.Siblings,
		Referral:  app.Referral,
		CreatedAt: app.CreatedAt.UTC(),
		UpdatedAt: app.UpdatedAt.UTC(),
	}
}

func (doc applicationDoc) application() application.Application {
	return application.Application{
		ID:        doc.ID.Hex(),
		Child:     doc.Child,
		Address:   doc.Address,
		Household: doc.Household,
		PG1:       doc.PG1,
		PG2:       doc.PG2,
		School:    doc.School,
		Siblings:  doc.Siblings,
		Referral:  doc.Referral,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
}

type applicationRepository struct {
	coll *mongo.Collection
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *DB) application.Repository {
	return &applicationRepository{coll: db.db.Collection(applicationsCollection)}
}

func (repo *applicationRepository) CreateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	doc := newApplicationDoc(app)
	doc.ID = primitive.NewObjectID()
	if _, err := repo.coll.InsertOne(ctx, doc); err != nil {
		return application.Application{}, errors.Wrap(err, "inserting application")
	}
	return doc.application(), nil
}

func (repo *applicationRepository) GetApplication(ctx context.Context, id string) (application.Application, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return application.Application{}, application.ErrNotFound
	}
	var doc applicationDoc
	if err = repo.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return application.Application{}, application.ErrNotFound
		}
		return application.Application{}, errors.Wrap(err, "finding application")
	}
	return doc.application(), nil
}

func applicationQuery(filter *application.QueryFilter) bson.M {
	q := bson.M{}
	if filter == nil {
		return q
	}
	if filter.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"child.firstName": re},
			bson.M{"child.lastName": re},
			bson.M{"pg1.firstName": re},
			bson.M{"pg1.lastName": re},
			bson.M{"pg2.firstName": re},
			bson.M{"pg2.lastName": re},
		}
	}
	if filter.School != "" {
		q["school.firstChoice"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(filter.School) + "$", Options: "i"}
	}
	created := bson.M{}
	if !filter.CreatedFrom.IsZero() {
		created["$gte"] = filter.CreatedFrom.UTC()
	}
	if !filter.CreatedTo.IsZero() {
		created["$lte"] = filter.CreatedTo.UTC()
	}
	if len(created) > 0 {
		q["createdAt"] = created
	}
	return q
}

func applicationSort(ordering []core.DBOrdering) bson.D {
	if len(ordering) == 0 {
		ordering = application.DefaultOrdering
	}
	sort := bson.D{}
	for _, ord := range ordering {
		field, ok := application.OrderingFields[ord.Field]
		if !ok {
			continue
		}
		direction := -1
		if ord.Ascending {
			direction = 1
		}
		sort = append(sort, bson.E{Key: field, Value: direction})
	}
	return append(sort, bson.E{Key: "_id", Value: 1})
}

func (repo *applicationRepository) QueryApplications(
	ctx context.Context,
	filter *application.QueryFilter,
	ordering []core.DBOrdering,
) ([]application.Application, error) {
	opts := options.Find().
		SetSort(applicationSort(ordering)).
		SetCollation(&options.Collation{Locale: "en", Strength: 2})
	cur, err := repo.coll.Find(ctx, applicationQuery(filter), opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying applications")
	}
	var docs []applicationDoc
	if err = cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding applications")
	}

	apps := make([]application.Application, 0, len(docs))
	for _, doc := range docs {
		apps = append(apps, doc.application())
	}
	return apps, nil
}

func (repo *applicationRepository) CountApplications(ctx context.Context) (int, error) {
	n, err := repo.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, errors.Wrap(err, "counting applications")
	}
	return int(n), nil
}
