// Package docstore keeps punches in a MongoDB collection, one document per
// punch keyed by the portal id.
package docstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jgoulah/punchsync/internal/period"
	"github.com/jgoulah/punchsync/internal/store"
	"github.com/jgoulah/punchsync/pkg/models"
)

const connectTimeout = 10 * time.Second

// Store is a MongoDB punches store
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	loc    *time.Location
}

var _ store.Store = (*Store)(nil)

// Open connects to uri and ensures the collection's indexes
func Open(ctx context.Context, uri, database, collection string, loc *time.Location) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to mongo: %w", store.ErrUnavailable, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: pinging mongo: %w", store.ErrUnavailable, err)
	}
	if loc == nil {
		loc = time.UTC
	}

	s := &Store{client: client, coll: client.Database(database).Collection(collection), loc: loc}
	_, err = s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "employee_name", Value: 1}, {Key: "service_date", Value: 1}},
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: creating index: %w", store.ErrUnavailable, err)
	}

	return s, nil
}

// Close disconnects the client
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// FindByMonth returns the employee's punches dated inside w, oldest first
func (s *Store) FindByMonth(ctx context.Context, employee string, w period.Window) ([]models.Punch, error) {
	filter := bson.M{
		"employee_name": employee,
		"service_date":  bson.M{"$gte": w.Start, "$lt": w.End},
	}
	opts := options.Find().SetSort(bson.D{{Key: "service_date", Value: 1}, {Key: "start_time", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: finding punches: %w", store.ErrUnavailable, err)
	}

	var punches []models.Punch
	if err := cur.All(ctx, &punches); err != nil {
		return nil, fmt.Errorf("%w: decoding punches: %w", store.ErrUnavailable, err)
	}

	// BSON dates come back in UTC
	for i := range punches {
		punches[i].ServiceDate = punches[i].ServiceDate.In(s.loc)
		punches[i].StartTime = punches[i].StartTime.In(s.loc)
		punches[i].EndTime = punches[i].EndTime.In(s.loc)
	}
	return punches, nil
}

// InsertMany upserts with $setOnInsert so documents already stored are left
// untouched
func (s *Store) InsertMany(ctx context.Context, punches []models.Punch) (int, error) {
	if len(punches) == 0 {
		return 0, nil
	}

	writes := make([]mongo.WriteModel, 0, len(punches))
	for _, p := range punches {
		doc, err := insertDoc(p)
		if err != nil {
			return 0, fmt.Errorf("encoding punch %d: %w", p.ID, err)
		}
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": p.ID}).
			SetUpdate(bson.M{"$setOnInsert": doc}).
			SetUpsert(true))
	}

	res, err := s.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("%w: inserting punches: %w", store.ErrUnavailable, err)
	}
	return int(res.UpsertedCount), nil
}

// insertDoc encodes p without _id, which the upsert filter supplies
func insertDoc(p models.Punch) (bson.M, error) {
	raw, err := bson.Marshal(p)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	delete(doc, "_id")
	return doc, nil
}

// DeleteMany removes punches by id
func (s *Store) DeleteMany(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := s.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("%w: deleting punches: %w", store.ErrUnavailable, err)
	}
	return int(res.DeletedCount), nil
}

// SetCalendarEventID records the calendar event projected for a punch
func (s *Store) SetCalendarEventID(ctx context.Context, id int64, eventID string) error {
	_, err := s.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"calendar_event_id": eventID}})
	if err != nil {
		return fmt.Errorf("%w: setting calendar event for punch %d: %w", store.ErrUnavailable, id, err)
	}
	return nil
}

// Employees lists every employee with stored punches
func (s *Store) Employees(ctx context.Context) ([]string, error) {
	values, err := s.coll.Distinct(ctx, "employee_name", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("%w: listing employees: %w", store.ErrUnavailable, err)
	}

	names := make([]string, 0, len(values))
	for _, v := range values {
		if name, ok := v.(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}
