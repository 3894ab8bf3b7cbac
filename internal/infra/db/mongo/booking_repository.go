package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(ctx context.Context, db *mongo.Database) (*BookingRepository, error) {
	col := db.Collection("bookings")
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "range.check_out", Value: 1}}},
	})
	if err != nil {
		return nil, err
	}
	return &BookingRepository{col: col}, nil
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *BookingRepository) Insert(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	doc.Version = 1
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainbooking.ErrDuplicateID
		}
		return err
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	res, err := r.col.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) Delete(ctx context.Context, id domainbooking.BookingID) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	return err
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, bson.M{"user_id": userID}, opts)
}

func (r *BookingRepository) ListCheckoutBefore(ctx context.Context, cutoff time.Time) ([]*domainbooking.Booking, error) {
	filter := bson.M{
		"state":           string(domainbooking.StateConfirmed),
		"range.check_out": bson.M{"$lte": cutoff.UTC()},
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "range.check_out", Value: 1}}))
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainbooking.Booking, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

type rangeDocument struct {
	CheckIn  time.Time `bson:"check_in"`
	CheckOut time.Time `bson:"check_out"`
}

type bookingDocument struct {
	ID          string                         `bson:"_id"`
	UserID      string                         `bson:"user_id"`
	Range       rangeDocument                  `bson:"range"`
	State       string                         `bson:"state"`
	Assignments []domainbooking.RoomAssignment `bson:"assignments"`
	Contact     domainbooking.Contact          `bson:"contact"`
	Total       money.Money                    `bson:"total"`
	CreatedAt   time.Time                      `bson:"created_at"`
	UpdatedAt   time.Time                      `bson:"updated_at"`
	CancelledAt time.Time                      `bson:"cancelled_at,omitempty"`
	CompletedAt time.Time                      `bson:"completed_at,omitempty"`
	Version     int64                          `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:          string(b.ID),
		UserID:      b.UserID,
		Range:       rangeDocument{CheckIn: b.Range.CheckIn, CheckOut: b.Range.CheckOut},
		State:       string(b.State),
		Assignments: b.Assignments,
		Contact:     b.Contact,
		Total:       b.Total,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
		CancelledAt: b.CancelledAt,
		CompletedAt: b.CompletedAt,
		Version:     b.Version,
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:          domainbooking.BookingID(d.ID),
		UserID:      d.UserID,
		Range:       daterange.DateRange{CheckIn: daterange.Date(d.Range.CheckIn), CheckOut: daterange.Date(d.Range.CheckOut)},
		State:       domainbooking.State(d.State),
		Assignments: d.Assignments,
		Contact:     d.Contact,
		Total:       d.Total,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
		CancelledAt: utcOrZero(d.CancelledAt),
		CompletedAt: utcOrZero(d.CompletedAt),
		Version:     d.Version,
	}
}

func utcOrZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC()
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
