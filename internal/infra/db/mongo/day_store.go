package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/domain/availability"
	"staybook/internal/domain/rooms"
	"staybook/internal/domain/shared/daterange"
)

// DayStore keeps ledger rows in room_days, one document per room and night.
type DayStore struct {
	col *mongo.Collection
}

func NewDayStore(ctx context.Context, db *mongo.Database) (*DayStore, error) {
	col := db.Collection("room_days")
	idx := mongo.IndexModel{Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "date", Value: 1}}}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, err
	}
	return &DayStore{col: col}, nil
}

func dayDocID(roomID rooms.RoomID, date time.Time) string {
	return fmt.Sprintf("%s:%s", roomID, daterange.Date(date).Format(time.DateOnly))
}

func (s *DayStore) Day(ctx context.Context, roomID rooms.RoomID, date time.Time) (availability.Day, bool, error) {
	var doc dayDocument
	err := s.col.FindOne(ctx, bson.M{"_id": dayDocID(roomID, date)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return availability.Day{}, false, nil
		}
		return availability.Day{}, false, err
	}
	return doc.toDay(), true, nil
}

func (s *DayStore) Range(ctx context.Context, roomID rooms.RoomID, dr daterange.DateRange) ([]availability.Day, error) {
	filter := bson.M{
		"room_id": string(roomID),
		"date":    bson.M{"$gte": dr.CheckIn, "$lt": dr.CheckOut},
	}
	cur, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []dayDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]availability.Day, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDay())
	}
	return out, nil
}

// Save inserts a version zero row and otherwise replaces the row only while
// its stored version still equals day.Version.
func (s *DayStore) Save(ctx context.Context, day *availability.Day) error {
	doc := newDayDocument(*day)
	doc.Version = day.Version + 1
	if day.Version == 0 {
		_, err := s.col.InsertOne(ctx, doc)
		if mongo.IsDuplicateKeyError(err) {
			return availability.ErrVersionConflict
		}
		if err != nil {
			return err
		}
		day.Version = doc.Version
		return nil
	}
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": day.Version}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return availability.ErrVersionConflict
	}
	day.Version = doc.Version
	return nil
}

type occupantDocument struct {
	BookingID  string `bson:"booking_id"`
	GuestCount int    `bson:"guest_count"`
}

type dayDocument struct {
	ID                 string             `bson:"_id"`
	RoomID             string             `bson:"room_id"`
	Date               time.Time          `bson:"date"`
	Status             string             `bson:"status"`
	Dormitory          bool               `bson:"dormitory"`
	OccupyingBookingID string             `bson:"occupying_booking_id,omitempty"`
	Occupancy          int                `bson:"occupancy"`
	Capacity           int                `bson:"capacity"`
	Occupants          []occupantDocument `bson:"occupants,omitempty"`
	CustomerVisible    bool               `bson:"customer_visible"`
	StaffVisible       bool               `bson:"staff_visible"`
	Version            int64              `bson:"version"`
	UpdatedAt          time.Time          `bson:"updated_at"`
}

func newDayDocument(d availability.Day) dayDocument {
	doc := dayDocument{
		ID:                 dayDocID(d.RoomID, d.Date),
		RoomID:             string(d.RoomID),
		Date:               daterange.Date(d.Date),
		Status:             string(d.Status),
		Dormitory:          d.Dormitory,
		OccupyingBookingID: d.OccupyingBookingID,
		Occupancy:          d.Occupancy,
		Capacity:           d.Capacity,
		CustomerVisible:    d.CustomerVisible,
		StaffVisible:       d.StaffVisible,
		Version:            d.Version,
		UpdatedAt:          d.UpdatedAt,
	}
	for _, o := range d.Occupants {
		doc.Occupants = append(doc.Occupants, occupantDocument{BookingID: o.BookingID, GuestCount: o.GuestCount})
	}
	return doc
}

func (d dayDocument) toDay() availability.Day {
	day := availability.Day{
		RoomID:             rooms.RoomID(d.RoomID),
		Date:               daterange.Date(d.Date),
		Status:             availability.Status(d.Status),
		Dormitory:          d.Dormitory,
		OccupyingBookingID: d.OccupyingBookingID,
		Occupancy:          d.Occupancy,
		Capacity:           d.Capacity,
		CustomerVisible:    d.CustomerVisible,
		StaffVisible:       d.StaffVisible,
		Version:            d.Version,
		UpdatedAt:          d.UpdatedAt.UTC(),
	}
	for _, o := range d.Occupants {
		day.Occupants = append(day.Occupants, availability.Occupant{BookingID: o.BookingID, GuestCount: o.GuestCount})
	}
	return day
}

var _ availability.Store = (*DayStore)(nil)
