package mongo

import (
	"context"
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staybook/internal/domain/rooms"
)

// RoomCatalog reads the rooms collection maintained by the property system.
type RoomCatalog struct {
	col *mongo.Collection
}

func NewRoomCatalog(ctx context.Context, db *mongo.Database) (*RoomCatalog, error) {
	col := db.Collection("rooms")
	if _, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "location", Value: 1}}}); err != nil {
		return nil, err
	}
	return &RoomCatalog{col: col}, nil
}

func (c *RoomCatalog) Room(ctx context.Context, id rooms.RoomID) (rooms.Room, error) {
	var room rooms.Room
	if err := c.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&room); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return rooms.Room{}, rooms.ErrRoomNotFound
		}
		return rooms.Room{}, err
	}
	return room, nil
}

// ListByLocation matches the location case-insensitively, ordered by id.
func (c *RoomCatalog) ListByLocation(ctx context.Context, location string) ([]rooms.Room, error) {
	filter := bson.M{"location": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(location) + "$", Options: "i"}}
	cur, err := c.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []rooms.Room
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert stores a room, used to seed the collection from fixtures.
func (c *RoomCatalog) Upsert(ctx context.Context, room rooms.Room) error {
	if err := room.Validate(); err != nil {
		return err
	}
	_, err := c.col.ReplaceOne(ctx, bson.M{"_id": string(room.ID)}, room, options.Replace().SetUpsert(true))
	return err
}

var _ rooms.Catalog = (*RoomCatalog)(nil)
