package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"staybook/internal/domain/rooms"
)

func TestLoadCatalogFromFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.json")
	data := `[
		{"id":"R_AAAAAA","name":"Single","location":"Bangkok","type":"single","capacity":1,"gender_restriction":"none","nightly_price":{"amount":1000,"currency":"THB"}},
		{"id":"R_BBBBBB","name":"Dorm","location":"bangkok","type":"dormitory","capacity":6,"gender_restriction":"female","nightly_price":{"amount":300,"currency":"THB"}},
		{"id":"R_CCCCCC","name":"Far","location":"phuket","type":"twin","capacity":2,"gender_restriction":"none","nightly_price":{"amount":900,"currency":"THB"}}
	]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write fixtures: %v", err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	listed, err := catalog.ListByLocation(context.Background(), "BANGKOK")
	if err != nil {
		t.Fatalf("ListByLocation: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "R_AAAAAA" || listed[1].ID != "R_BBBBBB" {
		t.Fatalf("unexpected rooms %+v", listed)
	}
	dorm, err := catalog.Room(context.Background(), "R_BBBBBB")
	if err != nil {
		t.Fatalf("Room: %v", err)
	}
	if dorm.Restriction != rooms.RestrictionFemale || !dorm.IsDormitory() {
		t.Fatalf("unexpected dorm %+v", dorm)
	}
	if _, err := catalog.Room(context.Background(), "R_ZZZZZZ"); !errors.Is(err, rooms.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestLoadCatalogRejectsInvalidRoom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rooms.json")
	data := `[{"id":"R_AAAAAA","name":"Broken","location":"bangkok","type":"single","capacity":0,"gender_restriction":"none","nightly_price":{"amount":1000,"currency":"THB"}}]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write fixtures: %v", err)
	}
	if _, err := LoadCatalog(path); !errors.Is(err, rooms.ErrCapacity) {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
}

func TestReadRoomsMissingFile(t *testing.T) {
	_, err := ReadRooms(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}
