package chat

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidLocationKey is returned when a key string cannot be parsed.
var ErrInvalidLocationKey = errors.New("invalid location key")

// LocationKey identifies the geographic addressing scheme of a room.
// It is a closed union: a room is keyed either by a raw coordinate pair
// or by a hexagonal cell at a given resolution.
type LocationKey interface {
	// RoomID returns the stable room identifier derived from the key.
	RoomID() string
	// String returns the canonical key string stored in the directory.
	String() string

	isLocationKey()
}

// Coordinate keys a room by a literal latitude/longitude pair.
type Coordinate struct {
	Lat float64
	Lon float64
}

func (c Coordinate) RoomID() string { return c.String() }

func (c Coordinate) String() string {
	return formatCoord(c.Lat) + "_" + formatCoord(c.Lon)
}

func (Coordinate) isLocationKey() {}

// HexCell keys a room by a discretized hexagonal cell id.
type HexCell struct {
	ID         string
	Resolution int
}

func (h HexCell) RoomID() string { return h.ID }

func (h HexCell) String() string { return h.ID }

func (HexCell) isLocationKey() {}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseLocationKey parses a canonical key string back into a LocationKey.
// A string of the form "{lat}_{lon}" is a Coordinate; anything else is
// treated as a hex cell id (resolution 0 means "derive from the id").
func ParseLocationKey(s string) (LocationKey, error) {
	if s == "" {
		return nil, ErrInvalidLocationKey
	}
	if i := strings.Index(s, "_"); i >= 0 {
		lat, latErr := strconv.ParseFloat(s[:i], 64)
		lon, lonErr := strconv.ParseFloat(s[i+1:], 64)
		if latErr == nil && lonErr == nil {
			return Coordinate{Lat: lat, Lon: lon}, nil
		}
		return nil, ErrInvalidLocationKey
	}
	return HexCell{ID: s}, nil
}
