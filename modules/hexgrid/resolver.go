// Package hexgrid discretizes geographic points into hexagonal cells and
// discovers the neighbor ring of a cell. It is pure: no I/O, no state.
package hexgrid

import (
	"errors"
	"math"
	"sort"

	h3 "github.com/uber/h3-go/v4"
)

// Supported resolutions. H3 defines 0-15 but nothing coarser than a city
// district or finer than a street corner is a useful chat room.
const (
	MinResolution = 4
	MaxResolution = 11
)

var (
	// ErrInvalidCoordinate is returned for points outside [-90,90]x[-180,180].
	ErrInvalidCoordinate = errors.New("coordinate out of range")
	// ErrUnsupportedResolution is returned for resolutions outside the supported range.
	ErrUnsupportedResolution = errors.New("unsupported hex resolution")
	// ErrInvalidCell is returned when a string is not a valid cell id.
	ErrInvalidCell = errors.New("invalid hex cell id")
)

// Neighbor describes one adjacent cell relative to an origin cell.
type Neighbor struct {
	CellID     string  `json:"cell_id"`
	DistanceKm float64 `json:"approx_distance_km"`
	Direction  string  `json:"compass_direction"`

	directionIdx int
}

// CellFor maps a coordinate to the hex cell containing it at the given
// resolution. Deterministic and total over valid inputs.
func CellFor(lat, lon float64, resolution int) (string, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", ErrInvalidCoordinate
	}
	if resolution < MinResolution || resolution > MaxResolution {
		return "", ErrUnsupportedResolution
	}
	cell := h3.LatLngToCell(h3.NewLatLng(lat, lon), resolution)
	if !cell.IsValid() {
		return "", ErrInvalidCoordinate
	}
	return cell.String(), nil
}

// ResolutionOf reports the resolution encoded in a cell id.
func ResolutionOf(cellID string) (int, error) {
	cell := h3.Cell(h3.IndexFromString(cellID))
	if !cell.IsValid() {
		return 0, ErrInvalidCell
	}
	res := cell.Resolution()
	if res < MinResolution || res > MaxResolution {
		return 0, ErrUnsupportedResolution
	}
	return res, nil
}

// Neighbors returns the immediate ring of cells adjacent to cellID at the
// same resolution, sorted by ascending distance, then compass direction,
// then cell id. Hexagons have six neighbors; pentagons on the icosahedron
// edges have five.
func Neighbors(cellID string) ([]Neighbor, error) {
	origin := h3.Cell(h3.IndexFromString(cellID))
	if !origin.IsValid() {
		return nil, ErrInvalidCell
	}

	center := h3.CellToLatLng(origin)
	ring := h3.GridDisk(origin, 1)

	neighbors := make([]Neighbor, 0, 6)
	for _, cell := range ring {
		if cell == origin {
			continue
		}
		neighborCenter := h3.CellToLatLng(cell)
		dir, idx := compass(bearing(center, neighborCenter))
		neighbors = append(neighbors, Neighbor{
			CellID:       cell.String(),
			DistanceKm:   h3.GreatCircleDistanceKm(center, neighborCenter),
			Direction:    dir,
			directionIdx: idx,
		})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		a, b := neighbors[i], neighbors[j]
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		if a.directionIdx != b.directionIdx {
			return a.directionIdx < b.directionIdx
		}
		return a.CellID < b.CellID
	})
	return neighbors, nil
}

var compassPoints = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// compass buckets an initial bearing in degrees into an 8-point direction.
func compass(deg float64) (string, int) {
	idx := int(math.Mod(deg+22.5, 360) / 45)
	return compassPoints[idx], idx
}

// bearing computes the initial great-circle bearing from a to b in degrees
// normalized to [0, 360).
func bearing(a, b h3.LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLon := (b.Lng - a.Lng) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}
