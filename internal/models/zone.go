package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Zone id shapes. A coordinate resolves to exactly one id for a given
// configuration:
//
//	adm2:<ISO_CC>/<ADM1>/<ADM2>
//	adm3:<ISO_CC>/<ADM1>/<ADM2>/<ADM3>
//	grid:<lat_q>/<lon_q>
const (
	zonePrefixAdm2 = "adm2:"
	zonePrefixAdm3 = "adm3:"
	zonePrefixGrid = "grid:"
)

// AdminLevels is the reverse-geocode result the resolver consumes.
type AdminLevels struct {
	CountryCode string
	Adm1        string
	Adm2        string
	Adm3        string
}

func zonePart(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "")
}

// Adm2ZoneID builds the Admin-2 zone id, or "" when an essential part is
// missing.
func Adm2ZoneID(levels AdminLevels) string {
	cc := strings.ToUpper(zonePart(levels.CountryCode))
	a1 := zonePart(levels.Adm1)
	a2 := zonePart(levels.Adm2)
	if cc == "" || a1 == "" || a2 == "" {
		return ""
	}
	return zonePrefixAdm2 + cc + "/" + a1 + "/" + a2
}

// Adm3ZoneID builds the Admin-3 zone id, or "" when adm3 (or any coarser
// part) is missing.
func Adm3ZoneID(levels AdminLevels) string {
	base := Adm2ZoneID(levels)
	a3 := zonePart(levels.Adm3)
	if base == "" || a3 == "" {
		return ""
	}
	return zonePrefixAdm3 + strings.TrimPrefix(base, zonePrefixAdm2) + "/" + a3
}

func quantize(v, grid float64) float64 {
	q := math.Floor(v/grid) * grid
	// Snap away float noise such as 28.6000000000000014.
	return math.Round(q*1e4) / 1e4
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// GridZoneID quantizes a coordinate onto the configured grid,
// e.g. (28.61, 77.23, 0.2) -> "grid:28.6/77.2".
func GridZoneID(lat, lon, gridSize float64) string {
	return zonePrefixGrid + formatCoord(quantize(lat, gridSize)) + "/" + formatCoord(quantize(lon, gridSize))
}

// IsGridZone reports whether the id is a grid fallback zone.
func IsGridZone(zoneID string) bool {
	return strings.HasPrefix(zoneID, zonePrefixGrid)
}

// GridZoneCenter recovers the cell-center coordinates of a grid zone id.
// Only grid zones carry coordinates in the id itself.
func GridZoneCenter(zoneID string, gridSize float64) (lat, lon float64, err error) {
	if !IsGridZone(zoneID) {
		return 0, 0, fmt.Errorf("zone %q is not a grid zone", zoneID)
	}
	parts := strings.Split(strings.TrimPrefix(zoneID, zonePrefixGrid), "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed grid zone id %q", zoneID)
	}
	baseLat, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed grid zone id %q: %w", zoneID, err)
	}
	baseLon, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed grid zone id %q: %w", zoneID, err)
	}
	return baseLat + gridSize/2, baseLon + gridSize/2, nil
}
