// Package tz infers IANA timezones from coordinates, used for guests who
// never configured one.
package tz

import (
	"fmt"

	"github.com/ringsaturn/tzf"
)

// Finder wraps the embedded timezone shapefile index.
type Finder struct {
	f tzf.F
}

// NewFinder builds the index once at startup; it is safe for concurrent
// use afterwards.
func NewFinder() (*Finder, error) {
	f, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, fmt.Errorf("build timezone finder: %w", err)
	}
	return &Finder{f: f}, nil
}

// Lookup returns the IANA name for a coordinate, or fallback when the
// point hits no polygon (open ocean).
func (t *Finder) Lookup(lat, lon float64, fallback string) string {
	// tzf takes lng first.
	if name := t.f.GetTimezoneName(lon, lat); name != "" {
		return name
	}
	return fallback
}
