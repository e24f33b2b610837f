package services

import (
	_ "embed"
	"encoding/json"
	"os"

	"github.com/Quraeshi99/NoorTime/internal/errs"
	"github.com/Quraeshi99/NoorTime/internal/models"
)

//go:embed country_method_map.json
var defaultMethodMapJSON []byte

// MethodMap resolves the AUTOMATIC method sentinel to a concrete
// calculation method by country. The table is static for the process
// lifetime.
type MethodMap struct {
	byCountry map[string]int
	fallback  int
}

type methodMapFile struct {
	Default   int            `json:"default"`
	Countries map[string]int `json:"countries"`
}

// LoadMethodMap reads the country table from path, or the embedded
// default when path is empty.
func LoadMethodMap(path string) (*MethodMap, error) {
	raw := defaultMethodMapJSON
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Wrapf(errs.Internal, err, "read country method map %s", path)
		}
		raw = b
	}
	var f methodMapFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "parse country method map")
	}
	if f.Default == 0 {
		return nil, errs.New(errs.Internal, "country method map has no default method")
	}
	return &MethodMap{byCountry: f.Countries, fallback: f.Default}, nil
}

// Resolve replaces the AUTOMATIC sentinel with the country's concrete
// method. Non-sentinel keys pass through unchanged; AUTOMATIC must never
// reach a stored cache key.
func (m *MethodMap) Resolve(key models.MethodKey, countryCode string, automaticID int) models.MethodKey {
	if key.Method != automaticID {
		return key
	}
	if method, ok := m.byCountry[countryCode]; ok {
		key.Method = method
		return key
	}
	key.Method = m.fallback
	return key
}
