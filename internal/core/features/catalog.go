package features

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"

	"github.com/louisbranch/worldgen/internal/core/terrain"
	apperrors "github.com/louisbranch/worldgen/internal/platform/errors"
)

const (
	// DefaultMinSeparation applies when an entry leaves min_separation unset.
	DefaultMinSeparation = 10
	// DefaultBias applies when an entry leaves bias unset.
	DefaultBias = 8
)

//go:embed catalog.json
var defaultCatalogJSON []byte

// Kind is the closed set of regional feature kinds.
type Kind uint8

const (
	KindVolcanicVent Kind = iota + 1
	KindAnomalyZone
	KindSubmergedRuins
	KindHotSpring
	KindMeteorCrater
)

var kindNames = map[Kind]string{
	KindVolcanicVent:   "volcanic_vent",
	KindAnomalyZone:    "anomaly_zone",
	KindSubmergedRuins: "submerged_ruins",
	KindHotSpring:      "hot_spring",
	KindMeteorCrater:   "meteor_crater",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseKind resolves a kind by its String name.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Spec is the validated placement data of one feature kind.
type Spec struct {
	Kind          Kind
	Weight        float64
	MinSeparation float64
	Radius        int
	Preferred     []terrain.Biome
	// Allowed restricts the biomes a feature may sit on; empty allows all.
	Allowed      []terrain.Biome
	MinElevation float64
	MaxElevation float64
	// Water restricts the water types a feature may sit on; empty allows all.
	Water []terrain.WaterType
	// Bias multiplies the sampling weight of preferred-biome tiles.
	Bias float64
}

// Compatible reports whether a tile with these values may host the feature.
func (s Spec) Compatible(b terrain.Biome, elevation float64, w terrain.WaterType) bool {
	if elevation < s.MinElevation || elevation > s.MaxElevation {
		return false
	}
	if len(s.Allowed) > 0 && !contains(s.Allowed, b) {
		return false
	}
	if len(s.Water) > 0 && !contains(s.Water, w) {
		return false
	}
	return true
}

// Prefers reports whether b is one of the preferred biomes.
func (s Spec) Prefers(b terrain.Biome) bool { return contains(s.Preferred, b) }

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Catalog is a validated, ordered set of feature specs.
type Catalog struct {
	specs []Spec
	raw   []byte
}

// Specs returns the specs in catalog order.
func (c *Catalog) Specs() []Spec { return append([]Spec(nil), c.specs...) }

// Len returns the number of kinds in the catalog.
func (c *Catalog) Len() int { return len(c.specs) }

// Canonical returns the compact JSON the catalog was parsed from. It is
// stable for equal inputs and feeds parameter fingerprints.
func (c *Catalog) Canonical() []byte { return append([]byte(nil), c.raw...) }

type catalogFile struct {
	Features []entryFile `json:"features"`
}

type entryFile struct {
	Kind            string    `json:"kind"`
	Weight          float64   `json:"weight"`
	MinSeparation   *float64  `json:"min_separation,omitempty"`
	Radius          int       `json:"radius"`
	PreferredBiomes []string  `json:"preferred_biomes"`
	AllowedBiomes   []string  `json:"allowed_biomes"`
	Elevation       *rangeDoc `json:"elevation"`
	WaterTypes      []string  `json:"water_types"`
	Bias            *float64  `json:"bias,omitempty"`
}

type rangeDoc struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogJSON)
	if err != nil {
		panic(fmt.Sprintf("built-in feature catalog: %v", err))
	}
	return c
}

// ParseCatalog decodes and validates a JSON catalog. Every problem is
// reported as CATALOG_INVALID before any generation starts.
func ParseCatalog(data []byte) (*Catalog, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc catalogFile
	if err := dec.Decode(&doc); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCatalogInvalid, "decode feature catalog", err)
	}

	c := &Catalog{}
	seen := map[Kind]bool{}
	for i, e := range doc.Features {
		spec, err := e.spec()
		if err != nil {
			return nil, apperrors.WithMetadata(apperrors.CodeCatalogInvalid,
				fmt.Sprintf("feature %d: %v", i, err), map[string]string{"entry": fmt.Sprint(i), "kind": e.Kind})
		}
		if seen[spec.Kind] {
			return nil, apperrors.WithMetadata(apperrors.CodeCatalogInvalid,
				fmt.Sprintf("feature %d: duplicate kind %s", i, spec.Kind), map[string]string{"entry": fmt.Sprint(i), "kind": e.Kind})
		}
		seen[spec.Kind] = true
		c.specs = append(c.specs, spec)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCatalogInvalid, "encode feature catalog", err)
	}
	c.raw = raw
	return c, nil
}

func (e entryFile) spec() (Spec, error) {
	kind, ok := ParseKind(e.Kind)
	if !ok {
		return Spec{}, fmt.Errorf("unknown kind %q", e.Kind)
	}
	s := Spec{
		Kind:          kind,
		Weight:        e.Weight,
		MinSeparation: DefaultMinSeparation,
		Radius:        e.Radius,
		MinElevation:  0,
		MaxElevation:  1,
		Bias:          DefaultBias,
	}
	if e.MinSeparation != nil {
		s.MinSeparation = *e.MinSeparation
	}
	if e.Bias != nil {
		s.Bias = *e.Bias
	}
	if !(s.Weight > 0) || math.IsInf(s.Weight, 0) {
		return Spec{}, fmt.Errorf("weight must be positive")
	}
	if !(s.MinSeparation >= 0) || math.IsInf(s.MinSeparation, 0) {
		return Spec{}, fmt.Errorf("min separation must be finite and not negative")
	}
	if s.Radius < 0 {
		return Spec{}, fmt.Errorf("radius must not be negative")
	}
	if !(s.Bias >= 0) || math.IsInf(s.Bias, 0) {
		return Spec{}, fmt.Errorf("bias must be finite and not negative")
	}
	if e.Elevation != nil {
		s.MinElevation, s.MaxElevation = e.Elevation.Min, e.Elevation.Max
		if s.MinElevation < 0 || s.MaxElevation > 1 || s.MinElevation > s.MaxElevation {
			return Spec{}, fmt.Errorf("elevation range [%v,%v] is empty or outside [0,1]", s.MinElevation, s.MaxElevation)
		}
	}
	var err error
	if s.Preferred, err = parseBiomes(e.PreferredBiomes); err != nil {
		return Spec{}, err
	}
	if s.Allowed, err = parseBiomes(e.AllowedBiomes); err != nil {
		return Spec{}, err
	}
	for _, name := range e.WaterTypes {
		w, ok := terrain.ParseWaterType(name)
		if !ok {
			return Spec{}, fmt.Errorf("unknown water type %q", name)
		}
		s.Water = append(s.Water, w)
	}
	return s, nil
}

func parseBiomes(names []string) ([]terrain.Biome, error) {
	var out []terrain.Biome
	for _, name := range names {
		b, ok := terrain.ParseBiome(name)
		if !ok {
			return nil, fmt.Errorf("unknown biome %q", name)
		}
		out = append(out, b)
	}
	return out, nil
}
