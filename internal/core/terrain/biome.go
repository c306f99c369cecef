package terrain

// Biome is the closed set of tile classifications.
type Biome uint8

const (
	BiomeUnknown Biome = iota
	BiomeDeepOcean
	BiomeOcean
	BiomeLake
	BiomeRiver
	BiomeBeach
	BiomeTundra
	BiomeTaiga
	BiomeGrassland
	BiomeForest
	BiomeSwamp
	BiomeDesert
	BiomeSavanna
	BiomeRainforest
	BiomeHills
	BiomeMountain
	BiomeSnowPeak
	BiomeCavern
	BiomeSeabed
	biomeCount
)

var biomeNames = [biomeCount]string{
	BiomeUnknown:    "unknown",
	BiomeDeepOcean:  "deep_ocean",
	BiomeOcean:      "ocean",
	BiomeLake:       "lake",
	BiomeRiver:      "river",
	BiomeBeach:      "beach",
	BiomeTundra:     "tundra",
	BiomeTaiga:      "taiga",
	BiomeGrassland:  "grassland",
	BiomeForest:     "forest",
	BiomeSwamp:      "swamp",
	BiomeDesert:     "desert",
	BiomeSavanna:    "savanna",
	BiomeRainforest: "rainforest",
	BiomeHills:      "hills",
	BiomeMountain:   "mountain",
	BiomeSnowPeak:   "snow_peak",
	BiomeCavern:     "cavern",
	BiomeSeabed:     "seabed",
}

func (b Biome) String() string {
	if b < biomeCount {
		return biomeNames[b]
	}
	return "unknown"
}

// ParseBiome resolves a biome by its String name.
func ParseBiome(name string) (Biome, bool) {
	for i, n := range biomeNames {
		if n == name && Biome(i) != BiomeUnknown {
			return Biome(i), true
		}
	}
	return BiomeUnknown, false
}

// Biomes returns every defined biome in enumeration order.
func Biomes() []Biome {
	out := make([]Biome, 0, biomeCount-1)
	for b := BiomeDeepOcean; b < biomeCount; b++ {
		out = append(out, b)
	}
	return out
}

// IsOcean reports whether b is an ocean biome.
func (b Biome) IsOcean() bool { return b == BiomeOcean || b == BiomeDeepOcean }

// IsWater reports whether b is a water biome. Seabed strata lie under water
// and count as water.
func (b Biome) IsWater() bool {
	switch b {
	case BiomeDeepOcean, BiomeOcean, BiomeLake, BiomeRiver, BiomeSeabed:
		return true
	}
	return false
}
