package materials

import (
	"strings"
)

// Material is a canonical, buildable material identifier (e.g. "OAK_PLANKS").
type Material string

// Default is used whenever a name cannot be resolved to a safe material.
const Default Material = "STONE"

const namespacePrefix = "minecraft:"

// catalog lists every material the generator is allowed to place.
var catalog = map[Material]struct{}{}

func init() {
	for _, name := range []string{
		// Stone family
		"STONE", "COBBLESTONE", "MOSSY_COBBLESTONE", "STONE_BRICKS", "MOSSY_STONE_BRICKS",
		"CRACKED_STONE_BRICKS", "CHISELED_STONE_BRICKS", "SMOOTH_STONE", "GRANITE",
		"POLISHED_GRANITE", "DIORITE", "POLISHED_DIORITE", "ANDESITE", "POLISHED_ANDESITE",
		"DEEPSLATE", "DEEPSLATE_BRICKS", "BLACKSTONE", "POLISHED_BLACKSTONE",
		"NETHER_BRICKS", "END_STONE_BRICKS", "BRICKS", "SANDSTONE", "RED_SANDSTONE",
		"SMOOTH_SANDSTONE", "QUARTZ_BLOCK", "SMOOTH_QUARTZ", "PRISMARINE", "PRISMARINE_BRICKS",
		"OBSIDIAN",
		// Wood
		"OAK_PLANKS", "SPRUCE_PLANKS", "BIRCH_PLANKS", "JUNGLE_PLANKS", "ACACIA_PLANKS",
		"DARK_OAK_PLANKS", "OAK_LOG", "SPRUCE_LOG", "BIRCH_LOG", "JUNGLE_LOG", "ACACIA_LOG",
		"DARK_OAK_LOG", "STRIPPED_OAK_LOG", "BOOKSHELF",
		// Glass
		"GLASS", "GLASS_PANE", "WHITE_STAINED_GLASS", "LIGHT_BLUE_STAINED_GLASS",
		"YELLOW_STAINED_GLASS", "WHITE_STAINED_GLASS_PANE",
		// Colored blocks
		"TERRACOTTA", "WHITE_TERRACOTTA", "ORANGE_TERRACOTTA", "LIGHT_BLUE_TERRACOTTA",
		"WHITE_CONCRETE", "GRAY_CONCRETE", "LIGHT_GRAY_CONCRETE", "WHITE_WOOL", "LIGHT_GRAY_WOOL",
		// Metal and precious
		"IRON_BLOCK", "GOLD_BLOCK", "DIAMOND_BLOCK", "EMERALD_BLOCK", "NETHERITE_BLOCK",
		"IRON_BARS", "CHAIN",
		// Stairs and slabs
		"OAK_STAIRS", "SPRUCE_STAIRS", "STONE_STAIRS", "STONE_BRICK_STAIRS", "COBBLESTONE_STAIRS",
		"GRANITE_STAIRS", "BRICK_STAIRS", "SANDSTONE_STAIRS", "QUARTZ_STAIRS",
		"OAK_SLAB", "SPRUCE_SLAB", "STONE_SLAB", "STONE_BRICK_SLAB", "SMOOTH_STONE_SLAB",
		"GRANITE_SLAB", "BRICK_SLAB", "SANDSTONE_SLAB", "QUARTZ_SLAB", "COBBLESTONE_SLAB",
		// Fixtures
		"OAK_FENCE", "SPRUCE_FENCE", "LANTERN", "TORCH", "OAK_DOOR", "IRON_DOOR",
		"OAK_TRAPDOOR", "LADDER", "CHEST", "CRAFTING_TABLE", "FURNACE", "FLOWER_POT",
		// Terrain
		"DIRT", "GRASS_BLOCK", "SAND", "GRAVEL", "SNOW_BLOCK", "CLAY",
		// Openings
		"AIR",
	} {
		catalog[Material(name)] = struct{}{}
	}
}

// unsafe materials never resolve, even if a caller adds them to the catalog.
var unsafe = map[Material]struct{}{
	"TNT":  {},
	"LAVA": {},
	// Fluids flood surrounding terrain once placed.
	"WATER": {},
}

var unsafeFragments = []string{"SPAWN", "COMMAND"}

// Normalize converts a free-form name to catalog spelling: upper case,
// no namespace, underscores for separators.
func Normalize(name string) string {
	n := strings.TrimSpace(name)
	n = strings.ToLower(n)
	n = strings.TrimPrefix(n, namespacePrefix)
	n = strings.NewReplacer(" ", "_", "-", "_").Replace(n)
	return strings.ToUpper(n)
}

// IsSafe reports whether m is a known material that may be placed.
func IsSafe(m Material) bool {
	if m == "" {
		return false
	}
	if _, bad := unsafe[m]; bad {
		return false
	}
	for _, frag := range unsafeFragments {
		if strings.Contains(string(m), frag) {
			return false
		}
	}
	_, known := catalog[m]
	return known
}

// Resolve maps a name from the open vocabulary to a safe material. When the
// name is empty, unknown or unsafe, it returns Default and false.
func Resolve(name string) (Material, bool) {
	m := Material(Normalize(name))
	if !IsSafe(m) {
		return Default, false
	}
	return m, true
}

// Catalog returns the known materials in no particular order.
func Catalog() []Material {
	out := make([]Material, 0, len(catalog))
	for m := range catalog {
		out = append(out, m)
	}
	return out
}
