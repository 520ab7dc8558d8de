package ingest

import (
	"strings"
	"unicode"

	"github.com/Conceptual-Machines/voxel-architect/internal/models"
)

// Archetype is a deterministic generator for a fallback structure.
type Archetype struct {
	Name     string
	Keywords []string
	Size     models.Size
	Build    func(w, h, d int) []*models.Voxel
}

var (
	castle = Archetype{
		Name:     "Castle",
		Keywords: []string{"castle", "fort", "fortress", "keep", "citadel", "stronghold"},
		Size:     models.Size{Width: 25, Height: 15, Depth: 25},
		Build:    buildCastle,
	}
	house = Archetype{
		Name:     "House",
		Keywords: []string{"house", "home", "cottage", "cabin", "hut", "villa"},
		Size:     models.Size{Width: 12, Height: 8, Depth: 12},
		Build:    buildHouse,
	}
	tower = Archetype{
		Name:     "Tower",
		Keywords: []string{"tower", "spire", "lighthouse", "minaret", "turret"},
		Size:     models.Size{Width: 7, Height: 20, Depth: 7},
		Build:    buildTower,
	}
	bridge = Archetype{
		Name:     "Bridge",
		Keywords: []string{"bridge", "viaduct", "aqueduct"},
		Size:     models.Size{Width: 20, Height: 8, Depth: 5},
		Build:    buildBridge,
	}
	generic = Archetype{
		Name:  "Structure",
		Size:  models.Size{Width: 15, Height: 10, Depth: 15},
		Build: buildPyramid,
	}
)

// Archetypes returns the keyword archetypes in match order, then the default.
func Archetypes() []Archetype {
	return []Archetype{castle, house, tower, bridge, generic}
}

// ArchetypeFor picks the archetype whose keyword appears as a word in
// description. Plurals match.
func ArchetypeFor(description string) Archetype {
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		words[w] = true
		words[strings.TrimSuffix(w, "s")] = true
	}
	for _, a := range Archetypes() {
		for _, k := range a.Keywords {
			if words[k] {
				return a
			}
		}
	}
	return generic
}

// Fallback synthesizes a valid structure for description.
func Fallback(description string) *models.Structure {
	a := ArchetypeFor(description)
	return &models.Structure{
		Name:        "Fallback " + a.Name,
		Description: description,
		Size:        a.Size,
		Placements:  a.Build(a.Size.Width, a.Size.Height, a.Size.Depth),
	}
}

// grid collects voxels keyed by position. A later set on the same position
// replaces the material but keeps the original order.
type grid struct {
	index  map[[3]int]int
	voxels []*models.Voxel
}

func newGrid() *grid {
	return &grid{index: map[[3]int]int{}}
}

func (g *grid) set(x, y, z int, material string) {
	key := [3]int{x, y, z}
	if i, ok := g.index[key]; ok {
		g.voxels[i].Material = material
		return
	}
	g.index[key] = len(g.voxels)
	g.voxels = append(g.voxels, models.NewVoxel(x, y, z, material))
}

// ring places the border of the rectangle [x0,x1]x[z0,z1] at height y.
func (g *grid) ring(x0, z0, x1, z1, y int, material string) {
	for x := x0; x <= x1; x++ {
		for z := z0; z <= z1; z++ {
			if x == x0 || x == x1 || z == z0 || z == z1 {
				g.set(x, y, z, material)
			}
		}
	}
}

func (g *grid) fill(x0, z0, x1, z1, y int, material string) {
	for x := x0; x <= x1; x++ {
		for z := z0; z <= z1; z++ {
			g.set(x, y, z, material)
		}
	}
}

func buildCastle(w, h, d int) []*models.Voxel {
	g := newGrid()
	gateX := w / 2

	g.fill(0, 0, w-1, d-1, 0, "COBBLESTONE")
	for y := 1; y < h; y++ {
		for x := 0; x < w; x++ {
			for z := 0; z < d; z++ {
				if x != 0 && x != w-1 && z != 0 && z != d-1 {
					continue
				}
				// Gates on the north and south walls.
				if (z == 0 || z == d-1) && x >= gateX-1 && x <= gateX+1 && y <= 3 {
					continue
				}
				g.set(x, y, z, "STONE_BRICKS")
			}
		}
	}
	// Crenellations.
	for x := 0; x < w; x++ {
		for z := 0; z < d; z++ {
			if (x == 0 || x == w-1 || z == 0 || z == d-1) && (x+z)%2 == 0 {
				g.set(x, h, z, "STONE_BRICKS")
			}
		}
	}
	// Corner towers rise above the walls.
	for _, c := range [][2]int{{0, 0}, {w - 4, 0}, {0, d - 4}, {w - 4, d - 4}} {
		for y := 1; y < h+5; y++ {
			g.ring(c[0], c[1], c[0]+3, c[1]+3, y, "STONE_BRICKS")
		}
		g.fill(c[0], c[1], c[0]+3, c[1]+3, h+5, "STONE_BRICK_SLAB")
	}
	// Courtyard pillars.
	for x := 4; x < w-4; x++ {
		for z := 4; z < d-4; z++ {
			if (x+z)%8 != 0 {
				continue
			}
			for y := 1; y <= 3; y++ {
				g.set(x, y, z, "QUARTZ_BLOCK")
			}
			g.set(x, 4, z, "LANTERN")
		}
	}
	return g.voxels
}

func buildHouse(w, h, d int) []*models.Voxel {
	g := newGrid()
	doorX := w / 2
	wallTop := max(h-4, 2)

	g.fill(0, 0, w-1, d-1, 0, "STONE")
	for y := 1; y <= wallTop; y++ {
		for x := 0; x < w; x++ {
			for z := 0; z < d; z++ {
				edgeX, edgeZ := x == 0 || x == w-1, z == 0 || z == d-1
				if !edgeX && !edgeZ {
					continue
				}
				switch {
				case edgeX && edgeZ:
					g.set(x, y, z, "OAK_LOG")
				case z == 0 && x == doorX && y <= 2:
					if y == 1 {
						g.set(x, y, z, "OAK_DOOR")
					}
				case y == 2 && ((edgeZ && x%3 == 1) || (edgeX && z%3 == 1)):
					g.set(x, y, z, "GLASS_PANE")
				default:
					g.set(x, y, z, "OAK_PLANKS")
				}
			}
		}
	}
	// Stepped hip roof, closed at the top.
	for k := 0; wallTop+1+k < h; k++ {
		x0, z0, x1, z1 := k, k, w-1-k, d-1-k
		if x0 >= x1 || z0 >= z1 || wallTop+2+k >= h {
			g.fill(x0, z0, max(x0, x1), max(z0, z1), wallTop+1+k, "OAK_SLAB")
			break
		}
		g.ring(x0, z0, x1, z1, wallTop+1+k, "SPRUCE_PLANKS")
	}
	return g.voxels
}

func buildTower(w, h, d int) []*models.Voxel {
	g := newGrid()
	maxInset := max(min(w, d)/2-1, 0)
	inset := func(y int) int { return y * maxInset / max(h, 1) }

	g.fill(0, 0, w-1, d-1, 0, "STONE")
	for y := 1; y < h; y++ {
		i := inset(y)
		material := "STONE"
		if y >= h*8/10 {
			material = "STONE_BRICKS"
		}
		g.ring(i, i, w-1-i, d-1-i, y, material)
		if y%4 == 2 {
			g.set(w/2, y, i, "GLASS_PANE")
			g.set(w/2, y, d-1-i, "GLASS_PANE")
			g.set(i, y, d/2, "GLASS_PANE")
			g.set(w-1-i, y, d/2, "GLASS_PANE")
		}
	}
	// Door on the first two layers.
	g.set(w/2, 1, 0, "OAK_DOOR")
	top := inset(h)
	g.fill(top, top, w-1-top, d-1-top, h, "STONE_BRICK_SLAB")
	return g.voxels
}

func buildBridge(w, h, d int) []*models.Voxel {
	g := newGrid()
	deck := h / 2

	g.fill(0, 0, w-1, d-1, deck, "STONE_BRICKS")
	for x := 0; x < w; x++ {
		g.set(x, deck+1, 0, "STONE_SLAB")
		g.set(x, deck+1, d-1, "STONE_SLAB")
	}
	for x := 3; x < w; x += 6 {
		for y := 0; y < deck; y++ {
			for z := 1; z < d-1; z++ {
				g.set(x, y, z, "STONE_BRICKS")
			}
		}
		g.set(x, deck+2, 0, "LANTERN")
		g.set(x, deck+2, d-1, "LANTERN")
	}
	return g.voxels
}

func buildPyramid(w, h, d int) []*models.Voxel {
	g := newGrid()

	g.fill(0, 0, w-1, d-1, 0, "STONE")
	for y := 1; y < h; y++ {
		offset := y / 2
		x0, z0, x1, z1 := offset, offset, w-1-offset, d-1-offset
		if x0 >= x1 || z0 >= z1 {
			g.fill(x0, z0, max(x0, x1), max(z0, z1), y, "QUARTZ_BLOCK")
			break
		}
		material := "QUARTZ_BLOCK"
		switch {
		case y < h*3/10:
			material = "STONE"
		case y < h*6/10:
			material = "STONE_BRICKS"
		}
		g.ring(x0, z0, x1, z1, y, material)
		if y == h-1 {
			g.fill(x0, z0, x1, z1, y, material)
		}
	}
	return g.voxels
}
