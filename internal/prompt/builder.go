package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Conceptual-Machines/voxel-architect/internal/materials"
	"github.com/Conceptual-Machines/voxel-architect/internal/models"
)

// SystemPrompt frames every generator call.
const SystemPrompt = "You are an expert Minecraft architect. Answer with a single JSON object describing the structure and nothing else."

// MaxSingleShotTarget caps the voxel target requested in one prompt.
const MaxSingleShotTarget = 2000

// chunkPalette is the reduced palette offered to per-cell prompts.
var chunkPalette = []string{
	"STONE", "COBBLESTONE", "STONE_BRICKS", "OAK_PLANKS", "OAK_LOG", "GLASS",
	"IRON_BARS", "OAK_STAIRS", "STONE_BRICK_STAIRS", "OAK_SLAB", "STONE_BRICK_SLAB",
	"COBBLESTONE_STAIRS", "MOSSY_STONE_BRICKS", "CRACKED_STONE_BRICKS",
	"DARK_OAK_PLANKS", "SPRUCE_PLANKS", "BIRCH_PLANKS", "AIR",
}

// Builder builds generator prompts for structures, plans and cells
type Builder struct {
	loader  *Loader
	palette string
}

// NewPromptBuilder creates a new prompt builder
func NewPromptBuilder() (*Builder, error) {
	loader, err := NewPromptLoader()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0)
	for _, m := range materials.Catalog() {
		names = append(names, string(m))
	}
	sort.Strings(names)

	return &Builder{loader: loader, palette: strings.Join(names, ", ")}, nil
}

// Scale describes the size class used for a single-shot target.
type Scale struct {
	Label string
	Edge  int
}

// ScaleFor picks the size guidance for a voxel target.
func ScaleFor(target int) Scale {
	switch {
	case target <= 100:
		return Scale{Label: "SMALL to MEDIUM", Edge: 10}
	case target <= 500:
		return Scale{Label: "MEDIUM to LARGE", Edge: 15}
	default:
		return Scale{Label: "LARGE and DETAILED", Edge: 20}
	}
}

// StructurePrompt builds the single-shot prompt for description.
func (b *Builder) StructurePrompt(description string, maxSize int) (string, error) {
	target := min(maxSize, MaxSingleShotTarget)
	scale := ScaleFor(target)
	return b.loader.Render(structureTemplate, map[string]any{
		"Scale":       scale.Label,
		"Description": description,
		"Target":      target,
		"Edge":        scale.Edge,
		"Palette":     b.palette,
		"Width":       scale.Edge,
		"Height":      scale.Edge,
		"Depth":       scale.Edge,
	})
}

// PlanPrompt builds the planning prompt for a chunksPerSide grid.
func (b *Builder) PlanPrompt(description string, chunksPerSide int) (string, error) {
	if chunksPerSide < 1 {
		return "", fmt.Errorf("chunks per side must be positive, got %d", chunksPerSide)
	}
	return b.loader.Render(planTemplate, map[string]any{
		"Description":   description,
		"ChunksPerSide": chunksPerSide,
		"Last":          chunksPerSide - 1,
	})
}

// ChunkPrompt builds the prompt for one cell, bounded to [0, chunkSize).
func (b *Builder) ChunkPrompt(chunk models.ChunkDescriptor, chunkSize int) (string, error) {
	if chunkSize < 1 {
		return "", fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	return b.loader.Render(chunkTemplate, map[string]any{
		"Description": chunk.Description,
		"Size":        chunkSize,
		"Last":        chunkSize - 1,
		"ChunkX":      chunk.ChunkX,
		"ChunkZ":      chunk.ChunkZ,
		"PlanContext": strings.TrimSpace(chunk.PlanContext),
		"Palette":     strings.Join(chunkPalette, ", "),
		"Width":       chunkSize,
		"Height":      chunkSize,
		"Depth":       chunkSize,
	})
}
