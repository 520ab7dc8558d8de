package services

import (
	"fmt"
	"sort"

	"github.com/Conceptual-Machines/voxel-architect/internal/models"
)

const (
	// PreviewTarget is the voxel target used when previewing.
	PreviewTarget    = 5000
	previewMaterials = 10
)

// MaterialCount is one line of a preview's bill of materials.
type MaterialCount struct {
	Material string `json:"material"`
	Count    int    `json:"count"`
}

// Preview summarizes a structure without placing it.
type Preview struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Size          models.Size     `json:"size"`
	Dimensions    string          `json:"dimensions"`
	TotalVoxels   int             `json:"total_voxels"`
	MaterialTypes int             `json:"material_types"`
	Materials     []MaterialCount `json:"materials"`
	MoreMaterials int             `json:"more_materials"`
	MinY          int             `json:"min_y"`
	MaxY          int             `json:"max_y"`
	Layers        int             `json:"layers"`
}

// Summarize builds the preview for s: the ten most used materials, then
// the height range.
func Summarize(s *models.Structure) Preview {
	counts := map[string]int{}
	minY, maxY := 0, 0
	first := true
	for _, v := range s.Placements {
		if v == nil {
			continue
		}
		counts[v.Material]++
		if first {
			minY, maxY, first = v.Y, v.Y, false
			continue
		}
		minY, maxY = min(minY, v.Y), max(maxY, v.Y)
	}

	list := make([]MaterialCount, 0, len(counts))
	for m, c := range counts {
		list = append(list, MaterialCount{Material: m, Count: c})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].Material < list[j].Material
	})

	p := Preview{
		Name:          s.Name,
		Description:   s.Description,
		Size:          s.Size,
		Dimensions:    fmt.Sprintf("%dx%dx%d", s.Size.Width, s.Size.Height, s.Size.Depth),
		TotalVoxels:   s.VoxelCount(),
		MaterialTypes: len(list),
		MinY:          minY,
		MaxY:          maxY,
		Layers:        maxY - minY + 1,
	}
	if len(list) > previewMaterials {
		p.MoreMaterials = len(list) - previewMaterials
		list = list[:previewMaterials]
	}
	p.Materials = list
	return p
}

// Lines renders the preview as chat-style lines.
func (p Preview) Lines() []string {
	lines := []string{
		"=== Structure Preview ===",
		"Name: " + p.Name,
		"Description: " + p.Description,
		"Dimensions: " + p.Dimensions,
		fmt.Sprintf("Total blocks: %d", p.TotalVoxels),
		fmt.Sprintf("Materials needed (%d types):", p.MaterialTypes),
	}
	for _, m := range p.Materials {
		lines = append(lines, fmt.Sprintf("  • %s: %d", m.Material, m.Count))
	}
	if p.MoreMaterials > 0 {
		lines = append(lines, fmt.Sprintf("  ... and %d more materials", p.MoreMaterials))
	}
	return append(lines, fmt.Sprintf("Height range: Y%d to Y%d (%d layers)", p.MinY, p.MaxY, p.Layers))
}
