package models

import "math"

// MinVoxelThreshold is the default number of voxels a parsed structure must
// exceed to be considered real output rather than a parsing artifact.
const MinVoxelThreshold = 10

// Structure is a generated voxel structure.
// Placement order is materialization order.
type Structure struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Size        Size     `json:"size"`
	Placements  []*Voxel `json:"blocks"`
}

// Size is the declared bounding box of a structure. It is advisory.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Depth  int `json:"depth"`
}

// IsZero reports whether no dimension was declared.
func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0 && s.Depth == 0
}

// Volume returns width*height*depth.
func (s Size) Volume() int {
	return s.Width * s.Height * s.Depth
}

// Voxel is a single placement in structure-local coordinates.
// Data holds optional orientation/variant metadata ("" means none).
type Voxel struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Z        int    `json:"z"`
	Material string `json:"material"`
	Data     string `json:"data"`
}

// NewVoxel creates a voxel without variant data.
func NewVoxel(x, y, z int, material string) *Voxel {
	return &Voxel{X: x, Y: y, Z: z, Material: material}
}

// Offset returns a copy of the voxel translated by (dx, dy, dz).
func (v *Voxel) Offset(dx, dy, dz int) *Voxel {
	return &Voxel{
		X:        v.X + dx,
		Y:        v.Y + dy,
		Z:        v.Z + dz,
		Material: v.Material,
		Data:     v.Data,
	}
}

// Bounds is an inclusive axis-aligned box.
type Bounds struct {
	MinX, MinY, MinZ int
	MaxX, MaxY, MaxZ int
}

// Size converts the bounds into a Size (max-min+1 per axis).
func (b Bounds) Size() Size {
	return Size{
		Width:  b.MaxX - b.MinX + 1,
		Height: b.MaxY - b.MinY + 1,
		Depth:  b.MaxZ - b.MinZ + 1,
	}
}

// IsValid reports whether the structure satisfies the validity predicate:
// non-nil, non-empty placements and more than minVoxels voxels.
func (s *Structure) IsValid(minVoxels int) bool {
	return s != nil && len(s.Placements) > 0 && len(s.Placements) > minVoxels
}

// VoxelCount returns the number of placements.
func (s *Structure) VoxelCount() int {
	if s == nil {
		return 0
	}
	return len(s.Placements)
}

// Bounds scans the placements for their extent. ok is false when there are
// no non-nil placements.
func (s *Structure) Bounds() (b Bounds, ok bool) {
	if s == nil {
		return Bounds{}, false
	}
	b = Bounds{
		MinX: math.MaxInt, MinY: math.MaxInt, MinZ: math.MaxInt,
		MaxX: math.MinInt, MaxY: math.MinInt, MaxZ: math.MinInt,
	}
	for _, v := range s.Placements {
		if v == nil {
			continue
		}
		ok = true
		b.MinX, b.MaxX = min(b.MinX, v.X), max(b.MaxX, v.X)
		b.MinY, b.MaxY = min(b.MinY, v.Y), max(b.MaxY, v.Y)
		b.MinZ, b.MaxZ = min(b.MinZ, v.Z), max(b.MaxZ, v.Z)
	}
	if !ok {
		return Bounds{}, false
	}
	return b, true
}

// ComputedSize derives the size from the voxel bounding box, 1x1x1 when empty.
func (s *Structure) ComputedSize() Size {
	b, ok := s.Bounds()
	if !ok {
		return Size{Width: 1, Height: 1, Depth: 1}
	}
	return b.Size()
}

// NormalizeSize replaces a missing or all-zero declared size with the size
// computed from the placements.
func (s *Structure) NormalizeSize() {
	if s == nil {
		return
	}
	if s.Size.IsZero() || s.Size.Width < 0 || s.Size.Height < 0 || s.Size.Depth < 0 {
		s.Size = s.ComputedSize()
	}
}

// CompactPlacements drops nil entries, preserving order.
func (s *Structure) CompactPlacements() {
	if s == nil {
		return
	}
	kept := s.Placements[:0]
	for _, v := range s.Placements {
		if v != nil {
			kept = append(kept, v)
		}
	}
	s.Placements = kept
}

// ChunkDescriptor describes one cell of a decomposed structure.
type ChunkDescriptor struct {
	ChunkX      int
	ChunkZ      int
	Description string
	PlanContext string
}

// Location is an absolute position in the host world.
type Location struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Add returns the world position of a structure-local voxel placed at l.
func (l Location) Add(v *Voxel) Location {
	return Location{X: l.X + v.X, Y: l.Y + v.Y, Z: l.Z + v.Z}
}
