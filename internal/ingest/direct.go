package ingest

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/Conceptual-Machines/voxel-architect/internal/models"
)

// wireStructure is the accepted document shape. "blocks" is canonical,
// "placements" is accepted as an alias.
type wireStructure struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Size        *models.Size    `json:"size"`
	Blocks      []*models.Voxel `json:"blocks"`
	Placements  []*models.Voxel `json:"placements"`
}

func (w *wireStructure) toStructure() *models.Structure {
	s := &models.Structure{
		Name:        w.Name,
		Description: w.Description,
		Placements:  w.Blocks,
	}
	if len(s.Placements) == 0 {
		s.Placements = w.Placements
	}
	if w.Size != nil {
		s.Size = *w.Size
	}
	return s
}

// decodeStrict parses text as a complete structure document.
func decodeStrict(text string) (*models.Structure, error) {
	if text == "" {
		return nil, errEmptyResponse
	}
	var w wireStructure
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return nil, fmt.Errorf("decode structure: %w", err)
	}
	s := w.toStructure()
	if len(s.Placements) == 0 {
		return nil, errNoPlacements
	}
	return s, nil
}

type directStrategy struct{}

func (directStrategy) Name() string { return StrategyDirect }

func (directStrategy) Parse(raw string) Result {
	s, err := decodeStrict(Clean(raw))
	return Result{Structure: s, Err: err}
}

type extractionStrategy struct{}

func (extractionStrategy) Name() string { return StrategyExtraction }

func (extractionStrategy) Parse(raw string) Result {
	obj, ok := ExtractObject(raw)
	if !ok {
		return Result{Err: errNoObject}
	}
	s, err := decodeStrict(obj)
	return Result{Structure: s, Err: err}
}
