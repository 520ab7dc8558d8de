package materials

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Material
		wantOK bool
	}{
		{name: "canonical", input: "STONE_BRICKS", want: "STONE_BRICKS", wantOK: true},
		{name: "lower case", input: "oak_planks", want: "OAK_PLANKS", wantOK: true},
		{name: "namespaced", input: "minecraft:glass", want: "GLASS", wantOK: true},
		{name: "spaces", input: "  dark oak planks ", want: "DARK_OAK_PLANKS", wantOK: true},
		{name: "hyphens", input: "stone-brick-stairs", want: "STONE_BRICK_STAIRS", wantOK: true},
		{name: "air is allowed", input: "air", want: "AIR", wantOK: true},
		{name: "empty", input: "", want: Default, wantOK: false},
		{name: "unknown", input: "UNOBTAINIUM", want: Default, wantOK: false},
		{name: "tnt", input: "tnt", want: Default, wantOK: false},
		{name: "lava", input: "LAVA", want: Default, wantOK: false},
		{name: "water", input: "water", want: Default, wantOK: false},
		{name: "spawner", input: "ZOMBIE_SPAWN_EGG", want: Default, wantOK: false},
		{name: "command block", input: "command_block", want: Default, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	for _, name := range []string{"oak_planks", "GLASS", "minecraft:lantern", "nonsense"} {
		first, _ := Resolve(name)
		second, _ := Resolve(string(first))
		assert.Equal(t, first, second, name)
	}
}

func TestCatalogIsSafe(t *testing.T) {
	for _, m := range Catalog() {
		assert.True(t, IsSafe(m), string(m))
	}
	assert.True(t, IsSafe(Default))
}
