package embedded

import (
	"embed"
)

// Prompts holds the prompt templates. shape.tmpl defines the shared
// "shape" template used by the others.
//
//go:embed data/prompts/*.tmpl
var Prompts embed.FS

// PromptGlob matches every template in Prompts.
const PromptGlob = "data/prompts/*.tmpl"
