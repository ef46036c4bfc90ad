package model

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
)

// ModelDescriptor describes a completion model users may pick.
type ModelDescriptor struct {
	ID       string `toml:"id" json:"id"`
	Name     string `toml:"name" json:"name"`
	Provider string `toml:"provider" json:"provider"`
	Vision   bool   `toml:"vision" json:"vision"`
}

// Catalog is the fixed set of selectable models.
type Catalog struct {
	Default string            `toml:"default" json:"default"`
	Models  []ModelDescriptor `toml:"models" json:"models"`
}

// DefaultCatalog is used when no catalog file is configured.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Default: "google/gemini-2.0-flash-exp:free",
		Models: []ModelDescriptor{
			{ID: "meta-llama/llama-3.2-3b-instruct:free", Name: "Llama 3.2 3B", Provider: "Meta", Vision: false},
			{ID: "google/gemini-2.0-flash-exp:free", Name: "Gemini 2.0 Flash", Provider: "Google", Vision: true},
			{ID: "deepseek/deepseek-chat-v3.1:free", Name: "DeepSeek V3.1", Provider: "DeepSeek", Vision: false},
			{ID: "qwen/qwen2.5-vl-32b-instruct:free", Name: "Qwen 2.5 VL 32B", Provider: "Qwen", Vision: true},
			{ID: "nvidia/nemotron-nano-12b-v2-vl:free", Name: "Nemotron Nano 12B VL", Provider: "NVIDIA", Vision: true},
			{ID: "meta-llama/llama-4-maverick:free", Name: "Llama 4 Maverick", Provider: "Meta", Vision: true},
		},
	}
}

// LoadCatalog reads a TOML catalog from path, or returns DefaultCatalog when path is empty.
//
//	default = "google/gemini-2.0-flash-exp:free"
//
//	[[models]]
//	id = "google/gemini-2.0-flash-exp:free"
//	name = "Gemini 2.0 Flash"
//	provider = "Google"
//	vision = true
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	var c Catalog
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, fmt.Errorf("failed to read model catalog %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid model catalog %s: %w", path, err)
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Models) == 0 {
		return errors.New("no models defined")
	}
	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if m.ID == "" {
			return errors.New("model without id")
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate model %q", m.ID)
		}
		seen[m.ID] = true
	}
	if c.Default == "" {
		c.Default = c.Models[0].ID
	}
	if !seen[c.Default] {
		return fmt.Errorf("default model %q is not in the catalog", c.Default)
	}
	return nil
}

func (c *Catalog) Find(id string) (ModelDescriptor, bool) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelDescriptor{}, false
}
