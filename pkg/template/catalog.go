package template

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/reservly/flowengine/pkg/flow"
	"github.com/reservly/flowengine/pkg/models"
)

// Catalog holds the reusable flow skeletons available for instantiation.
// Built-in skeletons are registered at construction; more can be loaded
// from JSON files on disk, in the same interchange shape flows are
// exported in.
type Catalog struct {
	mu        sync.RWMutex
	templates map[string]*models.Flow
}

// NewCatalog creates a catalog pre-loaded with the built-in skeletons.
func NewCatalog() *Catalog {
	c := &Catalog{templates: make(map[string]*models.Flow)}

	for _, builtin := range builtinTemplates() {
		c.templates[builtin.ID] = builtin
	}

	return c
}

// Get returns the template with the given id, or nil.
func (c *Catalog) Get(id string) *models.Flow {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.templates[id]
}

// List returns every registered template, ordered by id.
func (c *Catalog) List() []*models.Flow {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*models.Flow, 0, len(c.templates))
	for _, tmpl := range c.templates {
		out = append(out, tmpl)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// Register adds or replaces a template. The template keeps its own id.
func (c *Catalog) Register(tmpl *models.Flow) error {
	if tmpl.ID == "" {
		return fmt.Errorf("template id is required")
	}

	tmpl.IsTemplate = true

	c.mu.Lock()
	defer c.mu.Unlock()

	c.templates[tmpl.ID] = tmpl

	return nil
}

// LoadDir registers every *.json file in dir as a template. Files are
// schema-checked before being decoded; a bad file aborts the load.
func (c *Catalog) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read template directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		payload, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", entry.Name(), err)
		}

		err = flow.ValidateDocument(payload)
		if err != nil {
			return fmt.Errorf("template file %s: %w", entry.Name(), err)
		}

		var tmpl models.Flow

		err = json.Unmarshal(payload, &tmpl)
		if err != nil {
			return fmt.Errorf("failed to unmarshal template file %s: %w", entry.Name(), err)
		}

		if tmpl.ID == "" {
			tmpl.ID = entry.Name()[:len(entry.Name())-len(".json")]
		}

		err = c.Register(&tmpl)
		if err != nil {
			return fmt.Errorf("failed to register template %s: %w", entry.Name(), err)
		}
	}

	return nil
}
