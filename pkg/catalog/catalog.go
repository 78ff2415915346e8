package catalog

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
)

// ErrCatalogConflict is returned by Build when two services declare the same
// fully qualified tool name. This is a startup-fatal condition.
var ErrCatalogConflict = fmt.Errorf("catalog conflict: duplicate tool name")

// ToolSource exposes the definitions one domain service contributes to the
// catalog. Action names are unqualified; Build applies the domain prefix.
type ToolSource interface {
	Domain() Domain
	Tools() []ToolDefinition
}

// Catalog is the read-only registry of every tool known to the host. It is
// built once at process start and safe for concurrent readers.
type Catalog struct {
	tools map[string]ToolDefinition
	names []string
}

// Build aggregates tool definitions from each source into a single catalog.
// Every resulting name must be unique; a collision fails the build with
// ErrCatalogConflict rather than being resolved by renaming.
func Build(sources ...ToolSource) (*Catalog, error) {
	c := &Catalog{tools: make(map[string]ToolDefinition)}

	for _, src := range sources {
		domain := src.Domain()
		if !domain.Valid() {
			return nil, fmt.Errorf("tool source declares unknown domain %q", domain)
		}

		for _, def := range src.Tools() {
			if def.Name == "" {
				return nil, fmt.Errorf("domain %s declares a tool with empty name", domain)
			}
			if def.Description == "" {
				return nil, fmt.Errorf("tool %s%s%s has empty description", domain, Separator, def.Name)
			}
			for _, param := range def.Parameters {
				if err := validateParameter(param); err != nil {
					return nil, fmt.Errorf("tool %s%s%s: %w", domain, Separator, def.Name, err)
				}
			}

			qualified := QualifiedName(domain, def.Name)
			if existing, exists := c.tools[qualified]; exists {
				return nil, fmt.Errorf("%w: %s declared by %s and %s",
					ErrCatalogConflict, qualified, existing.Domain, domain)
			}

			def.Name = qualified
			def.Domain = domain
			c.tools[qualified] = def
			c.names = append(c.names, qualified)
		}
	}

	sort.Strings(c.names)
	log.Info().Int("tools", len(c.names)).Msg("Tool catalog built")

	return c, nil
}

// Lookup returns the definition for a fully qualified tool name.
func (c *Catalog) Lookup(name string) (ToolDefinition, bool) {
	def, ok := c.tools[name]
	return def, ok
}

// Definitions returns all tool definitions sorted by name.
func (c *Catalog) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(c.names))
	for _, name := range c.names {
		defs = append(defs, c.tools[name])
	}
	return defs
}

// Names returns all fully qualified tool names sorted ascending.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of registered tools.
func (c *Catalog) Len() int {
	return len(c.names)
}

func validateParameter(param ToolParameter) error {
	if param.Name == "" {
		return fmt.Errorf("parameter name cannot be empty")
	}
	if param.Description == "" {
		return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}
	if !validTypes[param.Type] {
		return fmt.Errorf("invalid parameter type %q for %s", param.Type, param.Name)
	}

	return nil
}
