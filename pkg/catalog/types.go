package catalog

import "fmt"

// Domain identifies the service that owns a tool. The set is closed:
// routing decisions never see a domain that is not listed here.
type Domain string

const (
	DomainRepo        Domain = "repo"
	DomainIssue       Domain = "issue"
	DomainPR          Domain = "pr"
	DomainContributor Domain = "contributor"
	DomainScope       Domain = "scope"
)

// Separator joins a domain namespace and an action into a tool name.
const Separator = "."

// AllDomains returns every known domain in declaration order.
func AllDomains() []Domain {
	return []Domain{DomainRepo, DomainIssue, DomainPR, DomainContributor, DomainScope}
}

// Valid reports whether d is one of the known domains.
func (d Domain) Valid() bool {
	switch d {
	case DomainRepo, DomainIssue, DomainPR, DomainContributor, DomainScope:
		return true
	}
	return false
}

// ToolParameter describes a single argument accepted by a tool.
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// ToolDefinition is the immutable description of one tool. Name is fully
// qualified as "<domain>.<action>" once the catalog has prefixed it.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
	Domain      Domain          `json:"domain"`
}

// QualifiedName returns the namespaced tool name for an action owned by d.
func QualifiedName(d Domain, action string) string {
	return string(d) + Separator + action
}

// SplitName splits a fully qualified tool name into its domain prefix and
// action. It fails when the name has no separator or the prefix is not a
// known domain.
func SplitName(name string) (Domain, string, error) {
	for i := 0; i < len(name); i++ {
		if string(name[i]) == Separator {
			d := Domain(name[:i])
			action := name[i+1:]
			if !d.Valid() {
				return "", "", fmt.Errorf("unknown domain prefix %q in tool name %q", name[:i], name)
			}
			if action == "" {
				return "", "", fmt.Errorf("tool name %q has empty action", name)
			}
			return d, action, nil
		}
	}
	return "", "", fmt.Errorf("tool name %q is not namespaced", name)
}
