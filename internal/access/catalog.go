package access

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed demo_identities.yaml
var demoIdentitiesYAML []byte

// Identity is the display identity shown for a demo session.
type Identity struct {
	Email string `yaml:"email" json:"email"`
	Name  string `yaml:"name" json:"name"`
	Title string `yaml:"title" json:"title"`
}

// Catalog maps each demo role to its display identity.
type Catalog map[Role]Identity

type catalogFile struct {
	Identities map[string]Identity `yaml:"identities"`
}

// ParseCatalog decodes a YAML demo identity catalog. Every session role must be present.
func ParseCatalog(data []byte) (Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode demo identities: %w", err)
	}

	catalog := make(Catalog, len(file.Identities))
	for name, identity := range file.Identities {
		role, ok := ParseRole(name)
		if !ok {
			return nil, fmt.Errorf("demo identities: unknown role %q", name)
		}
		catalog[role] = identity
	}
	for _, role := range Roles {
		if _, ok := catalog[role]; !ok {
			return nil, fmt.Errorf("demo identities: missing role %q", role)
		}
	}
	return catalog, nil
}

// DefaultCatalog returns the embedded demo identity catalog.
func DefaultCatalog() Catalog {
	catalog, err := ParseCatalog(demoIdentitiesYAML)
	if err != nil {
		panic(err)
	}
	return catalog
}

// Lookup returns the identity for role.
func (c Catalog) Lookup(role Role) (Identity, bool) {
	identity, ok := c[role]
	return identity, ok
}
