package record

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed fixtures/demo.yaml
var demoFixture []byte

type fixtureFile struct {
	Customers []Customer `json:"customers" yaml:"customers"`
}

// LoadFile reads a customer dataset from a .json, .yaml or .yml file.
func LoadFile(path string) ([]Customer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var f fixtureFile
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("decode fixture %s: %w", path, err)
		}
		return validateFixture(f.Customers)
	case ".yaml", ".yml":
		return parseYAML(raw)
	default:
		return nil, fmt.Errorf("unsupported fixture extension %q", filepath.Ext(path))
	}
}

// DemoCustomers returns the bundled demo dataset.
func DemoCustomers() ([]Customer, error) {
	return parseYAML(demoFixture)
}

func parseYAML(raw []byte) ([]Customer, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode yaml fixture: %w", err)
	}
	return validateFixture(f.Customers)
}

func validateFixture(customers []Customer) ([]Customer, error) {
	seenCustomers := make(map[string]struct{}, len(customers))
	seenAccounts := make(map[string]string)
	for _, c := range customers {
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("fixture customer without id")
		}
		if _, dup := seenCustomers[c.ID]; dup {
			return nil, fmt.Errorf("duplicate customer %s", c.ID)
		}
		seenCustomers[c.ID] = struct{}{}
		for _, a := range c.Accounts {
			if owner, dup := seenAccounts[a.Number]; dup {
				return nil, fmt.Errorf("account %s owned by both %s and %s", a.Number, owner, c.ID)
			}
			seenAccounts[a.Number] = c.ID
		}
	}
	return customers, nil
}
