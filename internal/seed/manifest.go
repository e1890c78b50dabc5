package seed

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	herrors "github.com/canonica-labs/testrig/internal/errors"
)

//go:embed manifests/default.yaml
var defaultManifestYAML []byte

// Manifest lists the datasets to load into the example database.
// Manifests are declarative, versionable, and schema-validated:
// unknown fields MUST fail.
type Manifest struct {
	Datasets []Dataset `yaml:"datasets"`
}

// Dataset is one example dataset: a table plus its rows.
type Dataset struct {
	// Name is the dataset name. It must match the unqualified name of
	// the table the create statement builds.
	Name string `yaml:"name"`

	// Create is the CREATE TABLE statement.
	Create string `yaml:"create"`

	// Inserts are the INSERT statements loading the rows. Every insert
	// must target the table the create statement builds.
	Inserts []string `yaml:"inserts,omitempty"`
}

// DefaultManifest parses the embedded manifest of standard example
// datasets (birth_names, energy_usage, unicode_test).
func DefaultManifest() (*Manifest, error) {
	return parseManifest(defaultManifestYAML, "embedded default manifest")
}

// LoadManifest loads and validates a manifest from a YAML file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, herrors.NewSeedFailed("datasets", fmt.Errorf("cannot read manifest: %w", err))
	}
	return parseManifest(data, path)
}

func parseManifest(data []byte, source string) (*Manifest, error) {
	// First pass: check for unknown fields using strict unmarshal
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, herrors.NewSeedFailed("datasets",
			fmt.Errorf("cannot parse %s: %w", source, err))
	}

	knownKeys := map[string]bool{"datasets": true}
	for key := range raw {
		if !knownKeys[key] {
			return nil, herrors.NewSeedFailed("datasets",
				fmt.Errorf("%s: unknown manifest key: %s", source, key))
		}
	}

	// Validate dataset entries have only known keys
	if rawDatasets, ok := raw["datasets"].([]interface{}); ok {
		dsKnownKeys := map[string]bool{"name": true, "create": true, "inserts": true}
		for i, rawEntry := range rawDatasets {
			entry, ok := rawEntry.(map[string]interface{})
			if !ok {
				continue
			}
			for key := range entry {
				if !dsKnownKeys[key] {
					return nil, herrors.NewSeedFailed("datasets",
						fmt.Errorf("%s: dataset %d: unknown manifest key: %s", source, i, key))
				}
			}
		}
	}

	// Second pass: unmarshal into the typed manifest
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, herrors.NewSeedFailed("datasets",
			fmt.Errorf("cannot unmarshal %s: %w", source, err))
	}

	if len(m.Datasets) == 0 {
		return nil, herrors.NewSeedFailed("datasets",
			fmt.Errorf("%s: manifest has no datasets", source))
	}

	for i := range m.Datasets {
		if err := m.Datasets[i].validate(); err != nil {
			return nil, herrors.NewSeedFailed("datasets",
				fmt.Errorf("%s: %w", source, err))
		}
	}

	return &m, nil
}

// validate parses the dataset's statements and checks that they all
// target the dataset's own table.
func (d *Dataset) validate() error {
	if d.Name == "" {
		return fmt.Errorf("dataset has no name")
	}
	if d.Create == "" {
		return fmt.Errorf("dataset %s: missing create statement", d.Name)
	}

	create, err := ParseStatement(d.Create)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", d.Name, err)
	}
	if create.Kind != StatementCreate {
		return fmt.Errorf("dataset %s: create entry is not a CREATE TABLE", d.Name)
	}
	if bareName(create.Table) != d.Name {
		return fmt.Errorf("dataset %s: create statement builds table %s", d.Name, create.Table)
	}

	for i, insert := range d.Inserts {
		stmt, err := ParseStatement(insert)
		if err != nil {
			return fmt.Errorf("dataset %s: insert %d: %w", d.Name, i, err)
		}
		if stmt.Kind != StatementInsert {
			return fmt.Errorf("dataset %s: insert %d is not an INSERT", d.Name, i)
		}
		if stmt.Table != create.Table {
			return fmt.Errorf("dataset %s: insert %d targets table %s, not %s",
				d.Name, i, stmt.Table, create.Table)
		}
	}

	return nil
}
