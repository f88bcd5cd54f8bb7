// pkg/catalog/load.go
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"haptic-trainer/internal/common/config"
	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/device"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// catalogFile is the raw shape of tasks.yaml.
type catalogFile struct {
	Version string `yaml:"version"`
	Tasks   []Task `yaml:"tasks"`
}

// Load reads the task catalog and device profile library, validating both
// against the shipped JSON schemas. Any failure is fatal to the caller;
// nothing downstream tolerates a partial catalog.
func Load(cfg config.CatalogConfig) (*Catalog, error) {
	raw, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("read task catalog: %w", err)
	}
	schemaBytes, err := os.ReadFile(filepath.Join(cfg.SchemaDir, TasksSchemaFile))
	if err != nil {
		return nil, fmt.Errorf("read catalog schema: %w", err)
	}

	// YAML carries no schema tooling of its own, so the document passes
	// through the JSON schema as a generic map.
	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.NewCatalogInvalidError(fmt.Sprintf("%s: %v", cfg.Path, err))
	}
	if err := validateAgainstSchema(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewGoLoader(doc),
		cfg.Path,
	); err != nil {
		return nil, err
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.NewCatalogInvalidError(fmt.Sprintf("%s: %v", cfg.Path, err))
	}

	cat := &Catalog{Version: file.Version, Tasks: file.Tasks}
	if err := cat.check(cfg.Path); err != nil {
		return nil, err
	}

	if cfg.ProfileDir != "" {
		profiles, err := loadProfiles(cfg.ProfileDir, cfg.SchemaDir)
		if err != nil {
			return nil, err
		}
		cat.Profiles = profiles
	}

	cat.index()
	return cat, nil
}

// check covers the constraints the JSON schema cannot express.
func (c *Catalog) check(source string) error {
	invalid := func(format string, args ...interface{}) error {
		return errors.NewCatalogInvalidError(source + ": " + fmt.Sprintf(format, args...))
	}

	seenTasks := make(map[string]bool, len(c.Tasks))
	for _, task := range c.Tasks {
		if seenTasks[task.Name] {
			return invalid("duplicate task %q", task.Name)
		}
		seenTasks[task.Name] = true

		seenGestures := make(map[int]bool, len(task.Gestures))
		for _, gesture := range task.Gestures {
			if seenGestures[gesture.ID] {
				return invalid("task %q: duplicate gesture id %d", task.Name, gesture.ID)
			}
			seenGestures[gesture.ID] = true
		}

		for metric, baseline := range task.Baselines {
			if baseline.ExpertStd < 0 || baseline.NoviceStd < 0 {
				return invalid("task %q: baseline %s has a negative deviation", task.Name, metric)
			}
		}

		g := task.Guidance
		if g.StiffnessMax > 0 && g.StiffnessMin > g.StiffnessMax {
			return invalid("task %q: stiffness_min %v exceeds stiffness_max %v",
				task.Name, g.StiffnessMin, g.StiffnessMax)
		}
	}
	return nil
}

func loadProfiles(dir, schemaDir string) ([]device.Profile, error) {
	schemaBytes, err := os.ReadFile(filepath.Join(schemaDir, ProfileSchemaFile))
	if err != nil {
		return nil, fmt.Errorf("read profile schema: %w", err)
	}
	schema := gojsonschema.NewBytesLoader(schemaBytes)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read profile directory: %w", err)
	}

	var profiles []device.Profile
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read device profile: %w", err)
		}
		if err := validateAgainstSchema(schema, gojsonschema.NewBytesLoader(raw), path); err != nil {
			return nil, err
		}

		profile, err := device.LoadProfile(path)
		if err != nil {
			return nil, errors.NewCatalogInvalidError(err.Error())
		}
		if prev, dup := seen[profile.Name]; dup {
			return nil, errors.NewCatalogInvalidError(
				fmt.Sprintf("%s: profile name %q already declared in %s", path, profile.Name, prev))
		}
		seen[profile.Name] = path
		profiles = append(profiles, profile)
	}
	return profiles, nil
}
