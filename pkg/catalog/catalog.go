// pkg/catalog/catalog.go

// Package catalog loads the task catalog and the shipped device profiles.
// The catalog declares which training tasks exist, their gesture
// vocabularies, shipped expert baselines, and per-task guidance defaults.
// Both the YAML catalog and the profile JSONs are checked against JSON
// schemas before anything trusts them; a catalog that fails validation is a
// deployment error, not a runtime condition.
package catalog

import (
	"sort"

	"haptic-trainer/internal/device"
)

// Catalog is a validated task catalog plus the device profile library.
type Catalog struct {
	Version  string
	Tasks    []Task
	Profiles []device.Profile

	byTask    map[string]*Task
	byProfile map[string]*device.Profile
}

// Task describes one training exercise.
type Task struct {
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	Gestures    []Gesture           `yaml:"gestures"`
	Baselines   map[string]Baseline `yaml:"baselines"`
	Guidance    Guidance            `yaml:"guidance"`
}

// Gesture is one entry of a task's gesture vocabulary.
type Gesture struct {
	ID    int    `yaml:"id"`
	Label string `yaml:"label"`
}

// Baseline holds the shipped performance distributions for one headline
// metric. These seed the scoring pipeline until imported expert recordings
// replace them.
type Baseline struct {
	ExpertMean float64 `yaml:"expert_mean"`
	ExpertStd  float64 `yaml:"expert_std"`
	NoviceMean float64 `yaml:"novice_mean"`
	NoviceStd  float64 `yaml:"novice_std"`
}

// Guidance carries the per-task stiffness defaults. Fields left at zero fall
// back to the daemon's global control configuration.
type Guidance struct {
	Mode         string  `yaml:"mode"`
	StiffnessMin float64 `yaml:"stiffness_min"`
	StiffnessMax float64 `yaml:"stiffness_max"`
	DampingRatio float64 `yaml:"damping_ratio"`
}

// Task looks up a task by name.
func (c *Catalog) Task(name string) (*Task, bool) {
	t, ok := c.byTask[name]
	return t, ok
}

// TaskNames returns the declared task names, sorted.
func (c *Catalog) TaskNames() []string {
	names := make([]string, 0, len(c.byTask))
	for name := range c.byTask {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profile looks up a shipped device profile by name.
func (c *Catalog) Profile(name string) (device.Profile, bool) {
	p, ok := c.byProfile[name]
	if !ok {
		return device.Profile{}, false
	}
	return *p, true
}

func (c *Catalog) index() {
	c.byTask = make(map[string]*Task, len(c.Tasks))
	for i := range c.Tasks {
		c.byTask[c.Tasks[i].Name] = &c.Tasks[i]
	}
	c.byProfile = make(map[string]*device.Profile, len(c.Profiles))
	for i := range c.Profiles {
		c.byProfile[c.Profiles[i].Name] = &c.Profiles[i]
	}
}
