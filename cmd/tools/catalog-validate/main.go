// cmd/tools/catalog-validate/main.go
package main

import (
	stderrors "errors"
	"flag"
	"fmt"
	"os"
	"sort"

	"haptic-trainer/internal/common/config"
	apperrors "haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/jigsaws"
	"haptic-trainer/pkg/catalog"
)

func main() {
	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	showCmd := flag.NewFlagSet("show", flag.ExitOnError)

	checkCfg := catalogFlags(checkCmd)
	showCfg := catalogFlags(showCmd)

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "check":
		checkCmd.Parse(os.Args[2:])
		cat, err := load(*checkCfg)
		if err != nil {
			os.Exit(1)
		}
		gestures := 0
		baselines := 0
		for _, task := range cat.Tasks {
			gestures += len(task.Gestures)
			baselines += len(task.Baselines)
		}
		fmt.Printf("Catalog validation passed. Found %d tasks, %d gestures, %d baselines, %d device profiles.\n",
			len(cat.Tasks), gestures, baselines, len(cat.Profiles))

	case "show":
		showCmd.Parse(os.Args[2:])
		cat, err := load(*showCfg)
		if err != nil {
			os.Exit(1)
		}
		show(cat)

	case "help":
		fallthrough
	default:
		help()
	}
}

func catalogFlags(fs *flag.FlagSet) *config.CatalogConfig {
	cfg := &config.CatalogConfig{}
	fs.StringVar(&cfg.Path, "catalog", "configs/tasks.yaml", "Path to the task catalog")
	fs.StringVar(&cfg.SchemaDir, "schemas", "configs/schemas", "Directory holding the JSON schemas")
	fs.StringVar(&cfg.ProfileDir, "profiles", "configs/devices", "Directory holding device profiles (empty to skip)")
	return cfg
}

func load(cfg config.CatalogConfig) (*catalog.Catalog, error) {
	cat, err := catalog.Load(cfg)
	if err != nil {
		var stdErr *apperrors.StandardError
		if stderrors.As(err, &stdErr) && stdErr.Details != "" {
			fmt.Printf("Catalog validation failed: %s\n", stdErr.Details)
		} else {
			fmt.Printf("Catalog validation failed: %v\n", err)
		}
		return nil, err
	}
	return cat, nil
}

func show(cat *catalog.Catalog) {
	fmt.Printf("Catalog version %s\n\n", cat.Version)
	for _, name := range cat.TaskNames() {
		task, _ := cat.Task(name)
		fmt.Printf("%s  (%s)\n", task.Name, jigsaws.DescribeTask(task.Name))
		fmt.Printf("  guidance: mode=%s stiffness=[%.2f, %.2f] damping=%.2f\n",
			task.Guidance.Mode, task.Guidance.StiffnessMin, task.Guidance.StiffnessMax,
			task.Guidance.DampingRatio)

		fmt.Printf("  gestures:\n")
		for _, gesture := range task.Gestures {
			fmt.Printf("    %-4s %s\n", jigsaws.GestureLabel(gesture.ID), gesture.Label)
		}

		metrics := make([]string, 0, len(task.Baselines))
		for metric := range task.Baselines {
			metrics = append(metrics, metric)
		}
		sort.Strings(metrics)
		fmt.Printf("  baselines:\n")
		for _, metric := range metrics {
			b := task.Baselines[metric]
			fmt.Printf("    %-16s expert %.2f±%.2f  novice %.2f±%.2f\n",
				metric, b.ExpertMean, b.ExpertStd, b.NoviceMean, b.NoviceStd)
		}
		fmt.Println()
	}

	if len(cat.Profiles) > 0 {
		fmt.Println("Device profiles:")
		for _, profile := range cat.Profiles {
			fmt.Printf("  %-12s %s  max %.1fN  %dHz\n",
				profile.Name, profile.Model, profile.MaxForceN, profile.NominalRateHz)
		}
	}
}

func help() {
	fmt.Println(`
Usage: catalog-validate <command> [flags]

Commands:
  check  Validate the task catalog and device profiles against their schemas
  show   Print the catalog contents
  help   Show this help message

Examples:
  catalog-validate check
  catalog-validate check -catalog configs/tasks.yaml -schemas configs/schemas
  catalog-validate show -profiles ""

Use 'catalog-validate <command> -h' for more information about a command.
`)
}
