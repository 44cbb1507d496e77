package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Scenario names accepted in a profile.
const (
	scenarioFanout = "fanout"
	scenarioChain  = "chain"
	scenarioChurn  = "churn"
)

// Profile describes one synthetic workload.
type Profile struct {
	Name string `yaml:"name"`

	// Scenario selects the graph shape: fanout, chain, or churn.
	Scenario string `yaml:"scenario"`

	// Width is the fan-out degree (fanout), chain depth (chain), or the
	// number of effects created and disposed per iteration (churn).
	Width int `yaml:"width"`

	// Iterations is the number of write+flush cycles to run.
	Iterations int `yaml:"iterations"`

	// BatchSize groups this many writes per flush. Zero means one write
	// per flush.
	BatchSize int `yaml:"batch_size"`
}

func (p Profile) validate() error {
	switch p.Scenario {
	case scenarioFanout, scenarioChain, scenarioChurn:
	default:
		return fmt.Errorf("profile %q: unknown scenario %q", p.Name, p.Scenario)
	}
	if p.Width <= 0 {
		return fmt.Errorf("profile %q: width must be positive", p.Name)
	}
	if p.Iterations <= 0 {
		return fmt.Errorf("profile %q: iterations must be positive", p.Name)
	}
	return nil
}

func builtinProfiles() map[string]Profile {
	return map[string]Profile{
		"fanout": {
			Name:       "fanout",
			Scenario:   scenarioFanout,
			Width:      1000,
			Iterations: 1000,
		},
		"chain": {
			Name:       "chain",
			Scenario:   scenarioChain,
			Width:      100,
			Iterations: 10000,
		},
		"churn": {
			Name:       "churn",
			Scenario:   scenarioChurn,
			Width:      100,
			Iterations: 1000,
		},
		"batch": {
			Name:       "batch",
			Scenario:   scenarioFanout,
			Width:      1000,
			Iterations: 1000,
			BatchSize:  100,
		},
	}
}

// profileFile is the YAML document shape: a list of profiles.
type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// loadProfiles returns the built-in profiles, with entries from path merged
// over them when path is non-empty.
func loadProfiles(path string) (map[string]Profile, error) {
	profiles := builtinProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	for _, p := range file.Profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("profile in %s is missing a name", path)
		}
		if err := p.validate(); err != nil {
			return nil, err
		}
		profiles[p.Name] = p
	}
	return profiles, nil
}

func profilesCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List available workload profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := loadProfiles(file)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(profiles))
			for name := range profiles {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				p := profiles[name]
				fmt.Printf("%-12s scenario=%-7s width=%-6d iterations=%-7d",
					name, p.Scenario, p.Width, p.Iterations)
				if p.BatchSize > 0 {
					fmt.Printf(" batch=%d", p.BatchSize)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with additional profiles")

	return cmd
}
