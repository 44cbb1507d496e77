package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadProfilesBuiltins(t *testing.T) {
	profiles, err := loadProfiles("")
	if err != nil {
		t.Fatalf("loadProfiles: %v", err)
	}
	for _, name := range []string{"fanout", "chain", "churn", "batch"} {
		p, ok := profiles[name]
		if !ok {
			t.Errorf("missing builtin profile %q", name)
			continue
		}
		if err := p.validate(); err != nil {
			t.Errorf("builtin %q invalid: %v", name, err)
		}
	}
}

func TestLoadProfilesFileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := `profiles:
  - name: fanout
    scenario: fanout
    width: 10
    iterations: 5
  - name: custom
    scenario: chain
    width: 3
    iterations: 7
    batch_size: 2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	profiles, err := loadProfiles(path)
	if err != nil {
		t.Fatalf("loadProfiles: %v", err)
	}

	if got := profiles["fanout"].Width; got != 10 {
		t.Errorf("fanout width = %d, want override 10", got)
	}
	custom, ok := profiles["custom"]
	if !ok {
		t.Fatal("custom profile not loaded")
	}
	if custom.Scenario != scenarioChain || custom.Width != 3 || custom.Iterations != 7 || custom.BatchSize != 2 {
		t.Errorf("custom profile = %+v", custom)
	}
}

func TestLoadProfilesRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing name": `profiles:
  - scenario: fanout
    width: 1
    iterations: 1
`,
		"unknown scenario": `profiles:
  - name: bad
    scenario: spiral
    width: 1
    iterations: 1
`,
		"zero width": `profiles:
  - name: bad
    scenario: fanout
    width: 0
    iterations: 1
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "profiles.yaml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := loadProfiles(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestRunProfileSmall(t *testing.T) {
	for _, scenario := range []string{scenarioFanout, scenarioChain, scenarioChurn} {
		t.Run(scenario, func(t *testing.T) {
			report, err := runProfile(Profile{
				Name:       "small-" + scenario,
				Scenario:   scenario,
				Width:      4,
				Iterations: 8,
			})
			if err != nil {
				t.Fatalf("runProfile: %v", err)
			}
			if report.Iterations != 8 {
				t.Errorf("iterations = %d, want 8", report.Iterations)
			}
			if report.EffectRuns == 0 {
				t.Error("expected effect runs to be recorded")
			}
			if report.LatencyUS.Max < report.LatencyUS.Min {
				t.Errorf("latency max %.1f < min %.1f", report.LatencyUS.Max, report.LatencyUS.Min)
			}
		})
	}
}
