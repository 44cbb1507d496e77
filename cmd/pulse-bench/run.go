package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulse-go/pulse/pkg/pulse"
)

type runConfig struct {
	Profile     string
	ProfileFile string
	Iterations  int
	JSONOutput  string
}

func runCmd() *cobra.Command {
	var cfg runConfig

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a workload profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := loadProfiles(cfg.ProfileFile)
			if err != nil {
				return err
			}
			profile, ok := profiles[cfg.Profile]
			if !ok {
				return fmt.Errorf("unknown profile %q (see pulse-bench profiles)", cfg.Profile)
			}
			if cfg.Iterations > 0 {
				profile.Iterations = cfg.Iterations
			}

			report, err := runProfile(profile)
			if err != nil {
				return err
			}

			writeSummary(os.Stderr, report)
			if cfg.JSONOutput != "" {
				if err := writeJSON(cfg.JSONOutput, report); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.Profile, "profile", "p", "fanout", "Profile to run")
	cmd.Flags().StringVarP(&cfg.ProfileFile, "file", "f", "", "YAML file with additional profiles")
	cmd.Flags().IntVarP(&cfg.Iterations, "iterations", "n", 0, "Override profile iteration count")
	cmd.Flags().StringVarP(&cfg.JSONOutput, "json", "j", "", "Write the report to this file as JSON")

	return cmd
}

type benchReport struct {
	Profile    string      `json:"profile"`
	Scenario   string      `json:"scenario"`
	Width      int         `json:"width"`
	Iterations int         `json:"iterations"`
	ElapsedMS  float64     `json:"elapsed_ms"`
	FlushesSec float64     `json:"flushes_per_sec"`
	LatencyUS  latencyInfo `json:"flush_latency_us"`
	AllocsPer  float64     `json:"allocs_per_flush"`
	EffectRuns uint64      `json:"effect_runs"`
	Recomputes uint64      `json:"recomputes"`
}

type latencyInfo struct {
	Min float64 `json:"min"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

// runProfile builds the graph, drives it for the configured iterations, and
// collects per-flush latencies.
func runProfile(profile Profile) (benchReport, error) {
	if err := profile.validate(); err != nil {
		return benchReport{}, err
	}

	// The harness flushes explicitly; the background flusher would race
	// the latency clock.
	pulse.Configure(pulse.Config{AutoFlush: false})
	defer pulse.Configure(pulse.DefaultConfig())

	var iterate func(i int)
	var dispose func()

	switch profile.Scenario {
	case scenarioFanout:
		iterate, dispose = buildFanout(profile.Width)
	case scenarioChain:
		iterate, dispose = buildChain(profile.Width)
	case scenarioChurn:
		iterate, dispose = buildChurn(profile.Width)
	}
	defer dispose()

	before := pulse.Snapshot()
	var memBefore runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&memBefore)

	latencies := make([]time.Duration, 0, profile.Iterations)
	start := time.Now()

	for i := 0; i < profile.Iterations; i++ {
		if profile.BatchSize > 1 {
			pulse.Batch(func() {
				for j := 0; j < profile.BatchSize; j++ {
					iterate(i*profile.BatchSize + j)
				}
			})
		} else {
			iterate(i)
		}

		flushStart := time.Now()
		if err := pulse.FlushSync(); err != nil {
			return benchReport{}, fmt.Errorf("flush %d: %w", i, err)
		}
		latencies = append(latencies, time.Since(flushStart))
	}

	elapsed := time.Since(start)
	var memAfter runtime.MemStats
	runtime.ReadMemStats(&memAfter)
	after := pulse.Snapshot()

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	us := func(d time.Duration) float64 { return float64(d.Nanoseconds()) / 1e3 }
	report := benchReport{
		Profile:    profile.Name,
		Scenario:   profile.Scenario,
		Width:      profile.Width,
		Iterations: profile.Iterations,
		ElapsedMS:  float64(elapsed.Nanoseconds()) / 1e6,
		FlushesSec: float64(len(latencies)) / elapsed.Seconds(),
		LatencyUS: latencyInfo{
			Min: us(latencies[0]),
			P50: us(percentile(latencies, 0.50)),
			P95: us(percentile(latencies, 0.95)),
			P99: us(percentile(latencies, 0.99)),
			Max: us(latencies[len(latencies)-1]),
		},
		AllocsPer:  float64(memAfter.Mallocs-memBefore.Mallocs) / float64(len(latencies)),
		EffectRuns: after.EffectRuns - before.EffectRuns,
		Recomputes: after.Recomputes - before.Recomputes,
	}
	return report, nil
}

// buildFanout wires one signal into width effects.
func buildFanout(width int) (iterate func(int), dispose func()) {
	var source *pulse.Signal[int]
	dispose = pulse.CreateRoot(func(d func()) func() {
		source = pulse.NewSignal(0)
		for i := 0; i < width; i++ {
			pulse.CreateEffect(func() pulse.Cleanup {
				_ = source.Get()
				return nil
			})
		}
		return d
	})
	iterate = func(i int) {
		source.Set(i)
	}
	return iterate, dispose
}

// buildChain wires a signal through width chained computeds into one effect.
func buildChain(width int) (iterate func(int), dispose func()) {
	var source *pulse.Signal[int]
	dispose = pulse.CreateRoot(func(d func()) func() {
		source = pulse.NewSignal(0)
		prev := pulse.NewComputed(func() int { return source.Get() + 1 })
		for i := 1; i < width; i++ {
			p := prev
			prev = pulse.NewComputed(func() int { return p.Get() + 1 })
		}
		tail := prev
		pulse.CreateEffect(func() pulse.Cleanup {
			_ = tail.Get()
			return nil
		})
		return d
	})
	iterate = func(i int) {
		source.Set(i)
	}
	return iterate, dispose
}

// buildChurn creates and disposes width effects per iteration.
func buildChurn(width int) (iterate func(int), dispose func()) {
	var source *pulse.Signal[int]
	rootDispose := pulse.CreateRoot(func(d func()) func() {
		source = pulse.NewSignal(0)
		return d
	})
	iterate = func(i int) {
		inner := pulse.CreateRoot(func(d func()) func() {
			for j := 0; j < width; j++ {
				pulse.CreateEffect(func() pulse.Cleanup {
					_ = source.Get()
					return nil
				})
			}
			return d
		})
		source.Set(i)
		inner()
	}
	return iterate, rootDispose
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func writeSummary(w io.Writer, report benchReport) {
	fmt.Fprintf(w, "Profile: %s (%s)\n", report.Profile, report.Scenario)
	fmt.Fprintf(w, "Width: %d\n", report.Width)
	fmt.Fprintf(w, "Iterations: %d\n", report.Iterations)
	fmt.Fprintf(w, "Elapsed: %.1f ms\n", report.ElapsedMS)
	fmt.Fprintf(w, "Flushes: %.1f /s\n", report.FlushesSec)
	fmt.Fprintf(w, "Effect runs: %d\n", report.EffectRuns)
	fmt.Fprintf(w, "Recomputes: %d\n", report.Recomputes)
	fmt.Fprintf(w, "Allocations per flush: %.1f\n", report.AllocsPer)
	fmt.Fprintln(w, "Flush latency:")
	fmt.Fprintf(w, "  min: %.1f us\n", report.LatencyUS.Min)
	fmt.Fprintf(w, "  p50: %.1f us\n", report.LatencyUS.P50)
	fmt.Fprintf(w, "  p95: %.1f us\n", report.LatencyUS.P95)
	fmt.Fprintf(w, "  p99: %.1f us\n", report.LatencyUS.P99)
	fmt.Fprintf(w, "  max: %.1f us\n", report.LatencyUS.Max)
}

func writeJSON(path string, report benchReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
