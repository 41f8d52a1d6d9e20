package ingest

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tickvault/pkg/confkit"
)

// Plan describes what an ingestion run writes: the targets to feed, the
// symbols each one covers, and the write knobs shared across targets.
type Plan struct {
	BatchSize int           `yaml:"batch_size"`
	Targets   []*TargetPlan `yaml:"targets"`
}

// TargetPlan configures one write target.
type TargetPlan struct {
	Name    string   `yaml:"name"`
	Symbols []string `yaml:"symbols"`

	// GapLookbackRaw bounds how far back FindGaps scans for this target.
	GapLookbackRaw string        `yaml:"gap_lookback"`
	GapLookback    time.Duration `yaml:"-"`
}

// LoadPlan reads an ingestion plan from disk.
func LoadPlan(path string) (*Plan, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ingest plan: %w", err)
	}
	defer file.Close()
	return LoadPlanFromReader(file)
}

// LoadPlanFromReader constructs a Plan from an io.Reader.
func LoadPlanFromReader(r io.Reader) (*Plan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read ingest plan: %w", err)
	}
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("unmarshal ingest plan: %w", err)
	}
	if err := plan.normalise(); err != nil {
		return nil, err
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (p *Plan) normalise() error {
	if p.BatchSize == 0 {
		p.BatchSize = defaultBatchSize
	}
	for _, target := range p.Targets {
		if target == nil {
			continue
		}
		target.Name = strings.TrimSpace(os.ExpandEnv(target.Name))
		for i, symbol := range target.Symbols {
			target.Symbols[i] = strings.ToUpper(strings.TrimSpace(os.ExpandEnv(symbol)))
		}
		if raw := strings.TrimSpace(os.ExpandEnv(target.GapLookbackRaw)); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("ingest plan: target %s: parse gap_lookback %q: %w", target.Name, raw, err)
			}
			target.GapLookback = d
		}
	}
	return nil
}

// Validate rejects plans that cannot drive a run.
func (p *Plan) Validate() error {
	if p.BatchSize < 0 {
		return fmt.Errorf("ingest plan: batch_size must not be negative")
	}
	if len(p.Targets) == 0 {
		return fmt.Errorf("ingest plan: at least one target is required")
	}
	seen := make(map[string]struct{}, len(p.Targets))
	for i, target := range p.Targets {
		if target == nil || target.Name == "" {
			return fmt.Errorf("ingest plan: target %d: name is required", i)
		}
		if _, dup := seen[target.Name]; dup {
			return fmt.Errorf("ingest plan: duplicate target %s", target.Name)
		}
		seen[target.Name] = struct{}{}
		if target.GapLookback < 0 {
			return fmt.Errorf("ingest plan: target %s: gap_lookback must not be negative", target.Name)
		}
	}
	return nil
}

// Target returns the plan entry for a target name, or nil.
func (p *Plan) Target(name string) *TargetPlan {
	for _, target := range p.Targets {
		if target != nil && target.Name == name {
			return target
		}
	}
	return nil
}
