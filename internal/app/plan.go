package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/mdrun/internal/lifecycle"
)

// ErrPlanStep indicates a plan entry that names zero or several start
// conditions.
var ErrPlanStep = errors.New("app: plan step must name exactly one start condition")

// PlanStep is one entry of a YAML run plan. Exactly one of Continue,
// Structure or Restart is set.
type PlanStep struct {
	Continue  bool   `yaml:"continue,omitempty"`
	Structure string `yaml:"structure,omitempty"`
	Topology  string `yaml:"topology,omitempty"`
	Restart   string `yaml:"restart,omitempty"`
	Frame     int    `yaml:"frame,omitempty"`
}

// StartCondition converts the step; it never guesses between variants.
func (p PlanStep) StartCondition() (lifecycle.StartCondition, error) {
	set := 0
	for _, ok := range []bool{p.Continue, p.Structure != "", p.Restart != ""} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, ErrPlanStep
	}
	switch {
	case p.Continue:
		return lifecycle.Continue{}, nil
	case p.Structure != "":
		return lifecycle.FromStructure{StructureFile: p.Structure, TopologyFile: p.Topology}, nil
	default:
		return lifecycle.FromRestart{RunDir: p.Restart, Frame: p.Frame}, nil
	}
}

// LoadPlan reads a YAML list of plan steps.
func LoadPlan(path string) ([]lifecycle.StartCondition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var steps []PlanStep
	if err := yaml.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("app: plan %s: %w", path, err)
	}
	out := make([]lifecycle.StartCondition, 0, len(steps))
	for i, s := range steps {
		sc, err := s.StartCondition()
		if err != nil {
			return nil, fmt.Errorf("app: plan %s step %d: %w", path, i+1, err)
		}
		out = append(out, sc)
	}
	return out, nil
}

// RunPlan executes the start conditions in order on one runner, so later
// steps can continue from the simulation cached by earlier ones. It stops
// at the first failure.
func RunPlan(ctx context.Context, r Runner, plan []lifecycle.StartCondition) ([]*Output, error) {
	outputs := make([]*Output, 0, len(plan))
	for i, sc := range plan {
		out, err := r.Run(ctx, sc)
		if err != nil {
			return outputs, fmt.Errorf("app: plan step %d (%s): %w", i+1, sc, err)
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}
