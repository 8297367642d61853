// Package pipeline orchestrates the training steps: corpus preparation,
// language model and embedding training, cross-lingual mapping, phrase
// table induction, tuning and iterative backtranslation. Each step writes
// its artifacts under its own stepN/ directory inside the working
// directory, and a state file records completed steps so an interrupted
// run can resume where it stopped.
package pipeline

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

// StateFile is the name of the run state file inside the working directory.
const StateFile = "state.yaml"

// StepRecord marks one completed pipeline step.
type StepRecord struct {
	Step     int    `yaml:"step"`
	Name     string `yaml:"name"`
	Finished string `yaml:"finished"`
}

// State is the persistent record of a training run.
type State struct {
	RunID string       `yaml:"run_id"`
	Steps []StepRecord `yaml:"steps,omitempty"`
}

// LoadState reads the state file at path, starting a fresh run with a new
// id when the file does not exist yet.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &State{RunID: uuid.NewString()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state: %w", err)
	}
	st := &State{}
	if err := yaml.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}
	if st.RunID == "" {
		st.RunID = uuid.NewString()
	}
	return st, nil
}

// Save writes the state to path.
func (s *State) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	return nil
}

// Done reports whether the given step already completed in this run.
func (s *State) Done(step int) bool {
	for _, r := range s.Steps {
		if r.Step == step {
			return true
		}
	}
	return false
}

// MarkDone records the completion of a step. Marking a completed step
// again updates its timestamp.
func (s *State) MarkDone(step int, name string) {
	finished := time.Now().UTC().Format(time.RFC3339)
	for i, r := range s.Steps {
		if r.Step == step {
			s.Steps[i].Name = name
			s.Steps[i].Finished = finished
			return
		}
	}
	s.Steps = append(s.Steps, StepRecord{Step: step, Name: name, Finished: finished})
}
