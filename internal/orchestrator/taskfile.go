package orchestrator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TaskFile is the on-disk shape of an externally supplied plan: a goal and
// the ordered (agent, task, need) list that seeds the initial steps.
type TaskFile struct {
	Goal  string     `yaml:"goal"`
	Tasks []TaskSpec `yaml:"tasks"`
}

// LoadTaskFile reads a YAML task file. Dependency entries may be written as
// a scalar or a list, with int or string ids.
func LoadTaskFile(path string) (*TaskFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}
	var tf TaskFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse task file: %w", err)
	}
	if tf.Goal == "" {
		return nil, fmt.Errorf("task file %s has no goal", path)
	}
	if len(tf.Tasks) == 0 {
		return nil, fmt.Errorf("task file %s has no tasks", path)
	}
	return &tf, nil
}
