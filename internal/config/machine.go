package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"zolo/internal/logging"
)

// MachineFacts is the per-machine YAML of detected system facts. Written
// once on first run, then read back; the user may edit it by hand.
type MachineFacts struct {
	Editor  string `yaml:"editor"`
	Browser string `yaml:"browser"`
	OS      string `yaml:"os"`
	Arch    string `yaml:"arch"`
	CPUs    int    `yaml:"cpus"`
	RAMMB   int    `yaml:"ram_mb"`
	GPU     string `yaml:"gpu"`
	Network string `yaml:"network"`
}

// DetectMachineFacts gathers what can be read cheaply from the runtime and
// environment. Fields with no cheap source stay empty for the user.
func DetectMachineFacts() *MachineFacts {
	return &MachineFacts{
		Editor:  firstEnv("VISUAL", "EDITOR"),
		Browser: os.Getenv("BROWSER"),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
		CPUs:    runtime.NumCPU(),
	}
}

// LoadMachineFacts reads the facts file, detecting and writing it when it
// does not exist yet.
func LoadMachineFacts(path string) (*MachineFacts, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		facts := DetectMachineFacts()
		if werr := facts.Save(path); werr != nil {
			logging.Config("Could not persist machine facts: %v", werr)
		}
		return facts, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read machine facts %s: %w", path, err)
	}
	facts := &MachineFacts{}
	if err := yaml.Unmarshal(data, facts); err != nil {
		return nil, fmt.Errorf("parse machine facts %s: %w", path, err)
	}
	return facts, nil
}

// Save writes the facts to path.
func (m *MachineFacts) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
