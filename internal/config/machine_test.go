package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestLoadMachineFactsDetectsAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine.yaml")

	facts, err := LoadMachineFacts(path)
	if err != nil {
		t.Fatalf("LoadMachineFacts: %v", err)
	}
	if facts.OS != runtime.GOOS || facts.Arch != runtime.GOARCH {
		t.Errorf("detected facts = %+v", facts)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("first load must persist the facts file: %v", err)
	}

	// A hand-edited file is read back verbatim, not re-detected.
	edited := &MachineFacts{Editor: "vi", OS: "plan9", CPUs: 1}
	if err := edited.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	again, err := LoadMachineFacts(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Editor != "vi" || again.OS != "plan9" || again.CPUs != 1 {
		t.Errorf("reloaded facts = %+v", again)
	}
}

func TestLoadMachineFactsRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine.yaml")
	if err := os.WriteFile(path, []byte("editor: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadMachineFacts(path); err == nil {
		t.Error("malformed facts file must error, not silently re-detect")
	}
}
