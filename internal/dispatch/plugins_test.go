package dispatch

import (
	"os"
	"path/filepath"
	"testing"

	"zolo/internal/cache"
)

const upperPlugin = `package main

import "strings"

func Exports() map[string]func(...interface{}) (interface{}, error) {
	return map[string]func(...interface{}) (interface{}, error){
		"upper": func(args ...interface{}) (interface{}, error) {
			s, _ := args[0].(string)
			return strings.ToUpper(s), nil
		},
	}
}
`

const brokenPlugin = `package main

import "os"

func Exports() map[string]func(...interface{}) (interface{}, error) {
	_ = os.Getenv
	return nil
}
`

func TestLoadPluginsRegistersExports(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "upper.go"), []byte(upperPlugin), 0o644); err != nil {
		t.Fatal(err)
	}
	// Non-Go files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry()
	if err := reg.LoadPlugins(cache.NewPluginCache(4), dir); err != nil {
		t.Fatalf("LoadPlugins: %v", err)
	}
	out, err := reg.Call("upper", "ada")
	if err != nil {
		t.Fatalf("Call(upper): %v", err)
	}
	if out != "ADA" {
		t.Errorf("upper = %v", out)
	}
}

func TestLoadPluginsSkipsBrokenModules(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.go"), []byte(brokenPlugin), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "upper.go"), []byte(upperPlugin), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry()
	if err := reg.LoadPlugins(cache.NewPluginCache(4), dir); err != nil {
		t.Fatalf("LoadPlugins: %v", err)
	}
	if _, err := reg.Call("upper", "x"); err != nil {
		t.Errorf("good plugin lost to a bad neighbour: %v", err)
	}
}

func TestLoadPluginsMissingDirIsQuiet(t *testing.T) {
	reg := NewRegistry()
	if err := reg.LoadPlugins(cache.NewPluginCache(4), filepath.Join(t.TempDir(), "plugins")); err != nil {
		t.Fatalf("LoadPlugins on missing dir: %v", err)
	}
	if n := len(reg.Names()); n != 0 {
		t.Errorf("registry should stay empty, has %d entries", n)
	}
}
