package zpath

import (
	"path/filepath"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw    string
		folder string
		file   string
		block  string
		err    bool
	}{
		{raw: "@.UI.zUI.index", folder: "UI", file: "zUI", block: "index"},
		{raw: "@.Apps.CRM.zLeads.pipeline", folder: "Apps.CRM", file: "zLeads", block: "pipeline"},
		{raw: " @.UI.zUI.index ", folder: "UI", file: "zUI", block: "index"},
		{raw: "", err: true},
		{raw: "@", err: true},
		{raw: "UI.zUI.index", err: true},
		{raw: "@.UI..index", err: true},
		{raw: "@.file.block", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := Parse(tt.raw)
			if tt.err {
				if err == nil {
					t.Fatalf("Parse(%q) should fail", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.raw, err)
			}
			if p.Folder() != tt.folder || p.File() != tt.file || p.Block() != tt.block {
				t.Errorf("Parse(%q) = (%q, %q, %q)", tt.raw, p.Folder(), p.File(), p.Block())
			}
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	raw := "@.Apps.CRM.zLeads.pipeline"
	p := MustParse(raw)
	if p.String() != raw {
		t.Errorf("String = %q, want %q", p.String(), raw)
	}
	if p.Scope() != raw {
		t.Errorf("Scope = %q, want %q", p.Scope(), raw)
	}
}

func TestFilePath(t *testing.T) {
	p := MustParse("@.Apps.CRM.zLeads.pipeline")
	want := filepath.Join("ws", "Apps", "CRM", "zLeads") + ".yaml"
	if got := p.FilePath("ws"); got != want {
		t.Errorf("FilePath = %q, want %q", got, want)
	}
}

func TestFromTriple(t *testing.T) {
	p, err := FromTriple("Apps.CRM", "zLeads", "pipeline")
	if err != nil {
		t.Fatalf("FromTriple: %v", err)
	}
	if p.String() != "@.Apps.CRM.zLeads.pipeline" {
		t.Errorf("FromTriple = %q", p.String())
	}
	if _, err := FromTriple("", "zLeads", "pipeline"); err == nil {
		t.Error("incomplete triple must fail")
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse on a bad path must panic")
		}
	}()
	MustParse("not-a-path")
}
