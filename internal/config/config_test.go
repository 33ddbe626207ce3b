package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "classifier.yaml")

	yamlContent := `prefix_overrides:
  hm: "H&M"
  testcarrier: "TESTCARRIER"
form_defaults:
  - field_label: Type
    value: Allocation
  - field_label: Team
    value: Support
lookup_defaults:
  - field_label: Account Name
    search_text: Metapack PL
    option_contains: Metapack Internal PL Cases
`

	if err := os.WriteFile(configFile, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := cfg.PrefixOverrides["testcarrier"]; got != "TESTCARRIER" {
		t.Errorf("Expected override 'TESTCARRIER', got %q", got)
	}
	if len(cfg.FormDefaults) != 2 {
		t.Errorf("Expected 2 form defaults, got %d", len(cfg.FormDefaults))
	}
	if cfg.FormDefaults[0].FieldLabel != "Type" {
		t.Errorf("Expected first form default 'Type', got %q", cfg.FormDefaults[0].FieldLabel)
	}
	if len(cfg.LookupDefaults) != 1 {
		t.Errorf("Expected 1 lookup default, got %d", len(cfg.LookupDefaults))
	}
	if cfg.LookupDefaults[0].OptionContains != "Metapack Internal PL Cases" {
		t.Errorf("Unexpected lookup option: %q", cfg.LookupDefaults[0].OptionContains)
	}
}

func TestLoad_MissingSectionsFallBack(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "classifier.yaml")

	// Only overrides present; defaults must fill the rest.
	if err := os.WriteFile(configFile, []byte("prefix_overrides:\n  jlp: JLP\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.FormDefaults) == 0 {
		t.Error("Expected default form defaults")
	}
	if len(cfg.LookupDefaults) == 0 {
		t.Error("Expected default lookup defaults")
	}
}

func TestLoad_InvalidEntries(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "Empty form field label",
			content: "form_defaults:\n  - field_label: \"\"\n    value: x\n",
		},
		{
			name:    "Lookup without search text",
			content: "lookup_defaults:\n  - field_label: Account Name\n    option_contains: x\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile := filepath.Join(tmpDir, "bad.yaml")
			if err := os.WriteFile(configFile, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write test config file: %v", err)
			}
			if _, err := Load(configFile); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestLoad_FileMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if len(cfg.PrefixOverrides) == 0 {
		t.Error("Expected built-in prefix overrides")
	}
	if got := cfg.PrefixOverrides["hm"]; got != "H&M" {
		t.Errorf("Expected 'H&M' for hm, got %q", got)
	}
	if len(cfg.FormDefaults) != 4 {
		t.Errorf("Expected 4 base form defaults, got %d", len(cfg.FormDefaults))
	}
	if len(cfg.LookupDefaults) != 2 {
		t.Errorf("Expected 2 lookup defaults, got %d", len(cfg.LookupDefaults))
	}
}
