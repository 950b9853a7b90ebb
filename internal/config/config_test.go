package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoad_DefaultsWhenNoFilesPresent(t *testing.T) {
	dir := t.TempDir()

	cfg, _, err := Load(LoadInput{WorkDir: dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg != Default() {
		t.Errorf("cfg = %+v, want defaults %+v", cfg, Default())
	}
}

func TestLoad_ProjectConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), `{"prefix": "myweb", "max_data_items": 500}`)

	cfg, sources, err := Load(LoadInput{WorkDir: dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Prefix != "myweb" {
		t.Errorf("Prefix = %q, want myweb", cfg.Prefix)
	}

	if cfg.MaxDataItems != 500 {
		t.Errorf("MaxDataItems = %d, want 500", cfg.MaxDataItems)
	}

	// min_prevalence_to_be_good was not set in the file, so the default survives.
	if cfg.MinPrevalenceToBeGood != defaultMinPrevalenceToBeGood {
		t.Errorf("MinPrevalenceToBeGood = %d, want default", cfg.MinPrevalenceToBeGood)
	}

	if sources.Project == "" {
		t.Error("expected Sources.Project to be set")
	}
}

func TestLoad_CLIOverridesBeatProjectConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), `{"prefix": "fromfile"}`)

	cfg, _, err := Load(LoadInput{
		WorkDir:           dir,
		CLIOverride:       Config{Prefix: "fromcli"},
		HasPrefixOverride: true,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Prefix != "fromcli" {
		t.Errorf("Prefix = %q, want fromcli", cfg.Prefix)
	}
}

func TestLoad_GlobalConfigBeatsDefaultsButLosesToProject(t *testing.T) {
	home := t.TempDir()
	dir := t.TempDir()

	writeFile(t, filepath.Join(home, ".config", "intelweb", "config.json"), `{"prefix": "global", "min_prevalence_to_be_good": 7}`)
	writeFile(t, filepath.Join(dir, FileName), `{"prefix": "project"}`)

	env := []string{"XDG_CONFIG_HOME=" + filepath.Join(home, ".config")}

	cfg, sources, err := Load(LoadInput{WorkDir: dir, Env: env})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Prefix != "project" {
		t.Errorf("Prefix = %q, want project (project beats global)", cfg.Prefix)
	}

	if cfg.MinPrevalenceToBeGood != 7 {
		t.Errorf("MinPrevalenceToBeGood = %d, want 7 from global", cfg.MinPrevalenceToBeGood)
	}

	if sources.Global == "" {
		t.Error("expected Sources.Global to be set")
	}
}

func TestLoad_ExplicitConfigPathMustExist(t *testing.T) {
	dir := t.TempDir()

	_, _, err := Load(LoadInput{WorkDir: dir, ConfigPath: "missing.json"})
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoad_MalformedJSONCFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), `{"prefix": `)

	_, _, err := Load(LoadInput{WorkDir: dir})
	if err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestLoad_JSONCCommentsAccepted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), `{
		// trailing comma and comment, valid JSONC via hujson
		"prefix": "withcomments",
	}`)

	cfg, _, err := Load(LoadInput{WorkDir: dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Prefix != "withcomments" {
		t.Errorf("Prefix = %q, want withcomments", cfg.Prefix)
	}
}

func TestFormat_ReturnsIndentedJSON(t *testing.T) {
	out, err := Format(Default())
	if err != nil {
		t.Fatalf("Format: %v", err)
	}

	if out == "" {
		t.Error("expected non-empty output")
	}
}
