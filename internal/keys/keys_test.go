package keys

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func noEnv(string) string { return "" }

func TestResolve_ExplicitKey(t *testing.T) {
	key, source, err := Resolve("sk-explicit", noEnv)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if key != "sk-explicit" {
		t.Errorf("key = %q, want sk-explicit", key)
	}
	if source != "command-line flag" {
		t.Errorf("source = %q, want command-line flag", source)
	}
}

func TestResolve_EnvVar(t *testing.T) {
	getenv := func(name string) string {
		if name == EnvVar {
			return "sk-from-env"
		}
		return ""
	}

	key, source, err := Resolve("", getenv)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if key != "sk-from-env" {
		t.Errorf("key = %q, want sk-from-env", key)
	}
	if !strings.Contains(source, EnvVar) {
		t.Errorf("source = %q, want to mention %s", source, EnvVar)
	}
}

func TestResolve_ExplicitBeatsEnv(t *testing.T) {
	getenv := func(string) string { return "sk-from-env" }

	key, _, err := Resolve("sk-explicit", getenv)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if key != "sk-explicit" {
		t.Errorf("key = %q, want sk-explicit", key)
	}
}

func TestResolve_CurrentDirConfig(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	content := "# comment line\n\nOPENROUTER_API_KEY = sk-from-config\n"
	if err := os.WriteFile(filepath.Join(tmpDir, ".openrouter-config"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	key, source, err := Resolve("", noEnv)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if key != "sk-from-config" {
		t.Errorf("key = %q, want sk-from-config", key)
	}
	if !strings.Contains(source, ".openrouter-config") {
		t.Errorf("source = %q, want config file path", source)
	}
}

func TestResolve_XDGConfig(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	xdgDir := filepath.Join(tmpDir, "xdg")
	if err := os.MkdirAll(filepath.Join(xdgDir, "openrouter"), 0755); err != nil {
		t.Fatal(err)
	}
	content := "OPENROUTER_API_KEY=sk-xdg\n"
	if err := os.WriteFile(filepath.Join(xdgDir, "openrouter", "config"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	getenv := func(name string) string {
		if name == "XDG_CONFIG_HOME" {
			return xdgDir
		}
		return ""
	}

	key, _, err := Resolve("", getenv)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if key != "sk-xdg" {
		t.Errorf("key = %q, want sk-xdg", key)
	}
}

func TestResolve_PlaceholderValueIgnored(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	content := "OPENROUTER_API_KEY=your-api-key-here\n"
	if err := os.WriteFile(filepath.Join(tmpDir, ".openrouter-config"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	// The home directory may still carry a real config; only assert the
	// placeholder itself is never returned.
	key, _, err := Resolve("", noEnv)
	if err == nil && key == "your-api-key-here" {
		t.Error("Resolve() returned the placeholder value")
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve() error = %v, want ErrNotFound", err)
	}
}

func TestResolve_NotFoundMessage(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	// Point HOME at the temp dir so no real config file is picked up.
	t.Setenv("HOME", tmpDir)

	_, _, err := Resolve("", noEnv)
	if err == nil {
		t.Fatal("Resolve() error = nil, want ErrNotFound")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve() error = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), EnvVar) {
		t.Errorf("error message should name %s: %v", EnvVar, err)
	}
	if !strings.Contains(err.Error(), ".openrouter-config") {
		t.Errorf("error message should list candidate config paths: %v", err)
	}
}

func TestConfigLocations_Order(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)
	t.Setenv("HOME", tmpDir)

	getenv := func(name string) string {
		if name == "XDG_CONFIG_HOME" {
			return filepath.Join(tmpDir, "cfg")
		}
		return ""
	}

	locations := ConfigLocations(getenv)
	if len(locations) != 3 {
		t.Fatalf("ConfigLocations() returned %d paths, want 3", len(locations))
	}
	if filepath.Base(locations[0]) != ".openrouter-config" || filepath.Dir(locations[0]) == tmpDir+"/cfg" {
		t.Errorf("first location should be cwd config, got %s", locations[0])
	}
	if !strings.HasSuffix(locations[1], filepath.Join("openrouter", "config")) {
		t.Errorf("second location should be XDG config, got %s", locations[1])
	}
	if !strings.HasSuffix(locations[2], ".openrouter-config") {
		t.Errorf("third location should be home dotfile, got %s", locations[2])
	}
}
