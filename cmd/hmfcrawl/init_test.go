package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/hmfcrawl/internal/config"
)

func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()
	if cmd.Use != "init" {
		t.Errorf("expected Use 'init', got %q", cmd.Use)
	}

	output := cmd.Flags().Lookup("output")
	if output == nil {
		t.Fatal("expected output flag")
	}
	if output.Shorthand != "o" || output.DefValue != config.DefaultConfigFile {
		t.Errorf("unexpected output flag %+v", output)
	}
	if cmd.Flags().Lookup("force") == nil {
		t.Error("expected force flag")
	}
}

func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates configuration file", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), "conf", "hmfcrawl.yaml")
		stdout, _, err := executeCmd(t, "init", "-o", outputPath)
		if err != nil {
			t.Fatalf("init failed: %v", err)
		}
		if !strings.Contains(stdout, outputPath) {
			t.Errorf("output does not name the file: %q", stdout)
		}

		info, err := os.Stat(outputPath)
		if err != nil {
			t.Fatalf("file was not created: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
		}

		cf, err := config.LoadConfigFile(outputPath)
		if err != nil {
			t.Fatalf("template is not a valid configuration: %v", err)
		}
		if cf.Sites == nil {
			t.Error("expected sites map")
		}
	})

	t.Run("refuses to overwrite without force", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), ".hmfcrawl")
		if err := os.WriteFile(outputPath, []byte("existing"), 0600); err != nil {
			t.Fatal(err)
		}

		if _, _, err := executeCmd(t, "init", "-o", outputPath); err == nil {
			t.Fatal("expected error for existing file")
		}
		data, err := os.ReadFile(outputPath) //nolint:gosec
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "existing" {
			t.Error("existing file was modified")
		}
	})

	t.Run("overwrites with force", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), ".hmfcrawl")
		if err := os.WriteFile(outputPath, []byte("existing"), 0600); err != nil {
			t.Fatal(err)
		}

		if _, _, err := executeCmd(t, "init", "-o", outputPath, "-f"); err != nil {
			t.Fatalf("init -f failed: %v", err)
		}
		data, err := os.ReadFile(outputPath) //nolint:gosec
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "sites:") {
			t.Error("template was not written")
		}
	})
}
