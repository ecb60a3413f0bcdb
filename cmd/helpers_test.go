package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/cverag/internal/config"
)

func TestModelSpecs(t *testing.T) {
	cfg := config.DefaultConfig()
	specs := modelSpecs(cfg)

	if len(specs) != len(cfg.Models) {
		t.Fatalf("got %d specs, want %d", len(specs), len(cfg.Models))
	}
	for i, s := range specs {
		m := cfg.Models[i]
		if s.Name != m.Name || s.Provider != string(m.Provider) || s.Model != m.Model {
			t.Errorf("spec %d = %+v, model %+v", i, s, m)
		}
		if s.Temperature != config.DefaultTemperature || s.MaxTokens != config.DefaultMaxTokens {
			t.Errorf("spec %d settings = %v/%d", i, s.Temperature, s.MaxTokens)
		}
	}
}

func newInputCmd(stdin string) *cobra.Command {
	c := &cobra.Command{}
	c.Flags().String("file", "", "")
	c.SetIn(strings.NewReader(stdin))
	return c
}

func TestInputText(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "report.md")
	if err := os.WriteFile(report, []byte("# Report\n\nSee **CVE-2021-44228**."), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("argument", func(t *testing.T) {
		got, err := inputText(newInputCmd("ignored"), []string{"CVE-2017-0144"})
		if err != nil || got != "CVE-2017-0144" {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("file wins", func(t *testing.T) {
		c := newInputCmd("")
		c.Flags().Set("file", report)
		got, err := inputText(c, []string{"CVE-2017-0144"})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(got, "CVE-2021-44228") || strings.Contains(got, "**") {
			t.Errorf("unexpected markdown text %q", got)
		}
	})

	t.Run("stdin", func(t *testing.T) {
		got, err := inputText(newInputCmd("piped CVE-2020-0601"), []string{" "})
		if err != nil || got != "piped CVE-2020-0601" {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("nothing", func(t *testing.T) {
		if _, err := inputText(newInputCmd(""), nil); err == nil {
			t.Error("expected error without input")
		}
	})
}

func TestExtractCommand(t *testing.T) {
	var out bytes.Buffer
	extractCmd.SetOut(&out)
	extractCmd.SetIn(strings.NewReader(""))
	defer extractCmd.SetOut(nil)

	if err := extractCmd.RunE(extractCmd, []string{"cve-2021-44228, CVE-2017-0144 and CVE-2021-44228"}); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got := out.String(); got != "CVE-2021-44228\nCVE-2017-0144\n" {
		t.Errorf("output = %q", got)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)
	if got := out.String(); got != "cverag "+Version+"\n" {
		t.Errorf("output = %q", got)
	}
}
