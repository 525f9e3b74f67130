package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/weft/internal/config"
	"github.com/vango-dev/weft/internal/errors"
)

// run executes the CLI with args and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRenderToStdout(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeFile(t, dir, "card.tmpl", "<h1>${title}</h1><p>${count} items</p>")
	data := writeFile(t, dir, "card.json", `{"title": "Inbox", "count": 3}`)

	out, err := run(t, "", "render", tmpl, "--data", data, "-C", dir)
	if err != nil {
		t.Fatal(err)
	}
	if out != "<h1>Inbox</h1><p>3 items</p>" {
		t.Fatalf("output = %q", out)
	}
}

func TestRenderFromStdin(t *testing.T) {
	out, err := run(t, "Hello, ${name}!", "render", "-", "-C", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if out != "Hello, !" {
		t.Fatalf("output = %q", out)
	}
}

func TestRenderRejectsNonObjectData(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeFile(t, dir, "t.tmpl", "${x}")
	data := writeFile(t, dir, "data.json", `[1, 2, 3]`)

	_, err := run(t, "", "render", tmpl, "--data", data, "-C", dir)
	if !errors.HasCode(err, "W301") {
		t.Fatalf("error = %v, want W301", err)
	}
}

func TestRenderToFileAndSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "weft.yaml", "snapshot:\n  dir: snaps\n")
	tmpl := writeFile(t, dir, "badge.tmpl", "${label}")
	data := writeFile(t, dir, "badge.json", `{"label": "new"}`)
	outPath := filepath.Join(dir, "badge.html")

	out, err := run(t, "", "render", tmpl, "--data", data, "--out", outPath, "--snapshot", "-C", dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Errorf("file = %q", got)
	}
	if !strings.Contains(out, "Stored snapshot badge-") {
		t.Errorf("output = %q", out)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "snaps"))
	if err != nil {
		t.Fatal(err)
	}
	var stored int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "badge-") && strings.HasSuffix(e.Name(), ".html") {
			stored++
		}
	}
	if stored != 1 {
		t.Errorf("snapshots = %d, want 1 (%v)", stored, entries)
	}
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, "", "init", "-C", dir); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Path() != filepath.Join(dir, "weft.yaml") {
		t.Errorf("Path = %q", cfg.Path())
	}

	if _, err := run(t, "", "init", "-C", dir); err == nil {
		t.Fatal("init overwrote an existing config without --force")
	}
	if _, err := run(t, "", "init", "-C", dir, "--force", "--format", "json"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "weft.json")); err != nil {
		t.Fatal(err)
	}
}

func TestVersionShort(t *testing.T) {
	out, err := run(t, "", "version", "--short")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != version {
		t.Fatalf("output = %q", out)
	}
}
