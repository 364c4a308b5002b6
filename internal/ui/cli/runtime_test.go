package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bindkey/internal/core/config"
)

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(t *testing.T, opts cliOptions)
	}{
		{name: "no command", args: nil, wantErr: true},
		{name: "unknown command", args: []string{"explode"}, wantErr: true},
		{name: "index takes no args", args: []string{"index", "src"}, wantErr: true},
		{name: "version", args: []string{"--version"}, check: func(t *testing.T, opts cliOptions) {
			if !opts.version {
				t.Fatal("expected version flag")
			}
		}},
		{name: "resolve", args: []string{"--verbose", "--config", "x.toml", "resolve", "--handle", "A.java:1:2", "--handle", "B.java:3:4", "--json", "Lp/A;"}, check: func(t *testing.T, opts cliOptions) {
			if opts.command != "resolve" || !opts.verbose || !opts.json || opts.configPath != "x.toml" {
				t.Fatalf("unexpected options %+v", opts)
			}
			if len(opts.handles) != 2 || opts.handles[1] != "B.java:3:4" {
				t.Fatalf("unexpected handles %v", opts.handles)
			}
			if len(opts.args) != 1 || opts.args[0] != "Lp/A;" {
				t.Fatalf("unexpected args %v", opts.args)
			}
		}},
		{name: "handle only on resolve", args: []string{"signature", "--handle", "A.java:1:1"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseOptions(tt.args, io.Discard)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, opts)
			}
		})
	}
}

func TestLoadConfig_Discovery(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "src")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, config.DefaultFile), []byte("[resolver]\nburst = 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, path, err := loadConfig("", sub)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if path != filepath.Join(root, config.DefaultFile) || cfg.Resolver.Burst != 3 {
		t.Fatalf("unexpected config %q %+v", path, cfg.Resolver)
	}
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	cfg, path, err := loadConfig("", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if path != "" || cfg.Version != 1 {
		t.Fatalf("expected defaults, got %q %+v", path, cfg)
	}
}

func TestLoadConfig_CustomPathNoFallback(t *testing.T) {
	tmpDir := t.TempDir()
	_, _, err := loadConfig(filepath.Join(tmpDir, "custom.toml"), tmpDir)
	if err == nil {
		t.Fatal("expected missing custom config error")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		config.DefaultFile: "[sources]\nroots = [\"src\"]\n\n[db]\nenabled = true\n",
		"src/p/Box.java":   "package p;\n\npublic class Box<E> {\n    E item;\n\n    E get() {\n        return item;\n    }\n}\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	t.Chdir(root)
	return root
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	if code != exitOK {
		t.Logf("stderr: %s", stderr.String())
	}
	return code, stdout.String()
}

func TestRun_EndToEnd(t *testing.T) {
	root := setupProject(t)

	code, out := runCLI(t, "", "index")
	if code != exitOK || !strings.Contains(out, "indexed 1 files, 1 types") {
		t.Fatalf("index: code %d output %q", code, out)
	}
	if _, err := os.Stat(filepath.Join(root, ".bindkey", "index.db")); err != nil {
		t.Fatalf("expected the index database: %v", err)
	}

	code, out = runCLI(t, "", "resolve", "--handle", "src/p/Box.java:7:9", "Lp/Box<TE;>;", "Lp/Gone;")
	if code != exitOK {
		t.Fatalf("resolve: code %d output %q", code, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected three lines, got %q", out)
	}
	if lines[0] != "src/p/Box.java:7:9\tLp/Box;.get()TE;\tmethod" {
		t.Errorf("unexpected handle line %q", lines[0])
	}
	if lines[2] != "Lp/Gone;\tLp/Gone;\trecovered (not-found)" {
		t.Errorf("unexpected recovered line %q", lines[2])
	}

	code, out = runCLI(t, "Lp/Box;.item)TE;\n", "signature", "--json")
	if code != exitOK {
		t.Fatalf("signature: code %d", code)
	}
	var sigs []struct {
		Key       string `json:"key"`
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal([]byte(out), &sigs); err != nil {
		t.Fatalf("decode signature output %q: %v", out, err)
	}
	if len(sigs) != 1 || sigs[0].Signature != "TE;" {
		t.Fatalf("unexpected signatures %+v", sigs)
	}

	code, out = runCLI(t, "", "verify")
	if code != exitOK || !strings.HasPrefix(out, "checked 3 keys, 1 recovered, 0 mismatches") {
		t.Fatalf("verify: code %d output %q", code, out)
	}
}

func TestRun_MalformedKeyFails(t *testing.T) {
	setupProject(t)
	code, out := runCLI(t, "", "resolve", "Lp/Box")
	if code != exitFailure {
		t.Fatalf("expected failure exit, got %d", code)
	}
	if !strings.Contains(out, "error: malformed key") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRun_Usage(t *testing.T) {
	var stderr bytes.Buffer
	if code := run(context.Background(), nil, strings.NewReader(""), io.Discard, &stderr); code != exitUsage {
		t.Fatalf("expected usage exit, got %d", code)
	}
	if !strings.Contains(stderr.String(), "usage: bindkey") {
		t.Fatalf("expected usage text, got %q", stderr.String())
	}
}
