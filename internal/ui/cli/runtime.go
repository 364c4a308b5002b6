package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	coreapp "bindkey/internal/core/app"
	"bindkey/internal/core/config"
	coreerrors "bindkey/internal/core/errors"
	"bindkey/internal/core/ports"
	"bindkey/internal/engine/symbols"
	"bindkey/internal/shared/observability"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitCancelled = 130
)

// Run executes the bindkey command line and returns the process exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

type commandRunner struct {
	opts    cliOptions
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	app     *coreapp.App
	cfgPath string
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, err.Error())
		}
		return exitUsage
	}
	if opts.version {
		fmt.Fprintf(stdout, "bindkey v%s\n", versionString)
		return exitOK
	}

	configureLogging(stderr, opts.verbose)

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to detect working directory", "error", err)
		return exitFailure
	}
	cfg, cfgPath, err := loadConfig(opts.configPath, cwd)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitFailure
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
	} else {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(sctx); err != nil {
				slog.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	app, err := coreapp.New(cfg, cwd)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return exitFailure
	}
	defer app.Close(context.Background())

	if addr := strings.TrimSpace(cfg.Telemetry.MetricsAddress); addr != "" {
		srv := NewObservabilityServer(addr, coreapp.NewHealthService(app))
		if err := srv.Start(ctx); err != nil {
			slog.Warn("observability server disabled", "error", err)
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Stop(sctx)
			}()
		}
	}

	rt := &commandRunner{opts: opts, stdin: stdin, stdout: stdout, stderr: stderr, app: app, cfgPath: cfgPath}
	switch opts.command {
	case "index":
		return rt.index(ctx)
	case "resolve":
		return rt.resolve(ctx)
	case "signature":
		return rt.signature(ctx)
	case "verify":
		return rt.verify(ctx)
	case "watch":
		return rt.watch(ctx)
	}
	return exitUsage
}

func (rt *commandRunner) index(ctx context.Context) int {
	res, err := rt.app.KeyService().Index(ctx, ports.IndexRequest{})
	if err != nil {
		return rt.fail("index failed", err)
	}
	for _, w := range res.Warnings {
		slog.Warn("index warning", "detail", w)
	}
	if rt.opts.json {
		return rt.writeJSON(res)
	}
	fmt.Fprintf(rt.stdout, "indexed %d files, %d types (%d changed, %d removed)\n",
		res.FilesScanned, res.Types, res.FilesChanged, res.FilesRemoved)
	return exitOK
}

type resolutionOutput struct {
	Request   string `json:"request"`
	Key       string `json:"key,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Recovered bool   `json:"recovered,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
}

func (rt *commandRunner) resolve(ctx context.Context) int {
	handles := make([]symbols.Handle, 0, len(rt.opts.handles))
	for _, raw := range rt.opts.handles {
		h, err := symbols.ParseHandle(raw)
		if err != nil {
			fmt.Fprintln(rt.stderr, err.Error())
			return exitUsage
		}
		handles = append(handles, h)
	}
	keyList := rt.opts.args
	if len(keyList) == 0 && len(handles) == 0 {
		var err error
		if keyList, err = readLines(rt.stdin); err != nil {
			return rt.fail("read keys", err)
		}
	}

	res, err := rt.app.KeyService().Resolve(ctx, ports.ResolveRequest{Keys: keyList, Handles: handles})
	if err != nil && !coreerrors.IsCode(err, coreerrors.CodeCancelled) {
		return rt.fail("resolve failed", err)
	}

	code := exitOK
	out := make([]resolutionOutput, 0, len(res.Resolutions))
	for _, r := range res.Resolutions {
		o := resolutionOutput{Request: r.Request, Key: r.Key, Recovered: r.Recovered, Reason: r.Reason}
		if r.Error != nil {
			o.Error = r.Error.Error()
			o.Code = string(coreerrors.CodeOf(r.Error))
			code = exitFailure
		} else {
			o.Kind = r.Kind.String()
		}
		out = append(out, o)
	}
	if rt.opts.json {
		rt.writeJSON(out)
	} else {
		for _, o := range out {
			switch {
			case o.Error != "":
				fmt.Fprintf(rt.stdout, "%s\terror: %s\n", o.Request, o.Error)
			case o.Recovered && o.Key == "":
				fmt.Fprintf(rt.stdout, "%s\t-\trecovered (%s)\n", o.Request, o.Reason)
			case o.Recovered:
				fmt.Fprintf(rt.stdout, "%s\t%s\trecovered (%s)\n", o.Request, o.Key, o.Reason)
			default:
				fmt.Fprintf(rt.stdout, "%s\t%s\t%s\n", o.Request, o.Key, o.Kind)
			}
		}
	}
	if res.Cancelled {
		slog.Warn("resolution cancelled", "session", res.Session, "resolved", len(res.Resolutions))
		return exitCancelled
	}
	return code
}

func (rt *commandRunner) signature(ctx context.Context) int {
	keyList := rt.opts.args
	if len(keyList) == 0 {
		var err error
		if keyList, err = readLines(rt.stdin); err != nil {
			return rt.fail("read keys", err)
		}
	}
	res, err := rt.app.KeyService().Signatures(ctx, keyList)
	if err != nil {
		return rt.fail("signature conversion failed", err)
	}

	type signatureOutput struct {
		Key       string `json:"key"`
		Signature string `json:"signature,omitempty"`
		Error     string `json:"error,omitempty"`
	}
	code := exitOK
	out := make([]signatureOutput, 0, len(res))
	for _, r := range res {
		o := signatureOutput{Key: r.Key, Signature: r.Signature}
		if r.Error != nil {
			o.Error = r.Error.Error()
			code = exitFailure
		}
		out = append(out, o)
	}
	if rt.opts.json {
		rt.writeJSON(out)
		return code
	}
	for _, o := range out {
		if o.Error != "" {
			fmt.Fprintf(rt.stdout, "%s\terror: %s\n", o.Key, o.Error)
			continue
		}
		fmt.Fprintf(rt.stdout, "%s\t%s\n", o.Key, o.Signature)
	}
	return code
}

func (rt *commandRunner) verify(ctx context.Context) int {
	res, err := rt.app.KeyService().Verify(ctx)
	if err != nil {
		return rt.fail("verify failed", err)
	}
	if rt.opts.json {
		rt.writeJSON(res)
	} else {
		fmt.Fprintf(rt.stdout, "checked %d keys, %d recovered, %d mismatches\n", res.Checked, res.Recovered, len(res.Mismatches))
		for _, m := range res.Mismatches {
			fmt.Fprintf(rt.stdout, "%s\t%s\n", m.Key, m.Reason)
		}
	}
	if len(res.Mismatches) > 0 {
		return exitFailure
	}
	return exitOK
}

func (rt *commandRunner) watch(ctx context.Context) int {
	if code := rt.index(ctx); code != exitOK {
		return code
	}
	watch := rt.app.WatchService()
	watch.SetUpdateHandler(func(res ports.IndexResult) {
		if rt.opts.json {
			rt.writeJSON(res)
			return
		}
		fmt.Fprintf(rt.stdout, "reindexed %d changed, %d removed, %d types\n", res.FilesChanged, res.FilesRemoved, res.Types)
	})
	if err := watch.Start(ctx, rt.cfgPath); err != nil {
		return rt.fail("failed to start watcher", err)
	}
	slog.Info("watching sources", "roots", rt.app.Paths.SourceRoots)
	<-ctx.Done()
	return exitOK
}

func (rt *commandRunner) fail(msg string, err error) int {
	slog.Error(msg, "error", err)
	if coreerrors.IsCode(err, coreerrors.CodeCancelled) {
		return exitCancelled
	}
	return exitFailure
}

func (rt *commandRunner) writeJSON(v any) int {
	enc := json.NewEncoder(rt.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("failed to write output", "error", err)
		return exitFailure
	}
	return exitOK
}

func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}

// loadConfig loads path when given. Otherwise it looks for bindkey.toml in
// the working directory and then in the detected project root, and falls
// back to the defaults when there is none.
func loadConfig(path, cwd string) (*config.Config, string, error) {
	if path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(cwd, path)
		}
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	candidates := []string{filepath.Join(cwd, config.DefaultFile)}
	if root, err := config.DetectProjectRoot([]string{cwd}); err == nil {
		candidates = append(candidates, filepath.Join(root, config.DefaultFile))
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		cfg, err := config.Load(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, candidate, nil
	}
	slog.Debug("no configuration file found, using defaults", "cwd", cwd)
	return config.Default(), "", nil
}

func configureLogging(out io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
