package installer

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	hosterrors "github.com/thoreinstein/mcphost/internal/errors"
	"github.com/thoreinstein/mcphost/internal/events"
	"github.com/thoreinstein/mcphost/internal/paths"
	"github.com/thoreinstein/mcphost/internal/registry"
	"github.com/thoreinstein/mcphost/internal/runner"
)

// Defaults for installer tuning knobs.
const (
	DefaultCommandTimeout = 5 * time.Minute
	DefaultBuildTimeout   = 10 * time.Minute
	DefaultMaxRetries     = 3
)

// Pipeline stage names, surfaced on progress events.
const (
	StageCache        = "install:cache-check"
	StageSecurity     = "install:security"
	StageClone        = "install:clone"
	StageAnalyze      = "install:analyze"
	StageDependencies = "install:dependencies"
	StageBuild        = "install:build"
	StageValidate     = "install:validate"
	StageCacheWrite   = "install:cache"
)

// Options tunes an Installer at construction time.
type Options struct {
	CommandTimeout time.Duration
	BuildTimeout   time.Duration
	CacheTTL       time.Duration
	MaxRetries     int
	AllowHighRisk  bool
}

func (o *Options) fill() {
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = DefaultCommandTimeout
	}
	if o.BuildTimeout <= 0 {
		o.BuildTimeout = DefaultBuildTimeout
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
}

// InstallOptions tunes a single install.
type InstallOptions struct {
	// ID overrides the server id derived from the source name.
	ID string
	// Name overrides the human name.
	Name string
	// Env is layered onto the server's invocation.
	Env map[string]string
	// AutoStart marks the record for startAutoStartServers.
	AutoStart bool
	// ForceReinstall bypasses the cache.
	ForceReinstall bool
	// AllowHighRisk lets high-risk security findings through.
	AllowHighRisk bool
	// AutoRetry re-enters the pipeline on failure, up to MaxRetries.
	AutoRetry bool
}

// Installer turns a textual origin into a runnable invocation plus a
// server record: fetch, analyze, install dependencies, build, security
// gate, cache.
type Installer struct {
	root       string
	runner     runner.Runner
	bus        *events.Bus
	logger     *slog.Logger
	validator  *SourceValidator
	httpClient *http.Client
	opts       Options
	now        func() time.Time
}

// New creates an installer rooted at the given installation directory.
func New(root string, r runner.Runner, bus *events.Bus, logger *slog.Logger, opts Options) *Installer {
	opts.fill()
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{
		root:       root,
		runner:     r,
		bus:        bus,
		logger:     logger,
		validator:  NewSourceValidator(),
		httpClient: &http.Client{Timeout: opts.CommandTimeout},
		opts:       opts,
		now:        time.Now,
	}
}

// Root returns the installation root directory.
func (i *Installer) Root() string {
	return i.root
}

// run executes one external command with the default command timeout,
// relaying output as progress events.
func (i *Installer) run(ctx context.Context, cmd runner.Command) (runner.Result, error) {
	if cmd.Timeout <= 0 {
		cmd.Timeout = i.opts.CommandTimeout
	}
	return i.runner.Run(ctx, cmd, func(stream, line string) {
		i.logger.Debug("install output", "stream", stream, "line", line)
	})
}

func (i *Installer) progress(url, stage, message string) {
	i.logger.Info("install progress", "stage", stage, "detail", message)
	i.publish(events.KindInstallProgress, events.InstallPayload{URL: url, Stage: stage, Message: message})
}

func (i *Installer) publish(kind events.Kind, payload any) {
	if i.bus != nil {
		i.bus.Publish(kind, payload)
	}
}

// Install runs the pipeline for the given source, retrying on failure
// when AutoRetry is set, up to MaxRetries attempts.
func (i *Installer) Install(ctx context.Context, url string, opts InstallOptions) (registry.ServerRecord, error) {
	i.publish(events.KindInstallStarted, events.InstallPayload{URL: url})

	var lastErr error
	attempts := 1
	if opts.AutoRetry {
		attempts = i.opts.MaxRetries
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		rec, err := i.install(ctx, url, opts)
		if err == nil {
			i.publish(events.KindInstallCompleted, events.InstallPayload{
				URL:       url,
				ServerID:  rec.ID,
				FromCache: rec.Metadata.FromCache,
			})
			return rec, nil
		}
		lastErr = err

		// Security refusals are policy, not flakiness.
		if errors.Is(err, hosterrors.ErrSecurityBlocked) {
			break
		}
		if attempt < attempts {
			i.logger.Warn("install attempt failed, retrying", "url", url, "attempt", attempt, "error", err)
		}
	}

	i.publish(events.KindInstallFailed, events.InstallPayload{URL: url, Err: lastErr.Error()})
	if errors.Is(lastErr, hosterrors.ErrSecurityBlocked) {
		return registry.ServerRecord{}, lastErr
	}
	return registry.ServerRecord{}, errors.Wrapf(hosterrors.ErrInstallFailed, "%s: %s", url, lastErr)
}

// install is one pass through the pipeline.
func (i *Installer) install(ctx context.Context, url string, opts InstallOptions) (registry.ServerRecord, error) {
	origin, err := ParseOrigin(url)
	if err != nil {
		return registry.ServerRecord{}, err
	}

	serverID := opts.ID
	if serverID == "" {
		serverID = origin.Name
	}

	// Stage 1: cache check.
	i.progress(url, StageCache, "checking install cache")
	key := cacheKey(origin, opts)
	if !opts.ForceReinstall {
		if cached, ok := i.cacheLookup(key); ok {
			rec := cached.ServerConfig
			rec.Metadata.FromCache = true
			i.progress(url, StageCache, "cache hit, reusing "+cached.InstallPath)
			return rec, nil
		}
	}

	// Stage 2: security gate on the source.
	i.progress(url, StageSecurity, "validating source")
	verdict := i.validator.Validate(origin)
	for _, w := range verdict.Warnings {
		i.logger.Warn("source validation", "url", url, "warning", w)
	}
	if !verdict.OK {
		return registry.ServerRecord{}, errors.Wrapf(hosterrors.ErrSecurityBlocked,
			"%s: %s", url, strings.Join(verdict.Errors, "; "))
	}

	// Stage 3: acquisition.
	dest := paths.ServerDir(i.root, string(origin.Type), serverID)
	i.progress(url, StageClone, "fetching source into "+dest)
	if err := i.acquire(ctx, origin, dest); err != nil {
		return registry.ServerRecord{}, err
	}

	// Stage 4: analysis.
	i.progress(url, StageAnalyze, "analyzing project")
	analysis, err := Analyze(dest)
	if err != nil {
		return registry.ServerRecord{}, err
	}
	if analysis.BuildSystem != nil {
		i.progress(url, StageAnalyze, "build system: "+analysis.BuildSystem.Name)
	}

	// Stage 5: dependency install.
	i.progress(url, StageDependencies, "installing dependencies")
	if err := i.installDependencies(ctx, analysis, dest); err != nil {
		return registry.ServerRecord{}, err
	}

	// Stage 6: build.
	outputDir := ""
	if analysis.BuildSystem != nil {
		i.progress(url, StageBuild, "building with "+analysis.BuildSystem.Name)
		outputDir, err = i.build(ctx, *analysis.BuildSystem, dest)
		if err != nil {
			return registry.ServerRecord{}, err
		}
	}

	// Stage 7: build validation.
	i.progress(url, StageValidate, "validating build output")
	if err := i.validateBuild(analysis, dest, outputDir); err != nil {
		return registry.ServerRecord{}, err
	}

	// Stage 8: security scan over the built tree.
	i.progress(url, StageSecurity, "scanning source tree")
	report, err := ScanTree(dest)
	if err != nil {
		return registry.ServerRecord{}, err
	}
	risk := verdict.Risk
	if len(report.Findings) > 0 {
		risk = RiskMedium
	}
	if report.HighRisk() {
		risk = RiskHigh
		if !opts.AllowHighRisk && !i.opts.AllowHighRisk {
			return registry.ServerRecord{}, errors.Wrapf(hosterrors.ErrSecurityBlocked,
				"%s: high-risk findings in source scan", url)
		}
	}

	// Stage 9: command derivation.
	invocation := deriveInvocation(analysis, dest, outputDir, opts.Env)

	name := opts.Name
	if name == "" {
		name = origin.FullName
	}
	version := origin.Version
	if version == "" || version == "latest" {
		version = analysis.PackageVersion
	}

	rec := registry.ServerRecord{
		ID:            serverID,
		Name:          name,
		Description:   analysis.Description,
		Version:       version,
		Invocation:    invocation,
		InstallMethod: registry.MethodEnhanced,
		InstallURL:    url,
		Metadata: registry.Metadata{
			InstallPath:  dest,
			InstallID:    uuid.NewString(),
			CacheKey:     key,
			SecurityRisk: string(risk),
			AutoStart:    opts.AutoStart,
		},
	}

	// Stage 10: cache write.
	i.progress(url, StageCacheWrite, "writing install cache")
	if err := i.cacheWrite(key, rec, dest); err != nil {
		return registry.ServerRecord{}, err
	}

	return rec, nil
}

// installDependencies runs the ecosystem's install command. Python
// dependency failures are tolerated; Node failures are fatal.
func (i *Installer) installDependencies(ctx context.Context, a Analysis, dir string) error {
	switch a.ProjectType {
	case ProjectNode:
		cmd := runner.Command{Name: a.PackageManager, Args: []string{"install"}, Dir: dir}
		if _, err := i.run(ctx, cmd); err != nil {
			return errors.Wrap(err, "installing node dependencies")
		}
	case ProjectPython:
		if fileExists(filepath.Join(dir, "requirements.txt")) {
			if _, err := i.run(ctx, runner.Command{Name: "pip", Args: []string{"install", "-r", "requirements.txt"}, Dir: dir}); err != nil {
				i.logger.Warn("pip requirements install failed", "dir", dir, "error", err)
			}
		}
		if _, err := i.run(ctx, runner.Command{Name: "pip", Args: []string{"install", "-e", "."}, Dir: dir}); err != nil {
			i.logger.Warn("pip editable install failed", "dir", dir, "error", err)
		}
	}
	return nil
}

// build tries each of the build system's commands until one succeeds,
// then locates the first existing output directory.
func (i *Installer) build(ctx context.Context, bs BuildSystem, dir string) (string, error) {
	var lastErr error
	built := false
	for _, cmdline := range bs.Commands {
		cmd := runner.Command{
			Name:    cmdline[0],
			Args:    cmdline[1:],
			Dir:     dir,
			Timeout: i.opts.BuildTimeout,
		}
		if _, err := i.run(ctx, cmd); err != nil {
			lastErr = err
			continue
		}
		built = true
		break
	}
	if !built {
		return "", errors.Wrapf(lastErr, "all %s build commands failed", bs.Name)
	}

	for _, candidate := range bs.OutputDirs {
		p := filepath.Join(dir, filepath.FromSlash(candidate))
		if dirExists(p) {
			return p, nil
		}
	}
	return "", nil
}

// validateBuild requires a non-empty output directory when one was
// produced; a Node tree missing a conventional entry file is only a
// warning.
func (i *Installer) validateBuild(a Analysis, sourceDir, outputDir string) error {
	if outputDir == "" {
		return nil
	}
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return errors.Wrapf(err, "reading build output %s", outputDir)
	}
	if len(entries) == 0 {
		return errors.Newf("build output %s is empty", outputDir)
	}

	if a.ProjectType == ProjectNode {
		found := false
		for _, entry := range standardEntries {
			if fileExists(filepath.Join(outputDir, entry)) {
				found = true
				break
			}
		}
		if !found {
			i.logger.Warn("no conventional entry file in build output", "dir", outputDir)
		}
	}
	return nil
}

// Uninstall removes the server's source tree and cache metadata.
func (i *Installer) Uninstall(rec registry.ServerRecord) error {
	if rec.Metadata.CacheKey != "" {
		i.cacheDrop(rec.Metadata.CacheKey)
	}

	dir := rec.Metadata.InstallPath
	if dir == "" {
		return nil
	}
	// Refuse to delete anything outside the installation root.
	abs, err := filepath.Abs(dir)
	if err != nil {
		return errors.Wrapf(err, "resolving install path %s", dir)
	}
	rootAbs, err := filepath.Abs(i.root)
	if err != nil {
		return errors.Wrapf(err, "resolving install root %s", i.root)
	}
	if !strings.HasPrefix(abs+string(filepath.Separator), rootAbs+string(filepath.Separator)) {
		return errors.Newf("install path %s escapes installation root", dir)
	}

	if err := os.RemoveAll(abs); err != nil {
		return errors.Wrapf(err, "removing %s", abs)
	}
	return nil
}
