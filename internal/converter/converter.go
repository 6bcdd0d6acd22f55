package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"aaxsplit/internal/audiobook"
	"aaxsplit/internal/config"
	"aaxsplit/internal/fileutil"
	"aaxsplit/internal/history"
	"aaxsplit/internal/logging"
	"aaxsplit/internal/media/ffprobe"
	"aaxsplit/internal/preflight"
	"aaxsplit/internal/services"
	"aaxsplit/internal/staging"
	"aaxsplit/internal/tagging"
	"aaxsplit/internal/textutil"
	"aaxsplit/internal/transcode"
	"aaxsplit/internal/verify"
)

// LockFileName is created inside a book directory while a conversion writes to it.
const LockFileName = ".aaxsplit.lock"

// Prober inspects a container with ffprobe.
type Prober func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Transcoder runs the two ffmpeg passes.
type Transcoder interface {
	Decrypt(ctx context.Context, req transcode.DecryptRequest) error
	ExtractChapter(ctx context.Context, req transcode.ChapterRequest) error
}

// Ledger records conversion runs.
type Ledger interface {
	LastCompleted(ctx context.Context, inputPath string, size int64) (*history.Run, error)
	Begin(ctx context.Context, run *history.Run) error
	Finish(ctx context.Context, runID string, status history.Status, runErr error) error
}

// Checker verifies written chapter files.
type Checker interface {
	Check(ctx context.Context, expectations []verify.Expectation) (verify.Report, error)
}

// TrackTagger rewrites the track frame of a chapter file to number/total.
type TrackTagger func(path string, number, total int) error

// Request describes one conversion.
type Request struct {
	Input string
	// ActivationBytes overrides the configured key when set.
	ActivationBytes string
	// OutputDir overrides paths.output_dir when set.
	OutputDir string
	// Force converts even when the ledger lists a completed run for the input.
	Force bool
}

// Result summarizes a conversion.
type Result struct {
	RunID string
	Input string
	Plan  audiobook.Plan
	// Skipped is set when the ledger already lists the input as converted.
	Skipped     bool
	PreviousRun *history.Run
	// Intermediate is the kept decoded file, when output.keep_intermediate is on.
	Intermediate string
	Verification *verify.Report
	Elapsed      time.Duration
}

// Converter drives conversions for a fixed configuration.
type Converter struct {
	cfg        *config.Config
	logger     *slog.Logger
	probe      Prober
	transcoder Transcoder
	ledger     Ledger
	checker    Checker
	tagTrack   TrackTagger
	now        func() time.Time
}

// Option customizes a Converter.
type Option func(*Converter)

// WithProber replaces ffprobe.Inspect.
func WithProber(probe Prober) Option {
	return func(c *Converter) {
		if probe != nil {
			c.probe = probe
		}
	}
}

// WithTranscoder replaces the ffmpeg runner.
func WithTranscoder(t Transcoder) Option {
	return func(c *Converter) {
		if t != nil {
			c.transcoder = t
		}
	}
}

// WithLedger enables history lookups and recording.
func WithLedger(ledger Ledger) Option {
	return func(c *Converter) {
		c.ledger = ledger
	}
}

// WithChecker replaces the audiometa-backed verifier.
func WithChecker(checker Checker) Option {
	return func(c *Converter) {
		if checker != nil {
			c.checker = checker
		}
	}
}

// WithTrackTagger replaces the id3v2 track total writer.
func WithTrackTagger(tagger TrackTagger) Option {
	return func(c *Converter) {
		if tagger != nil {
			c.tagTrack = tagger
		}
	}
}

// New constructs a Converter. Without options it shells out to the
// configured ffprobe/ffmpeg binaries and records nothing.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Converter {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Converter{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "converter"),
		probe:  ffprobe.Inspect,
		transcoder: transcode.New(
			transcode.WithBinary(cfg.FFmpegBinary()),
			transcode.WithOverwrite(cfg.Output.Overwrite),
		),
		checker:  verify.New(),
		tagTrack: tagging.SetTrackTotal,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Probe reads and validates the metadata of input without converting.
func (c *Converter) Probe(ctx context.Context, input string) (audiobook.Book, error) {
	input, _, err := statInput(input)
	if err != nil {
		return audiobook.Book{}, err
	}
	return c.probeBook(services.WithStage(ctx, "probe"), input)
}

// Convert runs the full pipeline for one input file.
func (c *Converter) Convert(ctx context.Context, req Request) (Result, error) {
	started := c.now()
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, c.logger)

	input, size, err := statInput(req.Input)
	if err != nil {
		return Result{RunID: runID}, err
	}
	result := Result{RunID: runID, Input: input}

	key, err := c.activationBytes(req.ActivationBytes)
	if err != nil {
		return result, err
	}

	if c.ledger != nil && !req.Force {
		prev, err := c.ledger.LastCompleted(ctx, input, size)
		if err != nil {
			logger.Warn("history lookup failed", logging.Error(err))
		} else if prev != nil && dirExists(prev.OutputDir) {
			logger.Info("input already converted; skipping",
				logging.String("input", input),
				logging.String("previous_run", prev.RunID),
				logging.String("output_dir", prev.OutputDir),
			)
			result.Skipped = true
			result.PreviousRun = prev
			result.Elapsed = c.now().Sub(started)
			return result, nil
		}
	}

	book, err := c.probeBook(services.WithStage(ctx, "probe"), input)
	if err != nil {
		return result, err
	}
	baseDir := strings.TrimSpace(req.OutputDir)
	if baseDir == "" {
		baseDir = c.cfg.Paths.OutputDir
	}
	if baseDir, err = config.ExpandPath(baseDir); err != nil {
		return result, services.Wrap(services.ErrConfiguration, "plan", "output dir", "", err)
	}
	plan := audiobook.BuildPlan(book, baseDir, c.cfg.Encoding.Extension)
	result.Plan = plan
	logger.Info("conversion planned",
		logging.String("title", book.Title),
		logging.String("artist", book.Artist),
		logging.Int("chapters", len(plan.Tracks)),
		logging.Size("input_size", size),
		logging.String("output_dir", plan.OutputDir),
	)

	if err := c.cfg.EnsureDirectories(); err != nil {
		return result, services.Wrap(services.ErrConfiguration, "preflight", "directories", "", err)
	}
	if err := preflight.Err(preflight.ForConversion(c.cfg.Paths.WorkDir, baseDir, size)); err != nil {
		return result, err
	}

	created := missingDirs(plan.OutputDir, baseDir)
	unlock, err := lockOutputDir(plan.OutputDir)
	if err != nil {
		pruneEmptyDirs(created)
		return result, err
	}
	succeeded := false
	defer func() {
		if !succeeded {
			pruneEmptyDirs(created)
		}
		unlock()
	}()

	if !c.cfg.Output.Overwrite {
		if err := ensureFresh(plan); err != nil {
			return result, err
		}
	}

	if c.ledger != nil {
		run := &history.Run{
			RunID:     runID,
			InputPath: input,
			InputSize: size,
			Title:     book.Title,
			Author:    book.Artist,
			Chapters:  len(plan.Tracks),
			OutputDir: plan.OutputDir,
			StartedAt: started.UTC(),
		}
		if beginErr := c.ledger.Begin(ctx, run); beginErr != nil {
			logger.Warn("history record failed", logging.Error(beginErr))
		} else {
			defer func() {
				status := history.StatusCompleted
				if err != nil {
					status = history.StatusFailed
				}
				if finishErr := c.ledger.Finish(context.WithoutCancel(ctx), runID, status, err); finishErr != nil {
					logger.Warn("history update failed", logging.Error(finishErr))
				}
			}()
		}
	}

	err = c.run(ctx, logger, key, plan, &result)
	result.Elapsed = c.now().Sub(started)
	if err != nil {
		logger.Error("conversion failed", logging.Error(err))
		return result, err
	}
	logger.Info("conversion complete",
		logging.String("output_dir", plan.OutputDir),
		logging.Int("chapters", len(plan.Tracks)),
		logging.Duration("elapsed", result.Elapsed),
	)
	succeeded = true
	return result, nil
}

func (c *Converter) run(ctx context.Context, logger *slog.Logger, key string, plan audiobook.Plan, result *Result) error {
	cleaned := staging.CleanStale(ctx, c.cfg.Paths.WorkDir, staging.DefaultMaxAge, logger)
	if len(cleaned.Removed) > 0 {
		logger.Debug("stale work directories removed", logging.Int("count", len(cleaned.Removed)))
	}
	runDir, err := staging.Create(c.cfg.Paths.WorkDir, result.RunID)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "decrypt", "work dir", "", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(runDir); rmErr != nil {
			logger.Warn("failed to remove work directory", logging.String("path", runDir), logging.Error(rmErr))
		}
	}()

	ext := c.cfg.Encoding.Extension
	intermediate := filepath.Join(runDir, "decoded."+ext)
	bitRate := strings.TrimSpace(c.cfg.Encoding.BitRate)
	if bitRate == "" {
		bitRate = plan.Book.BitRate
	}

	decryptCtx := services.WithStage(ctx, "decrypt")
	stageLogger := logging.WithContext(decryptCtx, c.logger)
	stageLogger.Info("decrypting and decoding",
		logging.String("input", result.Input),
		logging.String("intermediate", intermediate),
		logging.String("bitrate", bitRate),
	)
	decryptStart := c.now()
	if err := c.transcoder.Decrypt(decryptCtx, transcode.DecryptRequest{
		Input:           result.Input,
		Output:          intermediate,
		ActivationBytes: key,
		BitRate:         bitRate,
		Codec:           c.cfg.Encoding.Codec,
	}); err != nil {
		return err
	}
	stageLogger.Info("decode finished", logging.Duration("elapsed", c.now().Sub(decryptStart)))

	if err := os.MkdirAll(plan.OutputDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "split", "output dir", "", err)
	}
	splitCtx := services.WithStage(ctx, "split")
	total := len(plan.Tracks)
	for _, track := range plan.Tracks {
		if err := ctx.Err(); err != nil {
			return err
		}
		trackCtx := services.WithChapter(splitCtx, track.Number)
		trackLogger := logging.WithContext(trackCtx, c.logger)
		trackLogger.Info("extracting chapter",
			logging.String("title", track.Title),
			logging.String("path", track.Path),
		)
		if err := c.transcoder.ExtractChapter(trackCtx, transcode.ChapterRequest{
			Input:      intermediate,
			Output:     track.Path,
			Start:      track.Start,
			End:        track.End,
			ID3Version: c.cfg.Encoding.ID3v2Version,
			Tags:       track.Tags(plan.Book),
		}); err != nil {
			return fmt.Errorf("chapter %d of %d: %w", track.Number, total, err)
		}
		if c.cfg.Output.TrackTotal {
			if err := c.tagTrack(track.Path, track.Number, total); err != nil {
				return services.Wrap(services.ErrExternalTool, "split", "track total", track.Path, err)
			}
		}
	}

	if c.cfg.Output.Verify {
		report, err := c.checker.Check(services.WithStage(ctx, "verify"), verify.ExpectationsFromPlan(plan, c.cfg.Output.TrackTotal))
		if err != nil {
			return err
		}
		result.Verification = &report
		if !report.OK() {
			return services.Wrap(services.ErrValidation, "verify", "chapter files",
				fmt.Sprintf("%d of %d files failed verification", report.Failed(), len(report.Results)), nil)
		}
		logger.Info("chapter files verified", logging.Int("files", len(report.Results)))
	}

	if c.cfg.Output.KeepIntermediate {
		dest := filepath.Join(plan.OutputDir, textutil.SanitizePathComponent(plan.Book.Title)+"."+ext)
		if err := fileutil.MoveFile(intermediate, dest, c.cfg.Output.Overwrite); err != nil {
			return services.Wrap(services.ErrConfiguration, "finalize", "keep intermediate", "", err)
		}
		result.Intermediate = dest
		logger.Info("kept decoded file", logging.String("path", dest))
	}
	return nil
}

func (c *Converter) probeBook(ctx context.Context, input string) (audiobook.Book, error) {
	probed, err := c.probe(ctx, c.cfg.FFprobeBinary(), input)
	if err != nil {
		return audiobook.Book{}, services.Wrap(services.ErrExternalTool, "probe", "ffprobe", "", err)
	}
	book, err := audiobook.FromProbe(probed)
	if err != nil {
		return audiobook.Book{}, err
	}
	logging.WithContext(ctx, c.logger).Debug("metadata read",
		logging.String("filename", book.Filename),
		logging.String("title", book.Title),
		logging.Int("chapters", len(book.Chapters)),
	)
	return book, nil
}

func (c *Converter) activationBytes(override string) (string, error) {
	key := config.NormalizeActivationBytes(override)
	if key == "" {
		key = c.cfg.Audible.ActivationBytes
	}
	if key == "" {
		return "", services.Wrap(services.ErrConfiguration, "decrypt", "activation bytes",
			"not provided; pass them as an argument, set [audible] activation_bytes or "+config.ActivationBytesEnv, nil)
	}
	if err := config.ValidateActivationBytes(key); err != nil {
		return "", services.Wrap(services.ErrValidation, "decrypt", "activation bytes", "", err)
	}
	return key, nil
}

func statInput(input string) (string, int64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", 0, services.Wrap(services.ErrValidation, "probe", "input", "path required", nil)
	}
	abs, err := config.ExpandPath(input)
	if err != nil {
		return "", 0, services.Wrap(services.ErrValidation, "probe", "input", "", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", 0, services.Wrap(services.ErrNotFound, "probe", "input", abs, nil)
		}
		return "", 0, services.Wrap(services.ErrValidation, "probe", "input", "", err)
	}
	if info.IsDir() {
		return "", 0, services.Wrap(services.ErrValidation, "probe", "input", abs+" is a directory", nil)
	}
	return abs, info.Size(), nil
}

func lockOutputDir(dir string) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "split", "output dir", "", err)
	}
	lockPath := filepath.Join(dir, LockFileName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "split", "lock", lockPath, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrTransient, "split", "lock", "another conversion is writing "+dir, nil)
	}
	// The lock file is never unlinked so every process locks the same inode.
	return func() { _ = lock.Unlock() }, nil
}

// missingDirs returns dir and its ancestors below base that do not exist yet,
// deepest first. base itself is never included.
func missingDirs(dir, base string) []string {
	base = filepath.Clean(base)
	var missing []string
	for p := filepath.Clean(dir); p != base && filepath.Dir(p) != p; p = filepath.Dir(p) {
		if _, err := os.Lstat(p); err == nil {
			break
		}
		missing = append(missing, p)
	}
	return missing
}

// pruneEmptyDirs removes directories a failed run created when they hold
// nothing but the lock file.
func pruneEmptyDirs(dirs []string) {
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		if len(entries) == 1 && entries[0].Name() == LockFileName {
			_ = os.Remove(filepath.Join(dir, LockFileName))
		} else if len(entries) > 0 {
			return
		}
		if os.Remove(dir) != nil {
			return
		}
	}
}

func ensureFresh(plan audiobook.Plan) error {
	for _, track := range plan.Tracks {
		if _, err := os.Lstat(track.Path); err == nil {
			return services.Wrap(services.ErrValidation, "plan", "output",
				track.Path+" already exists (enable output.overwrite or pass --overwrite)", nil)
		}
	}
	return nil
}

func dirExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
