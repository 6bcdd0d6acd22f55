package converter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"

	"aaxsplit/internal/config"
	"aaxsplit/internal/history"
	"aaxsplit/internal/logging"
	"aaxsplit/internal/media/ffprobe"
	"aaxsplit/internal/services"
	"aaxsplit/internal/staging"
	"aaxsplit/internal/testsupport"
	"aaxsplit/internal/transcode"
	"aaxsplit/internal/verify"
)

func probeResult() ffprobe.Result {
	return ffprobe.Result{
		Format: ffprobe.Format{
			Filename: "/in/book.aax",
			BitRate:  "64784",
			Duration: "3600.0",
			Tags: map[string]string{
				"title":        "The Book: Part 1 (Unabridged)",
				"artist":       "A. Author",
				"album_artist": "A. Author",
				"genre":        "Audiobook",
				"copyright":    "&#169;2001 Publisher",
			},
		},
		Chapters: []ffprobe.Chapter{
			{ID: 0, StartTime: "0.000000", EndTime: "22.383000", Tags: map[string]string{"title": "Opening Credits"}},
			{ID: 1, StartTime: "22.383000", EndTime: "1897.213000", Tags: map[string]string{"title": "Chapter 1"}},
			{ID: 2, StartTime: "1897.213000", EndTime: "3600.000000", Tags: map[string]string{"title": "Chapter 2"}},
		},
	}
}

func fakeProber(result ffprobe.Result, err error) Prober {
	return func(context.Context, string, string) (ffprobe.Result, error) {
		return result, err
	}
}

type fakeTranscoder struct {
	mu          sync.Mutex
	decrypts    []transcode.DecryptRequest
	chapters    []transcode.ChapterRequest
	failChapter int
	failDecrypt bool
}

func (f *fakeTranscoder) Decrypt(_ context.Context, req transcode.DecryptRequest) error {
	f.mu.Lock()
	f.decrypts = append(f.decrypts, req)
	f.mu.Unlock()
	if f.failDecrypt {
		return services.Wrap(services.ErrExternalTool, "decrypt", "ffmpeg", "Invalid data found when processing input", nil)
	}
	return os.WriteFile(req.Output, []byte("decoded audio"), 0o644)
}

func (f *fakeTranscoder) ExtractChapter(ctx context.Context, req transcode.ChapterRequest) error {
	f.mu.Lock()
	f.chapters = append(f.chapters, req)
	n := len(f.chapters)
	f.mu.Unlock()
	if track, ok := services.ChapterFromContext(ctx); !ok || track != n {
		return errors.New("chapter missing from context")
	}
	if n == f.failChapter {
		return services.Wrap(services.ErrExternalTool, "split", "ffmpeg", "Invalid argument", nil)
	}
	return os.WriteFile(req.Output, []byte("chapter"), 0o644)
}

type memoryLedger struct {
	runs []*history.Run
}

func (m *memoryLedger) LastCompleted(_ context.Context, path string, size int64) (*history.Run, error) {
	for i := len(m.runs) - 1; i >= 0; i-- {
		r := m.runs[i]
		if r.InputPath == path && r.InputSize == size && r.Status == history.StatusCompleted {
			return r, nil
		}
	}
	return nil, nil
}

func (m *memoryLedger) Begin(_ context.Context, run *history.Run) error {
	run.Status = history.StatusRunning
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryLedger) Finish(_ context.Context, runID string, status history.Status, runErr error) error {
	for _, r := range m.runs {
		if r.RunID == runID {
			r.Status = status
			if runErr != nil {
				r.ErrorMessage = runErr.Error()
			}
			return nil
		}
	}
	return errors.New("unknown run")
}

type fixture struct {
	cfg        *config.Config
	input      string
	transcoder *fakeTranscoder
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	input := testsupport.WriteInput(t, filepath.Join(testsupport.BaseDir(cfg), "in", "book.aax"), 2048)
	return &fixture{cfg: cfg, input: input, transcoder: &fakeTranscoder{}}
}

func (f *fixture) converter(opts ...Option) *Converter {
	base := []Option{
		WithProber(fakeProber(probeResult(), nil)),
		WithTranscoder(f.transcoder),
	}
	return New(f.cfg, logging.NewNop(), append(base, opts...)...)
}

func TestConvertWritesChapters(t *testing.T) {
	f := newFixture(t)

	result, err := f.converter().Convert(context.Background(), Request{Input: f.input})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	wantDir := filepath.Join(f.cfg.Paths.OutputDir, "A. Author", "The Book- Part 1")
	if result.Plan.OutputDir != wantDir {
		t.Fatalf("output dir = %q, want %q", result.Plan.OutputDir, wantDir)
	}
	if result.RunID == "" || result.Skipped {
		t.Fatalf("unexpected result: %+v", result)
	}

	if len(f.transcoder.decrypts) != 1 {
		t.Fatalf("expected one decode pass, got %d", len(f.transcoder.decrypts))
	}
	dec := f.transcoder.decrypts[0]
	if dec.ActivationBytes != "1a2b3c4d" || dec.BitRate != "64784" || dec.Codec != "libmp3lame" {
		t.Fatalf("unexpected decrypt request: %+v", dec)
	}
	if dec.Input != f.input {
		t.Fatalf("decrypt input = %q, want %q", dec.Input, f.input)
	}

	if len(f.transcoder.chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(f.transcoder.chapters))
	}
	first := f.transcoder.chapters[0]
	if first.Input != dec.Output || first.Start != "0.000000" || first.End != "22.383000" || first.ID3Version != 3 {
		t.Fatalf("unexpected chapter request: %+v", first)
	}
	if first.Tags[0].Key != "track" || first.Tags[0].Value != "1" {
		t.Fatalf("expected track tag first, got %+v", first.Tags[0])
	}
	last := f.transcoder.chapters[2]
	if filepath.Base(last.Output) != "03 - Chapter 2.mp3" {
		t.Fatalf("unexpected file name %q", filepath.Base(last.Output))
	}
	for _, track := range result.Plan.Tracks {
		if _, err := os.Stat(track.Path); err != nil {
			t.Fatalf("expected %s written: %v", track.Path, err)
		}
	}

	dirs, err := staging.ListDirectories(f.cfg.Paths.WorkDir)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 0 {
		t.Fatalf("expected work directory removed, found %v", dirs)
	}
	if _, err := os.Stat(filepath.Join(wantDir, LockFileName)); err != nil {
		t.Fatalf("expected lock file left in place: %v", err)
	}
}

func TestConvertRelocksAfterPreviousRun(t *testing.T) {
	f := newFixture(t, testsupport.WithOutput(config.Output{Overwrite: true}))
	conv := f.converter()
	for i := 0; i < 2; i++ {
		if _, err := conv.Convert(context.Background(), Request{Input: f.input}); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}
}

func TestConvertDecryptFailureRemovesEmptyBookDir(t *testing.T) {
	f := newFixture(t)
	f.transcoder.failDecrypt = true

	_, err := f.converter().Convert(context.Background(), Request{Input: f.input})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.cfg.Paths.OutputDir, "A. Author")); !os.IsNotExist(err) {
		t.Fatalf("expected album artist directory removed, stat err = %v", err)
	}
	if _, err := os.Stat(f.cfg.Paths.OutputDir); err != nil {
		t.Fatalf("base output directory is not pruned: %v", err)
	}
}

func TestConvertFailureKeepsExistingDirs(t *testing.T) {
	f := newFixture(t)
	f.transcoder.failDecrypt = true
	artistDir := filepath.Join(f.cfg.Paths.OutputDir, "A. Author")
	other := filepath.Join(artistDir, "Another Book", "01 - One.mp3")
	testsupport.WriteInput(t, other, 1)

	if _, err := f.converter().Convert(context.Background(), Request{Input: f.input}); err == nil {
		t.Fatal("expected decrypt failure")
	}
	if _, err := os.Stat(filepath.Join(artistDir, "The Book- Part 1")); !os.IsNotExist(err) {
		t.Fatalf("expected new book directory removed, stat err = %v", err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Fatalf("existing files must survive: %v", err)
	}
}

func TestConvertChapterFailureKeepsWrittenFiles(t *testing.T) {
	f := newFixture(t)
	f.transcoder.failChapter = 2

	result, err := f.converter().Convert(context.Background(), Request{Input: f.input})
	if err == nil {
		t.Fatal("expected chapter failure")
	}
	if _, err := os.Stat(result.Plan.Tracks[0].Path); err != nil {
		t.Fatalf("expected first chapter kept: %v", err)
	}
}

func TestConvertBitRateOverride(t *testing.T) {
	f := newFixture(t)
	f.cfg.Encoding.BitRate = "128k"

	if _, err := f.converter().Convert(context.Background(), Request{Input: f.input}); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got := f.transcoder.decrypts[0].BitRate; got != "128k" {
		t.Fatalf("expected configured bit rate, got %q", got)
	}
}

func TestConvertRequestOverrides(t *testing.T) {
	f := newFixture(t)
	outDir := filepath.Join(testsupport.BaseDir(f.cfg), "elsewhere")

	result, err := f.converter().Convert(context.Background(), Request{
		Input:           f.input,
		ActivationBytes: " DEADBEEF ",
		OutputDir:       outDir,
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.HasPrefix(result.Plan.OutputDir, outDir) {
		t.Fatalf("expected output under %s, got %s", outDir, result.Plan.OutputDir)
	}
	if got := f.transcoder.decrypts[0].ActivationBytes; got != "deadbeef" {
		t.Fatalf("expected normalized override key, got %q", got)
	}
}

func TestConvertSkipsCompletedRun(t *testing.T) {
	f := newFixture(t)
	ledger := &memoryLedger{}
	conv := f.converter(WithLedger(ledger))

	first, err := conv.Convert(context.Background(), Request{Input: f.input})
	if err != nil {
		t.Fatalf("first Convert: %v", err)
	}
	if len(ledger.runs) != 1 || ledger.runs[0].Status != history.StatusCompleted {
		t.Fatalf("expected completed run recorded, got %+v", ledger.runs)
	}
	if ledger.runs[0].Chapters != 3 || ledger.runs[0].Title != "The Book: Part 1" {
		t.Fatalf("unexpected recorded run: %+v", ledger.runs[0])
	}

	second, err := conv.Convert(context.Background(), Request{Input: f.input})
	if err != nil {
		t.Fatalf("second Convert: %v", err)
	}
	if !second.Skipped || second.PreviousRun == nil || second.PreviousRun.RunID != first.RunID {
		t.Fatalf("expected skip referencing first run, got %+v", second)
	}
	if len(f.transcoder.decrypts) != 1 {
		t.Fatalf("expected no second decode, got %d", len(f.transcoder.decrypts))
	}

	f.cfg.Output.Overwrite = true
	forced, err := conv.Convert(context.Background(), Request{Input: f.input, Force: true})
	if err != nil {
		t.Fatalf("forced Convert: %v", err)
	}
	if forced.Skipped {
		t.Fatal("expected forced run to convert")
	}
	if len(ledger.runs) != 2 {
		t.Fatalf("expected two recorded runs, got %d", len(ledger.runs))
	}
}

func TestConvertRefusesExistingOutput(t *testing.T) {
	f := newFixture(t)
	conv := f.converter()
	if _, err := conv.Convert(context.Background(), Request{Input: f.input}); err != nil {
		t.Fatalf("first Convert: %v", err)
	}

	_, err := conv.Convert(context.Background(), Request{Input: f.input})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.transcoder.decrypts) != 1 {
		t.Fatal("expected refusal before decoding")
	}
}

func TestConvertRecordsChapterFailure(t *testing.T) {
	f := newFixture(t)
	f.transcoder.failChapter = 2
	ledger := &memoryLedger{}

	_, err := f.converter(WithLedger(ledger)).Convert(context.Background(), Request{Input: f.input})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "chapter 2 of 3") {
		t.Fatalf("expected chapter position in error, got %v", err)
	}
	if len(f.transcoder.chapters) != 2 {
		t.Fatalf("expected extraction to stop at the failure, got %d calls", len(f.transcoder.chapters))
	}
	if ledger.runs[0].Status != history.StatusFailed || ledger.runs[0].ErrorMessage == "" {
		t.Fatalf("expected failed run recorded, got %+v", ledger.runs[0])
	}
}

func TestConvertActivationBytesErrors(t *testing.T) {
	f := newFixture(t, testsupport.WithActivationBytes(""))

	_, err := f.converter().Convert(context.Background(), Request{Input: f.input})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	_, err = f.converter().Convert(context.Background(), Request{Input: f.input, ActivationBytes: "nothex!!"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.transcoder.decrypts) != 0 {
		t.Fatal("expected no ffmpeg calls")
	}
}

func TestConvertMissingInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.converter().Convert(context.Background(), Request{Input: filepath.Join(t.TempDir(), "missing.aax")})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if services.ExitCode(err) != services.ExitValidation {
		t.Fatalf("unexpected exit code %d", services.ExitCode(err))
	}
}

func TestConvertProbeFailure(t *testing.T) {
	f := newFixture(t)
	conv := f.converter(WithProber(fakeProber(ffprobe.Result{}, errors.New("ffprobe returned error: Invalid data"))))

	_, err := conv.Convert(context.Background(), Request{Input: f.input})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestConvertMissingMetadata(t *testing.T) {
	f := newFixture(t)
	probed := probeResult()
	delete(probed.Format.Tags, "album_artist")

	_, err := f.converter(WithProber(fakeProber(probed, nil))).Convert(context.Background(), Request{Input: f.input})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "album_artist") {
		t.Fatalf("expected field name in error, got %v", err)
	}
}

type fakeChecker struct {
	expectations []verify.Expectation
	report       verify.Report
}

func (c *fakeChecker) Check(_ context.Context, exps []verify.Expectation) (verify.Report, error) {
	c.expectations = exps
	return c.report, nil
}

func TestConvertTrackTotalAndVerify(t *testing.T) {
	f := newFixture(t, testsupport.WithOutput(config.Output{TrackTotal: true, Verify: true}))
	type tagged struct{ number, total int }
	var tags []tagged
	checker := &fakeChecker{}

	result, err := f.converter(
		WithTrackTagger(func(_ string, number, total int) error {
			tags = append(tags, tagged{number, total})
			return nil
		}),
		WithChecker(checker),
	).Convert(context.Background(), Request{Input: f.input})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(tags) != 3 || tags[2] != (tagged{3, 3}) {
		t.Fatalf("unexpected track totals: %+v", tags)
	}
	if len(checker.expectations) != 3 || checker.expectations[0].TrackTotal != 3 {
		t.Fatalf("unexpected expectations: %+v", checker.expectations)
	}
	if result.Verification == nil {
		t.Fatal("expected verification report on result")
	}
}

func TestConvertVerifyFailure(t *testing.T) {
	f := newFixture(t, testsupport.WithOutput(config.Output{Verify: true}))
	checker := &fakeChecker{report: verify.Report{Results: []verify.Result{
		{Path: "a", Problems: []string{"zero duration"}},
		{Path: "b"},
	}}}

	result, err := f.converter(WithChecker(checker)).Convert(context.Background(), Request{Input: f.input})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "1 of 2 files failed verification") {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Verification == nil || result.Verification.Failed() != 1 {
		t.Fatalf("expected report on result, got %+v", result.Verification)
	}
}

func TestConvertKeepIntermediate(t *testing.T) {
	f := newFixture(t, testsupport.WithOutput(config.Output{KeepIntermediate: true}))

	result, err := f.converter().Convert(context.Background(), Request{Input: f.input})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	want := filepath.Join(result.Plan.OutputDir, "The Book- Part 1.mp3")
	if result.Intermediate != want {
		t.Fatalf("intermediate = %q, want %q", result.Intermediate, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read intermediate: %v", err)
	}
	if string(data) != "decoded audio" {
		t.Fatalf("unexpected intermediate content %q", data)
	}
}

func TestConvertLockedOutputDir(t *testing.T) {
	f := newFixture(t)
	bookDir := filepath.Join(f.cfg.Paths.OutputDir, "A. Author", "The Book- Part 1")
	if err := os.MkdirAll(bookDir, 0o755); err != nil {
		t.Fatal(err)
	}
	held := flock.New(filepath.Join(bookDir, LockFileName))
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("pre-lock: %v %v", ok, err)
	}
	defer held.Unlock()

	_, err = f.converter().Convert(context.Background(), Request{Input: f.input})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected lock contention error, got %v", err)
	}
	if len(f.transcoder.decrypts) != 0 {
		t.Fatal("expected no decode while locked")
	}
}

func TestConvertCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.converter().Convert(ctx, Request{Input: f.input})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestProbe(t *testing.T) {
	f := newFixture(t)
	book, err := f.converter().Probe(context.Background(), f.input)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if book.Title != "The Book: Part 1" || book.Copyright != "©2001 Publisher" || len(book.Chapters) != 3 {
		t.Fatalf("unexpected book: %+v", book)
	}
}

func TestMissingDirsStopsAtBase(t *testing.T) {
	base := t.TempDir()
	got := missingDirs(filepath.Join(base, "a", "b"), base)
	want := []string{filepath.Join(base, "a", "b"), filepath.Join(base, "a")}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("missingDirs = %v, want %v", got, want)
	}
	if err := os.Mkdir(filepath.Join(base, "a"), 0o755); err != nil {
		t.Fatal(err)
	}
	if got := missingDirs(filepath.Join(base, "a", "b"), base); len(got) != 1 {
		t.Fatalf("expected only the leaf, got %v", got)
	}
}
