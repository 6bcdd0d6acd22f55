package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/simonhull/audiometa"

	"aaxsplit/internal/audiobook"
)

// Metadata is the subset of a chapter file's tags that verification inspects.
type Metadata struct {
	Format     string
	Title      string
	Album      string
	Artist     string
	Track      int
	TrackTotal int
	Duration   time.Duration
}

// Reader loads metadata for one file.
type Reader func(ctx context.Context, path string) (Metadata, error)

// ReadFile opens path with audiometa.
func ReadFile(ctx context.Context, path string) (Metadata, error) {
	file, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return Metadata{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck
	return fromFile(file), nil
}

func fromFile(file *audiometa.File) Metadata {
	return Metadata{
		Format:     file.Format.String(),
		Title:      file.Tags.Title,
		Album:      file.Tags.Album,
		Artist:     file.Tags.Artist,
		Track:      file.Tags.TrackNumber,
		TrackTotal: file.Tags.TrackTotal,
		Duration:   file.Audio.Duration,
	}
}

// Expectation is what one chapter file should contain.
type Expectation struct {
	Path       string
	Title      string
	Album      string
	Artist     string
	Track      int
	TrackTotal int
}

// ExpectationsFromPlan derives one expectation per planned track.
func ExpectationsFromPlan(plan audiobook.Plan, trackTotal bool) []Expectation {
	expectations := make([]Expectation, 0, len(plan.Tracks))
	for _, track := range plan.Tracks {
		exp := Expectation{
			Path:   track.Path,
			Title:  track.Title,
			Album:  plan.Book.Title,
			Artist: plan.Book.Artist,
			Track:  track.Number,
		}
		if trackTotal {
			exp.TrackTotal = len(plan.Tracks)
		}
		expectations = append(expectations, exp)
	}
	return expectations
}

// Result is the outcome for one file.
type Result struct {
	Path     string
	Metadata Metadata
	Problems []string
}

// OK reports whether the file passed every check.
func (r Result) OK() bool {
	return len(r.Problems) == 0
}

// Report aggregates per-file results.
type Report struct {
	Results []Result
}

// Failed returns the number of files with problems.
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.OK() {
			n++
		}
	}
	return n
}

// OK reports whether every file passed.
func (r Report) OK() bool {
	return r.Failed() == 0
}

// Verifier checks chapter files.
type Verifier struct {
	read Reader
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithReader replaces the audiometa-backed reader.
func WithReader(read Reader) Option {
	return func(v *Verifier) {
		if read != nil {
			v.read = read
		}
	}
}

// New constructs a Verifier.
func New(opts ...Option) *Verifier {
	v := &Verifier{read: ReadFile}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check compares every expectation against the file on disk.
func (v *Verifier) Check(ctx context.Context, expectations []Expectation) (Report, error) {
	report := Report{Results: make([]Result, 0, len(expectations))}
	for _, exp := range expectations {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Results = append(report.Results, v.checkOne(ctx, exp))
	}
	return report, nil
}

// CheckDirectory verifies the chapter files in dir: files named "NN.ext" or
// "NN - title.ext". Other files, such as a kept decoded copy of the whole
// book, are ignored. Each file is expected to carry the track number of its
// prefix.
func (v *Verifier) CheckDirectory(ctx context.Context, dir, ext string) (Report, error) {
	files, err := listChapterFiles(dir, ext)
	if err != nil {
		return Report{}, err
	}
	if len(files) == 0 {
		return Report{}, fmt.Errorf("no chapter .%s files in %s", ext, dir)
	}
	expectations := make([]Expectation, 0, len(files))
	for _, f := range files {
		expectations = append(expectations, Expectation{Path: f.path, Track: f.track})
	}
	return v.Check(ctx, expectations)
}

func (v *Verifier) checkOne(ctx context.Context, exp Expectation) Result {
	result := Result{Path: exp.Path}
	meta, err := v.read(ctx, exp.Path)
	if err != nil {
		result.Problems = append(result.Problems, err.Error())
		return result
	}
	result.Metadata = meta

	result.Problems = append(result.Problems, compareTag("title", exp.Title, meta.Title)...)
	result.Problems = append(result.Problems, compareTag("album", exp.Album, meta.Album)...)
	result.Problems = append(result.Problems, compareTag("artist", exp.Artist, meta.Artist)...)
	if exp.Track > 0 && meta.Track != exp.Track {
		result.Problems = append(result.Problems, fmt.Sprintf("track %d, want %d", meta.Track, exp.Track))
	}
	if exp.TrackTotal > 0 && meta.TrackTotal != exp.TrackTotal {
		result.Problems = append(result.Problems, fmt.Sprintf("track total %d, want %d", meta.TrackTotal, exp.TrackTotal))
	}
	if meta.Duration <= 0 {
		result.Problems = append(result.Problems, "zero duration")
	}
	return result
}

// compareTag checks a tag only when a value is expected.
func compareTag(name, want, got string) []string {
	if want == "" {
		return nil
	}
	if strings.TrimSpace(got) == "" {
		return []string{name + " tag missing"}
	}
	if got != want {
		return []string{fmt.Sprintf("%s %q, want %q", name, got, want)}
	}
	return nil
}

// chapterName matches the stem of a chapter file and captures its number.
var chapterName = regexp.MustCompile(`^(\d+)(?: - .*)?$`)

type chapterFile struct {
	path  string
	track int
}

func listChapterFiles(dir, ext string) ([]chapterFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	suffix := "." + strings.TrimPrefix(strings.ToLower(ext), ".")
	var files []chapterFile
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(strings.ToLower(name), suffix) {
			continue
		}
		m := chapterName.FindStringSubmatch(name[:len(name)-len(suffix)])
		if m == nil {
			continue
		}
		track, err := strconv.Atoi(m[1])
		if err != nil || track <= 0 {
			continue
		}
		files = append(files, chapterFile{path: filepath.Join(dir, name), track: track})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].track != files[j].track {
			return files[i].track < files[j].track
		}
		return files[i].path < files[j].path
	})
	return files, nil
}
