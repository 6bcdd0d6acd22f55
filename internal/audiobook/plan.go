package audiobook

import (
	"fmt"
	"path/filepath"
	"strconv"

	"aaxsplit/internal/textutil"
)

// Plan lists the files a conversion will produce.
type Plan struct {
	Book      Book
	OutputDir string
	Tracks    []Track
}

// Track is one planned chapter file.
type Track struct {
	Number int
	Title  string
	Start  string
	End    string
	Path   string
}

// Tag is an ordered metadata key/value pair written to a chapter file.
type Tag struct {
	Key   string
	Value string
}

// BuildPlan places the book under baseDir/<album artist>/<title> and numbers
// tracks from 1 in chapter order.
func BuildPlan(book Book, baseDir, ext string) Plan {
	outputDir := filepath.Join(
		baseDir,
		textutil.SanitizePathComponent(book.AlbumArtist),
		textutil.SanitizePathComponent(book.Title),
	)
	plan := Plan{
		Book:      book,
		OutputDir: outputDir,
		Tracks:    make([]Track, 0, len(book.Chapters)),
	}
	for i, ch := range book.Chapters {
		number := i + 1
		name := chapterFileStem(number, ch.Title)
		if ext != "" {
			name += "." + ext
		}
		plan.Tracks = append(plan.Tracks, Track{
			Number: number,
			Title:  ch.Title,
			Start:  ch.Start,
			End:    ch.End,
			Path:   filepath.Join(outputDir, name),
		})
	}
	return plan
}

// chapterFileStem is "NN - title", or just "NN" when the title sanitizes
// to nothing.
func chapterFileStem(number int, title string) string {
	prefix := fmt.Sprintf("%02d", number)
	name := textutil.SanitizePathComponent(prefix + " - " + title)
	if name == prefix+" -" {
		return prefix
	}
	return name
}

// Tags returns the metadata written to the track's file.
func (t Track) Tags(book Book) []Tag {
	return []Tag{
		{Key: "track", Value: strconv.Itoa(t.Number)},
		{Key: "title", Value: t.Title},
		{Key: "artist", Value: book.Artist},
		{Key: "album_artist", Value: book.AlbumArtist},
		{Key: "album", Value: book.Title},
		{Key: "comment", Value: book.Comment},
		{Key: "copyright", Value: book.Copyright},
		{Key: "date", Value: book.Date},
		{Key: "genre", Value: book.Genre},
	}
}
