package audiobook

import (
	"fmt"
	"html"
	"strings"

	"aaxsplit/internal/media/ffprobe"
	"aaxsplit/internal/services"
)

const unabridgedSuffix = " (Unabridged)"

// Book is the subset of container metadata needed to split and tag chapters.
type Book struct {
	Filename    string
	Title       string
	Artist      string
	AlbumArtist string
	Genre       string
	Date        string
	Comment     string
	Copyright   string
	// BitRate is the source bit rate as printed by ffprobe (bits per second).
	BitRate  string
	Duration string
	Chapters []Chapter
}

// Chapter is a named time range. Start and End are ffprobe's decimal
// second strings, passed to ffmpeg unchanged.
type Chapter struct {
	Index int
	Start string
	End   string
	Title string
}

// MissingFieldError reports a required metadata field that ffprobe did not emit.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("metadata field %s is missing", e.Field)
}

// FromProbe extracts a Book from ffprobe output. Required fields that are
// absent produce a validation error wrapping *MissingFieldError.
func FromProbe(result ffprobe.Result) (Book, error) {
	book := Book{
		Filename: result.Format.Filename,
		Duration: strings.TrimSpace(result.Format.Duration),
		BitRate:  strings.TrimSpace(result.Format.BitRate),
	}
	if book.BitRate == "" {
		return Book{}, missing("format.bit_rate")
	}

	var err error
	if book.Title, err = requiredTag(result, "title"); err != nil {
		return Book{}, err
	}
	if book.Artist, err = requiredTag(result, "artist"); err != nil {
		return Book{}, err
	}
	if book.AlbumArtist, err = requiredTag(result, "album_artist"); err != nil {
		return Book{}, err
	}
	book.Title = TrimUnabridged(book.Title)
	book.Genre, _ = result.Tag("genre")
	book.Date, _ = result.Tag("date")
	book.Comment, _ = result.Tag("comment")
	if copyright, ok := result.Tag("copyright"); ok {
		book.Copyright = html.UnescapeString(copyright)
	}

	if len(result.Chapters) == 0 {
		return Book{}, services.Wrap(services.ErrValidation, "probe", "chapters", "container lists no chapters", nil)
	}
	book.Chapters = make([]Chapter, 0, len(result.Chapters))
	for i, ch := range result.Chapters {
		chapter := Chapter{
			Index: i,
			Start: strings.TrimSpace(ch.StartTime),
			End:   strings.TrimSpace(ch.EndTime),
		}
		if chapter.Start == "" {
			return Book{}, missing(fmt.Sprintf("chapters[%d].start_time", i))
		}
		if chapter.End == "" {
			return Book{}, missing(fmt.Sprintf("chapters[%d].end_time", i))
		}
		title, ok := ch.Tag("title")
		if !ok {
			return Book{}, missing(fmt.Sprintf("chapters[%d].tags.title", i))
		}
		chapter.Title = title
		book.Chapters = append(book.Chapters, chapter)
	}
	return book, nil
}

// TrimUnabridged strips a trailing " (Unabridged)" from a title.
func TrimUnabridged(title string) string {
	return strings.TrimSuffix(title, unabridgedSuffix)
}

func requiredTag(result ffprobe.Result, name string) (string, error) {
	value, ok := result.Tag(name)
	if !ok {
		return "", missing("format.tags." + name)
	}
	return value, nil
}

func missing(field string) error {
	return services.Wrap(services.ErrValidation, "probe", "metadata", "", &MissingFieldError{Field: field})
}
