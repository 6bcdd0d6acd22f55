// Package tagging rewrites ID3v2 frames on chapter files after ffmpeg has
// written them.
package tagging

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
)

const trackFrameDescription = "Track number/Position in set"

// SetTrackTotal replaces the track frame with "number/total".
func SetTrackTotal(path string, number, total int) error {
	if number <= 0 {
		return fmt.Errorf("set track total: invalid track number %d", number)
	}
	if total < number {
		return fmt.Errorf("set track total: total %d below track %d", total, number)
	}
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3 tag %q: %w", path, err)
	}
	defer tag.Close()

	value := strconv.Itoa(number) + "/" + strconv.Itoa(total)
	tag.AddTextFrame(tag.CommonID(trackFrameDescription), id3v2.EncodingUTF8, value)
	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3 tag %q: %w", path, err)
	}
	return nil
}

// TrackNumber reads the track frame and returns its number and total.
// total is zero when the frame carries no "/N" part.
func TrackNumber(path string) (number, total int, err error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return 0, 0, fmt.Errorf("open id3 tag %q: %w", path, err)
	}
	defer tag.Close()

	frame := tag.GetTextFrame(tag.CommonID(trackFrameDescription))
	return ParseTrack(frame.Text)
}

// ParseTrack splits an ID3 "n" or "n/N" track value.
func ParseTrack(value string) (number, total int, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, 0, errors.New("track frame empty")
	}
	numPart, totalPart, hasTotal := strings.Cut(value, "/")
	number, err = strconv.Atoi(strings.TrimSpace(numPart))
	if err != nil {
		return 0, 0, fmt.Errorf("parse track number %q: %w", value, err)
	}
	if hasTotal {
		total, err = strconv.Atoi(strings.TrimSpace(totalPart))
		if err != nil {
			return 0, 0, fmt.Errorf("parse track total %q: %w", value, err)
		}
	}
	return number, total, nil
}
