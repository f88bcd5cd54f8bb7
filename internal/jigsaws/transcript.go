package jigsaws

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"haptic-trainer/internal/common/errors"
)

// Segment is one gesture annotation: an inclusive 1-based frame span.
type Segment struct {
	StartFrame int    `json:"startFrame"`
	EndFrame   int    `json:"endFrame"`
	GestureID  int    `json:"gestureId"`
	Gesture    string `json:"gesture"`
}

// Window converts the frame span to elapsed time. The span covers the start
// of the first frame through the end of the last.
func (s Segment) Window() (start, end time.Duration) {
	return time.Duration(s.StartFrame-1) * FrameDuration,
		time.Duration(s.EndFrame) * FrameDuration
}

// ParseTranscript reads gesture annotations, one `start end G<id>` triple
// per line. The gesture field accepts both the G-prefixed and bare integer
// forms found in the dataset.
func ParseTranscript(r io.Reader) ([]Segment, error) {
	var segments []Segment
	scanner := bufio.NewScanner(r)

	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: expected `start end gesture`, got %d fields", line, len(fields))
		}

		start, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: start frame %q is not an integer", line, fields[0])
		}
		end, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: end frame %q is not an integer", line, fields[1])
		}
		if start < 1 {
			return nil, fmt.Errorf("line %d: start frame %d is not 1-based", line, start)
		}
		if end < start {
			return nil, fmt.Errorf("line %d: end frame %d precedes start frame %d", line, end, start)
		}

		id, err := parseGestureID(fields[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		segments = append(segments, Segment{
			StartFrame: start,
			EndFrame:   end,
			GestureID:  id,
			Gesture:    GestureLabel(id),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return segments, nil
}

// LoadTranscript parses a transcript file from disk.
func LoadTranscript(path string) ([]Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDatasetParseFailedError(path, err)
	}
	defer f.Close()

	segments, err := ParseTranscript(f)
	if err != nil {
		return nil, errors.NewDatasetParseFailedError(path, err)
	}
	return segments, nil
}

func parseGestureID(field string) (int, error) {
	s := field
	if strings.HasPrefix(s, "G") {
		s = s[1:]
	}
	id, err := strconv.Atoi(s)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("gesture %q is not a valid gesture label", field)
	}
	return id, nil
}

// SliceFrames returns the frames covered by a segment, clipped to the
// recording bounds. The result aliases the input slice.
func SliceFrames(frames []Frame, seg Segment) []Frame {
	lo := seg.StartFrame - 1
	if lo < 0 {
		lo = 0
	}
	hi := seg.EndFrame
	if hi > len(frames) {
		hi = len(frames)
	}
	if lo >= hi {
		return nil
	}
	return frames[lo:hi]
}
