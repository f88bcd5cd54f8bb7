// internal/jigsaws/jigsaws_test.go
package jigsaws

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haptic-trainer/internal/common/errors"
	"haptic-trainer/internal/device"
)

// ==========================
// Test Helper Functions
// ==========================

// createTestKinematicsText builds rows where column c of row i holds
// i*100+c, so channel extraction is verifiable per cell.
func createTestKinematicsText(rows int) string {
	var sb strings.Builder
	for i := 0; i < rows; i++ {
		for c := 0; c < ColumnsPerFrame; c++ {
			if c > 0 {
				sb.WriteString(" ")
			}
			fmt.Fprintf(&sb, "%.4f", float64(i*100+c))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func createTestKinematics(t *testing.T, rows int) *Kinematics {
	k, err := ParseKinematics(strings.NewReader(createTestKinematicsText(rows)))
	require.NoError(t, err)
	return k
}

// ==========================
// Kinematics Parsing Tests
// ==========================

func TestParseKinematics(t *testing.T) {
	k := createTestKinematics(t, 3)
	assert.Equal(t, 3, k.Frames())
	assert.Equal(t, 3*FrameDuration, k.Duration())
}

func TestParseKinematics_SkipsBlankLines(t *testing.T) {
	text := createTestKinematicsText(1) + "\n\n" + createTestKinematicsText(1)
	k, err := ParseKinematics(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, 2, k.Frames())
}

func TestParseKinematics_WrongColumnCount(t *testing.T) {
	text := createTestKinematicsText(1) + "1.0 2.0 3.0\n"
	_, err := ParseKinematics(strings.NewReader(text))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "expected 76 columns, got 3")
}

func TestParseKinematics_NonNumericField(t *testing.T) {
	fields := strings.Fields(createTestKinematicsText(1))
	fields[4] = "bogus"
	_, err := ParseKinematics(strings.NewReader(strings.Join(fields, " ")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
	assert.Contains(t, err.Error(), "column 5")
}

func TestParseKinematics_Empty(t *testing.T) {
	_, err := ParseKinematics(strings.NewReader("\n\n"))
	assert.ErrorContains(t, err, "no kinematics rows")
}

func TestLoadKinematics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Suturing_B001.txt")
	require.NoError(t, os.WriteFile(path, []byte(createTestKinematicsText(2)), 0o644))

	k, err := LoadKinematics(path)
	require.NoError(t, err)
	assert.Equal(t, 2, k.Frames())
}

func TestLoadKinematics_MissingFile(t *testing.T) {
	_, err := LoadKinematics(filepath.Join(t.TempDir(), "absent.txt"))
	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeDatasetParseFailed, stdErr.Code)
}

// ==========================
// Channel Extraction Tests
// ==========================

func TestKinematics_Channel(t *testing.T) {
	k := createTestKinematics(t, 2)

	cases := []struct {
		manipulator Manipulator
		pos0        float64
		vel0        float64
		gripper     float64
	}{
		{MasterLeft, 0, 12, 18},
		{MasterRight, 19, 31, 37},
		{SlaveRight, 38, 50, 56},
		{SlaveLeft, 57, 69, 75},
	}
	for _, tc := range cases {
		t.Run(string(tc.manipulator), func(t *testing.T) {
			frames, err := k.Channel(tc.manipulator)
			require.NoError(t, err)
			require.Len(t, frames, 2)

			assert.Equal(t, device.Vec3{tc.pos0, tc.pos0 + 1, tc.pos0 + 2}, frames[0].Position)
			assert.Equal(t, device.Vec3{tc.vel0, tc.vel0 + 1, tc.vel0 + 2}, frames[0].Velocity)
			assert.Equal(t, tc.gripper, frames[0].Gripper)

			// Second row is offset by 100 in every column.
			assert.Equal(t, tc.pos0+100, frames[1].Position[0])
		})
	}
}

func TestKinematics_ChannelUnknown(t *testing.T) {
	k := createTestKinematics(t, 1)
	_, err := k.Channel(Manipulator("elbow"))
	assert.ErrorContains(t, err, "unknown manipulator")
}

func TestManipulator_Valid(t *testing.T) {
	assert.True(t, MasterLeft.Valid())
	assert.False(t, Manipulator("elbow").Valid())
	assert.Len(t, Manipulators(), 4)
}

// ==========================
// Transcript Parsing Tests
// ==========================

func TestParseTranscript(t *testing.T) {
	text := "1 120 G1\n121 180 G5\n\n181 240 12\n"
	segments, err := ParseTranscript(strings.NewReader(text))
	require.NoError(t, err)
	require.Len(t, segments, 3)

	assert.Equal(t, Segment{StartFrame: 1, EndFrame: 120, GestureID: 1, Gesture: "G1"}, segments[0])
	assert.Equal(t, 5, segments[1].GestureID)
	assert.Equal(t, "G12", segments[2].Gesture, "bare integer form is accepted")
}

func TestParseTranscript_Malformed(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"wrong field count", "1 120\n", "expected `start end gesture`"},
		{"non-integer start", "x 120 G1\n", "start frame"},
		{"non-integer end", "1 y G1\n", "end frame"},
		{"zero-based start", "0 120 G1\n", "not 1-based"},
		{"end before start", "120 1 G1\n", "precedes start"},
		{"bad gesture", "1 120 Gx\n", "not a valid gesture label"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTranscript(strings.NewReader(tc.text))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "line 1")
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadTranscript_MissingFile(t *testing.T) {
	_, err := LoadTranscript(filepath.Join(t.TempDir(), "absent.txt"))
	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeDatasetParseFailed, stdErr.Code)
}

func TestSegment_Window(t *testing.T) {
	start, end := Segment{StartFrame: 1, EndFrame: 30}.Window()
	assert.Equal(t, time.Duration(0), start)
	assert.Equal(t, time.Second, end)

	start, end = Segment{StartFrame: 31, EndFrame: 60}.Window()
	assert.Equal(t, time.Second, start)
	assert.Equal(t, 2*time.Second, end)
}

func TestSliceFrames(t *testing.T) {
	frames := make([]Frame, 10)
	for i := range frames {
		frames[i].Gripper = float64(i)
	}

	got := SliceFrames(frames, Segment{StartFrame: 3, EndFrame: 5})
	require.Len(t, got, 3)
	assert.Equal(t, 2.0, got[0].Gripper)
	assert.Equal(t, 4.0, got[2].Gripper)

	// Clipped to the recording length.
	got = SliceFrames(frames, Segment{StartFrame: 8, EndFrame: 50})
	assert.Len(t, got, 3)

	assert.Nil(t, SliceFrames(frames, Segment{StartFrame: 20, EndFrame: 30}))
}

func TestGestureWindows(t *testing.T) {
	segments := []Segment{
		{StartFrame: 1, EndFrame: 30, GestureID: 1, Gesture: "G1"},
		{StartFrame: 31, EndFrame: 90, GestureID: 2, Gesture: "G2"},
		{StartFrame: 61, EndFrame: 90, GestureID: 3, Gesture: "G3"},
	}

	windows := GestureWindows(segments, 60)
	require.Len(t, windows, 2, "window past the recording is dropped")

	assert.Equal(t, "G1", windows[0].Gesture)
	assert.Equal(t, time.Duration(0), windows[0].Start)
	assert.Equal(t, time.Second, windows[0].End)

	assert.Equal(t, "G2", windows[1].Gesture)
	assert.Equal(t, 2*time.Second, windows[1].End, "window overhanging the recording is clipped")
}

// ==========================
// Trajectory Conversion Tests
// ==========================

func TestToTrajectory(t *testing.T) {
	k := createTestKinematics(t, 90)
	frames, err := k.Channel(MasterLeft)
	require.NoError(t, err)

	tr, err := ToTrajectory("traj-001", TaskSuturing, "", frames)
	require.NoError(t, err)
	assert.Equal(t, FrameRateHz, tr.Rate)
	assert.Len(t, tr.Waypoints, 90)
	assert.Equal(t, 89*FrameDuration, tr.Duration())
	assert.Equal(t, FrameDuration, tr.Waypoints[1].Elapsed)
	assert.Equal(t, frames[1].Position, tr.Waypoints[1].Position)
}

func TestToTrajectory_TooShort(t *testing.T) {
	_, err := ToTrajectory("traj-001", TaskSuturing, "", []Frame{{}})
	assert.ErrorContains(t, err, "too short")
}

// ==========================
// Vocabulary Tests
// ==========================

func TestGestureVocabulary(t *testing.T) {
	assert.Equal(t, "Reaching for needle", DescribeGesture(1))
	assert.Equal(t, "Final knot adjustment", DescribeGesture(15))
	assert.Equal(t, "Gesture 7", DescribeGesture(7), "IDs outside the vocabulary fall back")
	assert.Equal(t, "G9", GestureLabel(9))
}

func TestTaskRegistry(t *testing.T) {
	assert.Len(t, Tasks(), 3)
	assert.True(t, ValidTask(TaskKnotTying))
	assert.False(t, ValidTask("Cutting"))
	assert.Equal(t, "Threading through metal hoops", DescribeTask(TaskNeedlePassing))
}
