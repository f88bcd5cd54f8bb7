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
	"haptic-trainer/internal/device"
)

// Frame is the state of one manipulator on one kinematics row.
type Frame struct {
	Position device.Vec3 `json:"position"`
	Velocity device.Vec3 `json:"velocity"`
	Gripper  float64     `json:"gripper"`
}

// Kinematics holds a parsed recording matrix. Rows are frames at 30 fps,
// columns follow the fixed 76-column manipulator layout.
type Kinematics struct {
	rows [][ColumnsPerFrame]float64
}

// ParseKinematics reads whitespace-separated kinematics rows. Blank lines
// are skipped; a row with the wrong column count or a non-numeric field
// fails with its line number.
func ParseKinematics(r io.Reader) (*Kinematics, error) {
	k := &Kinematics{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != ColumnsPerFrame {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", line, ColumnsPerFrame, len(fields))
		}
		var row [ColumnsPerFrame]float64
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %d: %q is not numeric", line, i+1, field)
			}
			row[i] = v
		}
		k.rows = append(k.rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read kinematics: %w", err)
	}
	if len(k.rows) == 0 {
		return nil, fmt.Errorf("no kinematics rows found")
	}
	return k, nil
}

// LoadKinematics parses a kinematics file from disk.
func LoadKinematics(path string) (*Kinematics, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDatasetParseFailedError(path, err)
	}
	defer f.Close()

	k, err := ParseKinematics(f)
	if err != nil {
		return nil, errors.NewDatasetParseFailedError(path, err)
	}
	return k, nil
}

// Frames returns the number of rows in the recording.
func (k *Kinematics) Frames() int {
	return len(k.rows)
}

// Duration returns the recording length at the standard frame rate.
func (k *Kinematics) Duration() time.Duration {
	return time.Duration(len(k.rows)) * FrameDuration
}

// Channel extracts one manipulator's frames from the matrix.
func (k *Kinematics) Channel(m Manipulator) ([]Frame, error) {
	cols, ok := manipulatorColumns[m]
	if !ok {
		return nil, fmt.Errorf("unknown manipulator %q", m)
	}
	frames := make([]Frame, len(k.rows))
	for i, row := range k.rows {
		frames[i] = Frame{
			Position: device.Vec3{row[cols.pos[0]], row[cols.pos[1]], row[cols.pos[2]]},
			Velocity: device.Vec3{row[cols.vel[0]], row[cols.vel[1]], row[cols.vel[2]]},
			Gripper:  row[cols.gripper],
		}
	}
	return frames, nil
}
