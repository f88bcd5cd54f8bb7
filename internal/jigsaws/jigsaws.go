// Package jigsaws parses the JIGSAWS surgical activity dataset layout:
// fixed-width kinematics matrices recorded from a da Vinci console at 30 fps
// and gesture transcription files. Parsed recordings convert into reference
// trajectories for guided sessions.
package jigsaws

import (
	"fmt"
	"time"
)

const (
	// FrameRateHz is the JIGSAWS standard capture rate.
	FrameRateHz = 30.0

	// ColumnsPerFrame is the width of one kinematics row: four manipulators
	// with full pose, twist and gripper state each.
	ColumnsPerFrame = 76
)

// FrameDuration is the wall time covered by one kinematics row.
const FrameDuration = time.Second / 30

// Canonical task names as they appear in dataset file names.
const (
	TaskSuturing      = "Suturing"
	TaskKnotTying     = "Knot_Tying"
	TaskNeedlePassing = "Needle_Passing"
)

var taskDescriptions = map[string]string{
	TaskSuturing:      "Precise needle work through tissue",
	TaskKnotTying:     "Creating secure surgical knots",
	TaskNeedlePassing: "Threading through metal hoops",
}

// Tasks lists the canonical task names.
func Tasks() []string {
	return []string{TaskSuturing, TaskKnotTying, TaskNeedlePassing}
}

// ValidTask reports whether name is one of the canonical tasks.
func ValidTask(name string) bool {
	_, ok := taskDescriptions[name]
	return ok
}

// DescribeTask returns the short description of a canonical task.
func DescribeTask(name string) string {
	return taskDescriptions[name]
}

// Manipulator selects one of the four arms present in every kinematics row.
type Manipulator string

const (
	MasterLeft  Manipulator = "master_left"
	MasterRight Manipulator = "master_right"
	SlaveRight  Manipulator = "slave_right"
	SlaveLeft   Manipulator = "slave_left"
)

type columnSet struct {
	pos     [3]int
	vel     [3]int
	gripper int
}

// Column indices per manipulator in the 76-column layout. Units are mm for
// position, mm/s for velocity and degrees for gripper angle.
var manipulatorColumns = map[Manipulator]columnSet{
	MasterLeft:  {pos: [3]int{0, 1, 2}, vel: [3]int{12, 13, 14}, gripper: 18},
	MasterRight: {pos: [3]int{19, 20, 21}, vel: [3]int{31, 32, 33}, gripper: 37},
	SlaveRight:  {pos: [3]int{38, 39, 40}, vel: [3]int{50, 51, 52}, gripper: 56},
	SlaveLeft:   {pos: [3]int{57, 58, 59}, vel: [3]int{69, 70, 71}, gripper: 75},
}

// Manipulators lists all channel names in layout order.
func Manipulators() []Manipulator {
	return []Manipulator{MasterLeft, MasterRight, SlaveRight, SlaveLeft}
}

// Valid reports whether m names a known channel.
func (m Manipulator) Valid() bool {
	_, ok := manipulatorColumns[m]
	return ok
}

// Gesture descriptions from the JIGSAWS vocabulary.
var gestureDescriptions = map[int]string{
	1:  "Reaching for needle",
	2:  "Positioning needle/tool",
	3:  "Pushing needle through tissue",
	4:  "Transferring needle L<->R",
	5:  "Moving to center",
	6:  "Pulling suture",
	8:  "Orienting needle",
	9:  "Tightening suture",
	10: "Loosening suture",
	11: "Dropping/completing",
	12: "Knot tying motion",
	13: "Knot securing",
	14: "Knot tightening",
	15: "Final knot adjustment",
}

// DescribeGesture returns the vocabulary entry for a gesture ID, or a
// generic label for IDs outside the vocabulary.
func DescribeGesture(id int) string {
	if desc, ok := gestureDescriptions[id]; ok {
		return desc
	}
	return fmt.Sprintf("Gesture %d", id)
}

// GestureLabel formats a gesture ID in transcript notation.
func GestureLabel(id int) string {
	return fmt.Sprintf("G%d", id)
}
