package motion

import (
	"haptic-trainer/internal/control"
	"haptic-trainer/internal/device"
)

// PathEfficiency relates the path actually travelled to the ideal one.
// Straightline is start-to-end distance over integrated path length, 1.0 for
// a perfectly direct move. ReferenceDeviation is the mean distance in mm to
// the time-aligned reference point, zero when no reference was bound.
type PathEfficiency struct {
	Straightline       float64 `json:"straightline"`
	ReferenceDeviation float64 `json:"referenceDeviation"`
}

// BoundingBox is the axis-aligned working volume covered by a window.
type BoundingBox struct {
	Min device.Vec3 `json:"min"`
	Max device.Vec3 `json:"max"`
}

// Extent returns per-axis spans in mm.
func (b BoundingBox) Extent() device.Vec3 {
	return b.Max.Sub(b.Min)
}

func pathLength(samples []device.Sample) float64 {
	var total float64
	for i := 1; i < len(samples); i++ {
		total += samples[i].Position.Sub(samples[i-1].Position).Norm()
	}
	return total
}

func straightlineEfficiency(samples []device.Sample, length float64) float64 {
	if len(samples) < 2 || length == 0 {
		return 0
	}
	direct := samples[len(samples)-1].Position.Sub(samples[0].Position).Norm()
	ratio := direct / length
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// referenceDeviation averages the distance between each sample and the
// reference position for the same elapsed time.
func referenceDeviation(samples []device.Sample, ref *control.Trajectory) float64 {
	if ref == nil || len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		wp, _ := ref.At(s.Elapsed)
		sum += wp.Position.Sub(s.Position).Norm()
	}
	return sum / float64(len(samples))
}

func boundingBox(samples []device.Sample) BoundingBox {
	if len(samples) == 0 {
		return BoundingBox{}
	}
	bb := BoundingBox{Min: samples[0].Position, Max: samples[0].Position}
	for _, s := range samples[1:] {
		for axis := 0; axis < 3; axis++ {
			if s.Position[axis] < bb.Min[axis] {
				bb.Min[axis] = s.Position[axis]
			}
			if s.Position[axis] > bb.Max[axis] {
				bb.Max[axis] = s.Position[axis]
			}
		}
	}
	return bb
}
