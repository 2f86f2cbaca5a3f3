package quality

import (
	"fmt"
	"math"

	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// QAInput carries everything BuildQAFlags looks at.
type QAInput struct {
	Saturation bool
	Removed    int     // frames dropped by robust aggregation
	C          float64 // quantified concentration
	Range      *spectro.Range
	IRefBefore float64
	IRefAfter  float64
	Notes      []string
}

// BuildQAFlags derives the post-analysis QA flags. InRange is true when no
// curve range is known. Drift compares the reference levels taken before and
// after the sample; a non-positive before level cannot be judged and is not
// flagged.
func BuildQAFlags(in QAInput, lim Limits) spectro.QAFlags {
	flags := spectro.QAFlags{
		Saturation: in.Saturation,
		Outliers:   in.Removed,
		InRange:    true,
		Notes:      append([]string(nil), in.Notes...),
	}
	if in.Range != nil {
		flags.InRange = in.Range.Contains(in.C)
	}
	if in.IRefBefore > 0 {
		flags.Drift = math.Abs(in.IRefAfter-in.IRefBefore)/in.IRefBefore > lim.DriftThreshold
	}
	return flags
}

// ActionInput carries the measurement facts ActionMessages reacts to.
type ActionInput struct {
	AMean        float64
	DynamicRange float64 // I_ref_before − I_dark
	Flags        spectro.QAFlags
}

// ActionMessages maps a measurement to operator remediation messages. The
// order is fixed: dilution, exposure increase, blank, exposure reduction,
// cuvette, curve range.
func ActionMessages(in ActionInput, lim Limits) []string {
	var msgs []string
	if in.AMean > lim.AbsorbanceMax {
		msgs = append(msgs, "dilute sample ×2")
	}
	if in.DynamicRange < lim.MinDynamicRange {
		msgs = append(msgs, fmt.Sprintf("increase exposure by +%d%%", exposureIncrease(in.DynamicRange, lim.MinDynamicRange)))
	}
	if in.Flags.Drift {
		msgs = append(msgs, "redo the blank")
	}
	if in.Flags.Saturation {
		msgs = append(msgs, "reduce exposure")
	}
	if in.Flags.Outliers > 0 {
		msgs = append(msgs, "reposition cuvette and repeat")
	}
	if !in.Flags.InRange {
		msgs = append(msgs, "dilute and repeat (out of curve range)")
	}
	return msgs
}

// exposureIncrease is the percentage gain that lifts dr to target, capped at
// 1000% for a dead or inverted reference.
func exposureIncrease(dr, target float64) int {
	const maxIncrease = 1000
	if !(dr > 0) {
		return maxIncrease
	}
	x := math.Ceil((target/dr - 1) * 100)
	if x > maxIncrease {
		return maxIncrease
	}
	if x < 1 {
		return 1
	}
	return int(x)
}
