package ibk

import "time"

// DefaultModTimeTolerance is the largest modification time difference still
// treated as "unchanged".
const DefaultModTimeTolerance = time.Millisecond

// Reason explains a change detection decision.
type Reason string

const (
	ReasonNew            Reason = "new"
	ReasonSizeChanged    Reason = "size-changed"
	ReasonModTimeChanged Reason = "mtime-changed"
	ReasonUnchanged      Reason = "unchanged"
)

// Decision is the outcome of comparing a file against its prior manifest entry.
type Decision struct {
	Changed bool
	Reason  Reason
}

// ChangeDetector decides whether a file must be backed up again.
//
// Checks run cheapest first: a missing entry or a size change is conclusive;
// a modification time change sends the file to a worker to be re-hashed;
// matching size and modification time skip the file without reading it.
// Content altered without touching size or modification time is therefore
// missed, which is the price of not hashing unchanged files.
type ChangeDetector struct {
	tolerance time.Duration
}

// ModTimePrecision is the resolution at which manifests record modification times.
const ModTimePrecision = time.Microsecond

// NewChangeDetector returns a detector that treats modification times within
// tolerance of each other as equal. Tolerances below ModTimePrecision are
// raised to it, otherwise a round trip through the manifest would look like
// a change on every run.
func NewChangeDetector(tolerance time.Duration) *ChangeDetector {
	if tolerance < ModTimePrecision {
		tolerance = ModTimePrecision
	}
	return &ChangeDetector{tolerance: tolerance}
}

// Detect compares the current entry with its prior manifest entry, which may be nil.
func (d *ChangeDetector) Detect(current Entry, prior *ManifestEntry) Decision {
	if prior == nil {
		return Decision{Changed: true, Reason: ReasonNew}
	}
	if current.Size != prior.Size {
		return Decision{Changed: true, Reason: ReasonSizeChanged}
	}
	delta := current.ModTime.Sub(prior.ModTime)
	if delta < 0 {
		delta = -delta
	}
	if delta > d.tolerance {
		return Decision{Changed: true, Reason: ReasonModTimeChanged}
	}
	return Decision{Reason: ReasonUnchanged}
}
