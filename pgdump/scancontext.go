package pgdump

import (
	"context"

	"github.com/sirupsen/logrus"
)

// OutputMode selects how decoded field text is quoted.
type OutputMode int

const (
	// OutputCSV emits tab-separated fields, \N for null, escapes \r\n\t\\.
	OutputCSV OutputMode = iota
	// OutputSQL emits single-quoted values suitable for an INSERT statement.
	OutputSQL
)

// RestoreType selects what a WAL restore pass reconstructs.
type RestoreType int

const (
	// RestoreDelete recovers the pre-delete image of a tuple.
	RestoreDelete RestoreType = iota
	// RestoreUpdate recovers both pre- and post-update images and emits
	// a diffed UPDATE statement.
	RestoreUpdate
)

// RecoveryMode selects how a restore pass is scoped.
type RecoveryMode int

const (
	// RecoveryByXID restores only records belonging to specific XIDs.
	RecoveryByXID RecoveryMode = iota
	// RecoveryByTime restores records inside a wall-clock window.
	RecoveryByTime
)

// ScanContext bundles everything the original implementation threaded
// through module-scoped global flags: output mode, restore type, recovery
// mode, the paths a scan is rooted at, and the current TOAST relation in
// play. It is created once per scan and passed explicitly to
// RestoreWALDirectory instead of being read from process-wide state; the
// row decoders (DecodeRow and the per-type decoders) and the sinks do not
// take it.
type ScanContext struct {
	Ctx context.Context
	Log *logrus.Logger

	Output  OutputMode
	Restore RestoreType
	Mode    RecoveryMode

	DataDir    string
	ArchiveDir string

	// ToastRelID is the filenode of the TOAST relation currently being
	// consulted to resolve an external varlena, or 0 if none.
	ToastRelID uint32

	// TargetXIDs restricts a restore pass to these transaction IDs.
	// Empty means "use the time window instead".
	TargetXIDs map[uint32]bool

	// StartTime/EndTime bound a time-window restore/discovery pass; the
	// zero value for both means "unbounded" (state machine mode None).
	StartTime int64
	EndTime   int64

	// WorkspaceLimit is a decompression workspace size in bytes. No
	// decoder reads it: decompression buffers are sized from each value's
	// raw size, with no upper bound and no placeholder substitution.
	WorkspaceLimit int

	// RowsEmitted/RowsFailed are the two public counters the scan
	// completes with; no partial row is ever counted as emitted.
	RowsEmitted int
	RowsFailed  int

	// cancelled is checked cooperatively between record fetches.
	cancelled bool

	// window is the time-window mode, fixed from StartTime/EndTime on the
	// first admitTxTime call so that widening a bound does not change it.
	window    timeWindowMode
	windowSet bool
}

// NewScanContext returns a ScanContext with sane defaults: CSV output,
// delete-restore, time-based recovery, a WorkspaceLimit of 64 MiB, and
// the package default logger.
func NewScanContext() *ScanContext {
	return &ScanContext{
		Ctx:            context.Background(),
		Log:            defaultLogger,
		Output:         OutputCSV,
		Restore:        RestoreDelete,
		Mode:           RecoveryByTime,
		WorkspaceLimit: 64 << 20,
	}
}

// Cancel marks the scan for cooperative termination. Checked between
// record fetches only; there is no preemption inside a single record.
func (c *ScanContext) Cancel() { c.cancelled = true }

// Cancelled reports whether Cancel was called, or the embedded context
// was itself cancelled.
func (c *ScanContext) Cancelled() bool {
	if c.cancelled {
		return true
	}
	if c.Ctx == nil {
		return false
	}
	select {
	case <-c.Ctx.Done():
		return true
	default:
		return false
	}
}

// timeWindowMode classifies the (StartTime, EndTime) pair into the
// four-state machine from the WAL scan design: None, FormerHalf,
// LatterHalf, Full.
type timeWindowMode int

const (
	windowNone timeWindowMode = iota
	windowFormerHalf
	windowLatterHalf
	windowFull
)

func (c *ScanContext) windowMode() timeWindowMode {
	switch {
	case c.StartTime != 0 && c.EndTime != 0:
		return windowFull
	case c.StartTime != 0:
		return windowFormerHalf
	case c.EndTime != 0:
		return windowLatterHalf
	default:
		return windowNone
	}
}

// admitTxTime applies the time-window state machine to a single commit's
// wall-clock time. It returns (admit, stop): admit is true if txTime is
// inside the window and should be recorded; stop is true if the scan can
// no longer learn anything new by continuing (txTime is past the end of
// a Full or LatterHalf window) and widens the bounds of an unbounded side
// as a side effect, matching the source's monotonic-widening behavior.
func (c *ScanContext) admitTxTime(txTime int64) (admit, stop bool) {
	if !c.windowSet {
		c.window, c.windowSet = c.windowMode(), true
	}
	switch c.window {
	case windowNone:
		if c.StartTime == 0 || txTime < c.StartTime {
			c.StartTime = txTime
		}
		if txTime > c.EndTime {
			c.EndTime = txTime
		}
		return true, false
	case windowFormerHalf:
		if txTime < c.StartTime {
			return false, false
		}
		if txTime > c.EndTime {
			c.EndTime = txTime
		}
		return true, false
	case windowLatterHalf:
		if txTime > c.EndTime {
			return false, true
		}
		if c.StartTime == 0 || txTime < c.StartTime {
			c.StartTime = txTime
		}
		return true, false
	default: // windowFull
		if txTime < c.StartTime {
			return false, false
		}
		if txTime > c.EndTime {
			return false, true
		}
		return true, false
	}
}
