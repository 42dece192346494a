// Package perf captures timing and memory metrics of long-running operations.
package perf

import (
	"fmt"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
)

// Snapshot holds metrics at a specific instant
type Snapshot struct {
	Time time.Time

	Bytes   int64 // heap and stack in use
	Objects int64 // live heap objects
}

// Now returns a snapshot for the current time.
// It does not force a garbage collection, so memory figures are approximate.
func Now() (s Snapshot) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	s.Time = time.Now()
	s.Bytes = int64(stats.HeapInuse + stats.StackInuse)
	s.Objects = int64(stats.HeapObjects)
	return
}

func (s Snapshot) String() string {
	return fmt.Sprintf("%s (%s) used at %s", human(s.Bytes), objects(s.Objects), s.Time.Format(time.Stamp))
}

// Sub subtracts the other snapshot from this snapshot.
func (s Snapshot) Sub(other Snapshot) Diff {
	return Diff{
		Time:    s.Time.Sub(other.Time),
		Bytes:   s.Bytes - other.Bytes,
		Objects: s.Objects - other.Objects,
	}
}

// Since computes the diff between now and start.
func Since(start Snapshot) Diff {
	return Now().Sub(start)
}

// Diff represents the difference between two snapshots
type Diff struct {
	Time    time.Duration
	Bytes   int64
	Objects int64
}

func (diff Diff) String() string {
	return fmt.Sprintf("%s, %s, %s", diff.Time, human(diff.Bytes), objects(diff.Objects))
}

// Rate formats count items of the given unit processed in d, e.g. "1,200 rows/s".
func Rate(count int, unit string, d time.Duration) string {
	if d <= 0 {
		return fmt.Sprintf("%s %s", humanize.Comma(int64(count)), unit)
	}
	perSecond := float64(count) / d.Seconds()
	return fmt.Sprintf("%s %s/s", humanize.Comma(int64(perSecond)), unit)
}

func human(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.Bytes(uint64(-bytes))
	}
	return humanize.Bytes(uint64(bytes))
}

func objects(count int64) string {
	if count == 1 {
		return "1 object"
	}
	return fmt.Sprintf("%s objects", humanize.Comma(count))
}
