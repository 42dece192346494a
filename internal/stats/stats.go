// Package stats provides Stats
package stats

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/protrend/regnet/pkg/perf"
	"github.com/protrend/regnet/pkg/progress"
	"github.com/tkw1536/pkglib/lazy"
)

// Stats holds statistical information about the current stage of a command.
// Updating the stats writes out detailed information to an underlying io.Writer.
//
// Stats is safe to access concurrently, however the caller is responsible for only logging to one stage at a time.
//
// A nil Stats is valid, and discards any information written to it.
type Stats struct {
	done atomic.Bool
	m    sync.RWMutex // m protects current and all

	logger     *slog.Logger
	rewritable *progress.Rewritable

	store lazy.Lazy[StoreStats]

	current StageStats
	all     []StageStats

	// OnUpdate is called every time this stats updates.
	// OnUpdate may be nil.
	OnUpdate func(*Stats)
}

// StoreStats holds the size of a store
type StoreStats struct {
	Nodes uint64
	Edges uint64
}

func (ss StoreStats) String() string {
	return fmt.Sprintf("%d node(s), %d edge(s)", ss.Nodes, ss.Edges)
}

// NewStats creates a new stats object that logs messages of at least the given level to w.
func NewStats(w io.Writer, level slog.Leveler) *Stats {
	if w == nil {
		return &Stats{}
	}
	return &Stats{
		logger:     slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})),
		rewritable: &progress.Rewritable{Writer: w, FlushInterval: progress.DefaultFlushInterval},
	}
}

// Logger returns the logger associated with these stats, or nil.
func (st *Stats) Logger() *slog.Logger {
	if st == nil {
		return nil
	}
	return st.logger
}

// Rewritable returns the rewritable associated with these stats.
// It is automatically closed at the end of each stage.
func (st *Stats) Rewritable() *progress.Rewritable {
	if st == nil {
		return nil
	}
	return st.rewritable
}

func (st *Stats) onUpdate() {
	if st == nil || st.OnUpdate == nil {
		return
	}
	st.OnUpdate(st)
}

// StoreStoreStats records the size of the store.
// If st is nil or done, this call has no effect.
func (st *Stats) StoreStoreStats(stats StoreStats) {
	defer st.onUpdate()

	if st == nil || st.done.Load() {
		return
	}
	st.store.Set(stats)
}

// StoreStats returns the last recorded size of the store
func (st *Stats) StoreStats() StoreStats {
	if st == nil {
		var zero StoreStats
		return zero
	}
	return st.store.Get(nil)
}

// Current returns a copy of the current StageStats
func (st *Stats) Current() StageStats {
	if st == nil {
		var zero StageStats
		return zero
	}
	st.m.RLock()
	defer st.m.RUnlock()
	return st.current
}

// All returns a copy of all finished stages and the current stage
func (st *Stats) All() []StageStats {
	if st == nil {
		return []StageStats{}
	}

	st.m.RLock()
	defer st.m.RUnlock()

	all := append([]StageStats{}, st.all...)
	if st.current.Stage != StageInitial {
		all = append(all, st.current)
	}
	return all
}

// Log logs an informational message with the provided key, value field pairs.
//
// When st or the associated logger are nil, no logging occurs.
func (st *Stats) Log(message string, fields ...any) {
	if st == nil || st.logger == nil {
		return
	}
	st.logger.Info(message, fields...)
}

// LogDebug logs a debug message with the provided key, value field pairs.
func (st *Stats) LogDebug(message string, fields ...any) {
	if st == nil || st.logger == nil {
		return
	}
	st.logger.Debug(message, fields...)
}

// LogError logs an error message containing the provided error and the provided key, value field pairs.
//
// When st or the associated logger are nil, no logging occurs.
func (st *Stats) LogError(message string, err error, fields ...any) {
	if st == nil || st.logger == nil {
		return
	}
	st.logger.Error("FAILED "+message, append([]any{"err", err}, fields...)...)
}

// LogFatal is like LogError followed by os.Exit(1).
func (st *Stats) LogFatal(message string, err error) {
	st.LogError(message, err)
	os.Exit(1)
}

// Close marks these stats as done.
// Future edits will have no effect.
func (st *Stats) Close() {
	if st == nil {
		return
	}
	st.done.Store(true)
}

// Done checks if further edits made to these stats have any effect.
func (st *Stats) Done() bool {
	return st == nil || st.done.Load()
}

// Start starts a new stage, ending the current one.
//
// If st is done or nil, this function has no effect.
func (st *Stats) Start(stage Stage) {
	if st == nil || st.done.Load() {
		return
	}

	defer st.onUpdate()

	st.m.Lock()
	defer st.m.Unlock()

	st.end()

	st.current.Stage = stage
	st.current.Start = perf.Now()

	if st.logger != nil {
		st.logger.Info("start", "stage", stage)
	}
}

// End ends the current stage if any.
func (st *Stats) End() (prev StageStats) {
	if st == nil || st.done.Load() {
		return
	}

	defer st.onUpdate()

	st.m.Lock()
	defer st.m.Unlock()

	return st.end()
}

// end implements End.
// st.m must be held for writing.
func (st *Stats) end() (prev StageStats) {
	if st.current.Stage != StageInitial {
		st.current.End = perf.Now()
		st.all = append(st.all, st.current)
		prev = st.current
	}
	st.current = StageStats{}

	if prev.Stage == StageInitial {
		return
	}

	if st.rewritable != nil {
		st.rewritable.Flush(true)
		st.rewritable.Close()
	}

	if st.logger != nil {
		if prev.Total != 0 || prev.Current != 0 {
			st.logger.Info("end", "stage", prev.Stage, "took", prev.Diff(), "current", prev.Current, "total", prev.Total)
		} else {
			st.logger.Info("end", "stage", prev.Stage, "took", prev.Diff())
		}
	}
	return
}

// DoStage starts a new stage, calls f, and logs the resulting error if any.
//
// If st is nil, immediately invokes f.
func (st *Stats) DoStage(stage Stage, f func() error) error {
	if st == nil || st.done.Load() {
		return f()
	}

	st.Start(stage)
	err := f()

	st.m.Lock()
	defer st.m.Unlock()

	st.end()
	if err != nil {
		st.LogError("stage", err, "stage", stage)
	}
	return err
}

// SetCT sets the current and total for the current stage.
// If st is nil or done, this has no effect.
func (st *Stats) SetCT(current, total int) {
	if st == nil || st.done.Load() {
		return
	}

	defer st.onUpdate()

	var progress string
	st.m.Lock()
	{
		st.current.Current = current
		st.current.Total = total
		progress = st.current.Progress()
	}
	st.m.Unlock()

	if st.rewritable != nil {
		st.rewritable.Write(progress)
	}
}

// StageStats holds the stats for a specific stage
type StageStats struct {
	Stage Stage

	Start perf.Snapshot
	End   perf.Snapshot

	Current int
	Total   int
}

// Progress returns a string holding progress information on this stage
func (ss StageStats) Progress() string {
	if ss.Total == 0 {
		return ""
	}
	if ss.Current < ss.Total {
		return fmt.Sprintf("%s: %d/%d", string(ss.Stage), ss.Current, ss.Total)
	}
	return fmt.Sprintf("%s: %d", string(ss.Stage), ss.Current)
}

// Diff returns a diff of the given stage
func (ss StageStats) Diff() perf.Diff {
	return ss.End.Sub(ss.Start)
}

// Stage represents a stage used for statistics
type Stage string

const (
	StageInitial   Stage = ""
	StageOpen      Stage = "open"
	StageImport    Stage = "import"
	StageDump      Stage = "dump"
	StageExportSQL Stage = "export/sql"
	StageQuery     Stage = "query"
	StageDelete    Stage = "delete"
	StageSnapshot  Stage = "snapshot"
	StageRestore   Stage = "restore"
)
