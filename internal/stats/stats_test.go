package stats

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestStats_nil(t *testing.T) {
	var st *Stats

	st.Log("nothing")
	st.SetCT(1, 2)
	st.StoreStoreStats(StoreStats{Nodes: 1})

	called := false
	if err := st.DoStage(StageImport, func() error { called = true; return nil }); err != nil || !called {
		t.Errorf("DoStage() = %v, called = %v", err, called)
	}
	if got := st.All(); len(got) != 0 {
		t.Errorf("All() = %v, want empty", got)
	}
}

func TestStats_DoStage(t *testing.T) {
	var builder strings.Builder
	st := NewStats(&builder, slog.LevelInfo)

	if err := st.DoStage(StageImport, func() error {
		st.SetCT(5, 10)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	if err := st.DoStage(StageDump, func() error { return boom }); err != boom {
		t.Errorf("DoStage() error = %v, want = %v", err, boom)
	}

	all := st.All()
	if len(all) != 2 || all[0].Stage != StageImport || all[1].Stage != StageDump {
		t.Fatalf("All() = %v", all)
	}
	if all[0].Current != 5 || all[0].Total != 10 {
		t.Errorf("All()[0] = %d/%d, want = 5/10", all[0].Current, all[0].Total)
	}

	out := builder.String()
	for _, want := range []string{"stage=import", "stage=dump", "FAILED stage", "err=boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("log does not contain %q:\n%s", want, out)
		}
	}
}

func TestStats_StoreStats(t *testing.T) {
	st := NewStats(nil, nil)

	want := StoreStats{Nodes: 12, Edges: 40}
	st.StoreStoreStats(want)
	if got := st.StoreStats(); got != want {
		t.Errorf("StoreStats() = %v, want = %v", got, want)
	}

	st.Close()
	st.StoreStoreStats(StoreStats{})
	if got := st.StoreStats(); got != want {
		t.Errorf("StoreStats() after Close = %v, want = %v", got, want)
	}
}

func TestStageStats_Progress(t *testing.T) {
	tests := []struct {
		ss   StageStats
		want string
	}{
		{StageStats{Stage: StageImport}, ""},
		{StageStats{Stage: StageImport, Current: 1, Total: 3}, "import: 1/3"},
		{StageStats{Stage: StageImport, Current: 3, Total: 3}, "import: 3"},
	}
	for _, tt := range tests {
		if got := tt.ss.Progress(); got != tt.want {
			t.Errorf("Progress() = %q, want = %q", got, tt.want)
		}
	}
}
