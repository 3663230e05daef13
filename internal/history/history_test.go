package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/territorium/servertools/internal/command"
	"github.com/territorium/servertools/internal/model"
)

func newConfig(t *testing.T) *model.Configuration {
	t.Helper()
	cfg := model.NewConfiguration()
	require.NoError(t, cfg.AddServerPort(model.ServerPort{ID: "http", Port: 8080}))
	return cfg
}

func paths(cfg *model.Configuration) []string {
	out := []string{}
	for _, m := range cfg.WebModules() {
		out = append(out, m.Path)
	}
	return out
}

func port(t *testing.T, cfg *model.Configuration) int {
	t.Helper()
	p, err := cfg.ServerPort("http")
	require.NoError(t, err)
	return p.Port
}

type recorded struct {
	op   command.Op
	kind command.Kind
	err  error
}

type recordingObserver struct {
	mu    sync.Mutex
	steps []recorded
}

func (r *recordingObserver) ObserveStep(op command.Op, kind command.Kind, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, recorded{op, kind, err})
}

func TestExecuteUndoRedo(t *testing.T) {
	cfg := newConfig(t)
	h := New()

	require.NoError(t, h.Execute(command.NewAddWebModule(cfg, model.WebModule{Path: "/A"})))
	require.NoError(t, h.Execute(command.NewAddWebModule(cfg, model.WebModule{Path: "/B"})))
	require.NoError(t, h.Execute(command.NewRemoveWebModule(cfg, 0)))
	assert.Equal(t, []string{"/B"}, paths(cfg))
	assert.Equal(t, 3, h.UndoCount())

	require.NoError(t, h.Undo())
	assert.Equal(t, []string{"/A", "/B"}, paths(cfg))
	require.NoError(t, h.Undo())
	require.NoError(t, h.Undo())
	assert.Empty(t, paths(cfg))
	assert.ErrorIs(t, h.Undo(), ErrNothingToUndo)

	require.NoError(t, h.Redo())
	require.NoError(t, h.Redo())
	require.NoError(t, h.Redo())
	assert.Equal(t, []string{"/B"}, paths(cfg))
	assert.ErrorIs(t, h.Redo(), ErrNothingToRedo)
}

func TestExecuteClearsRedo(t *testing.T) {
	cfg := newConfig(t)
	h := New()

	require.NoError(t, h.Execute(command.NewModifyPort(cfg, "http", 8081)))
	require.NoError(t, h.Undo())
	assert.True(t, h.CanRedo())

	require.NoError(t, h.Execute(command.NewModifyPort(cfg, "http", 9090)))
	assert.False(t, h.CanRedo())
	assert.Equal(t, 9090, port(t, cfg))
}

func TestFailedExecuteIsNotRecorded(t *testing.T) {
	cfg := newConfig(t)
	h := New()

	err := h.Execute(command.NewModifyPort(cfg, "missing", 1))
	assert.ErrorIs(t, err, model.ErrPortNotFound)
	assert.False(t, h.CanUndo())
}

// failingUndo executes fine but refuses to undo until allowed.
type failingUndo struct {
	command.Command
	fail bool
}

func (f *failingUndo) Undo() error {
	if f.fail {
		return errors.New("undo refused")
	}
	return f.Command.Undo()
}

func TestFailedUndoKeepsEntry(t *testing.T) {
	cfg := newConfig(t)
	h := New()

	cmd := &failingUndo{Command: command.NewModifyPort(cfg, "http", 8081), fail: true}
	require.NoError(t, h.Execute(cmd))

	assert.Error(t, h.Undo())
	assert.Equal(t, 1, h.UndoCount())
	assert.Equal(t, 0, h.RedoCount())
	assert.Equal(t, 8081, port(t, cfg))

	cmd.fail = false
	require.NoError(t, h.Undo())
	assert.Equal(t, 8080, port(t, cfg))
}

func TestMaxEntries(t *testing.T) {
	cfg := newConfig(t)
	h := New(WithMaxEntries(3))

	for i := 1; i <= 5; i++ {
		require.NoError(t, h.Execute(command.NewModifyPort(cfg, "http", 8080+i)))
	}
	assert.Equal(t, 3, h.UndoCount())
	assert.Equal(t, 3, h.MaxEntries())

	require.NoError(t, h.UndoToCheckpoint(Checkpoint{}))
	assert.Equal(t, 8082, port(t, cfg))

	h.SetMaxEntries(0)
	assert.Equal(t, DefaultMaxEntries, h.MaxEntries())
}

func TestSetMaxEntriesTrims(t *testing.T) {
	cfg := newConfig(t)
	h := New()
	for i := 1; i <= 4; i++ {
		require.NoError(t, h.Execute(command.NewModifyPort(cfg, "http", 8080+i)))
	}
	h.SetMaxEntries(2)
	assert.Equal(t, 2, h.UndoCount())
}

func TestInfo(t *testing.T) {
	cfg := newConfig(t)
	h := New()

	_, ok := h.PeekUndo()
	assert.False(t, ok)

	require.NoError(t, h.Execute(command.NewAddWebModule(cfg, model.WebModule{Path: "/shop"})))
	require.NoError(t, h.Execute(command.NewModifyPort(cfg, "http", 8081)))

	info, ok := h.PeekUndo()
	require.True(t, ok)
	assert.Equal(t, "Modify port http (8080 → 8081)", info.Label)
	assert.Equal(t, command.KindModifyPort, info.Kind)
	assert.False(t, info.Timestamp.IsZero())

	undo := h.UndoInfo()
	require.Len(t, undo, 2)
	assert.Equal(t, "Add web module /shop", undo[0].Label)

	require.NoError(t, h.Undo())
	info, ok = h.PeekRedo()
	require.True(t, ok)
	assert.Equal(t, command.KindModifyPort, info.Kind)
	assert.Len(t, h.RedoInfo(), 1)

	h.Clear()
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())
}

func TestObserver(t *testing.T) {
	cfg := newConfig(t)
	obs := &recordingObserver{}
	h := New(WithObserver(obs), WithObserver(nil))

	require.NoError(t, h.Execute(command.NewModifyPort(cfg, "http", 8081)))
	require.NoError(t, h.Undo())
	require.NoError(t, h.Redo())
	_ = h.Execute(command.NewModifyPort(cfg, "none", 1))

	require.Len(t, obs.steps, 4)
	assert.Equal(t, recorded{command.OpExecute, command.KindModifyPort, nil}, obs.steps[0])
	assert.Equal(t, command.OpUndo, obs.steps[1].op)
	assert.Equal(t, command.OpRedo, obs.steps[2].op)
	assert.ErrorIs(t, obs.steps[3].err, model.ErrPortNotFound)
}

func TestObserverFunc(t *testing.T) {
	var ops []command.Op
	h := New(WithObserver(ObserverFunc(func(op command.Op, _ command.Kind, _ time.Duration, _ error) {
		ops = append(ops, op)
	})))
	w := model.NewServerWrapper()
	require.NoError(t, h.Execute(command.NewSetDebugMode(w, true)))
	assert.Equal(t, []command.Op{command.OpExecute}, ops)
}

func TestGroup(t *testing.T) {
	cfg := newConfig(t)
	h := New()

	h.BeginGroup("Add shop")
	require.NoError(t, h.Execute(command.NewAddWebModule(cfg, model.WebModule{Path: "/shop"})))
	h.BeginGroup("inner")
	assert.Equal(t, 2, h.GroupDepth())
	require.NoError(t, h.Execute(command.NewAddMimeMapping(cfg, model.MimeMapping{Extension: "js", MimeType: "text/javascript"})))
	h.EndGroup()
	assert.True(t, h.IsGrouping())
	assert.Equal(t, 0, h.UndoCount())
	require.NoError(t, h.Execute(command.NewModifyPort(cfg, "http", 80)))
	h.EndGroup()
	assert.False(t, h.IsGrouping())

	assert.Equal(t, 1, h.UndoCount())
	info, _ := h.PeekUndo()
	assert.Equal(t, "Add shop", info.Label)
	assert.Equal(t, command.KindCompound, info.Kind)

	require.NoError(t, h.Undo())
	assert.Empty(t, paths(cfg))
	assert.Equal(t, 0, cfg.MimeMappingCount())
	assert.Equal(t, 8080, port(t, cfg))

	require.NoError(t, h.Redo())
	assert.Equal(t, []string{"/shop"}, paths(cfg))
	assert.Equal(t, 80, port(t, cfg))
}

func TestEmptyGroupRecordsNothing(t *testing.T) {
	h := New()
	h.BeginGroup("empty")
	h.EndGroup()
	h.EndGroup()
	assert.Equal(t, 0, h.UndoCount())
}

func TestCancelGroupKeepsChanges(t *testing.T) {
	cfg := newConfig(t)
	h := New()

	h.BeginGroup("g")
	require.NoError(t, h.Execute(command.NewModifyPort(cfg, "http", 81)))
	h.CancelGroup()

	assert.Equal(t, 81, port(t, cfg))
	assert.False(t, h.CanUndo())
}

func TestGroupScope(t *testing.T) {
	cfg := newConfig(t)
	h := New()

	func() {
		g := h.GroupScope("scope")
		defer g.End()
		require.NoError(t, h.Execute(command.NewModifyPort(cfg, "http", 81)))
		require.NoError(t, h.Execute(command.NewModifyPort(cfg, "http", 82)))
		g.End()
	}()
	assert.Equal(t, 1, h.UndoCount())

	g := h.GroupScope("cancelled")
	require.NoError(t, h.Execute(command.NewModifyPort(cfg, "http", 83)))
	g.Cancel()
	g.End()
	assert.Equal(t, 1, h.UndoCount())

	require.NoError(t, h.Undo())
	assert.Equal(t, 8080, port(t, cfg))
}

func TestTransactionRollsBack(t *testing.T) {
	cfg := newConfig(t)
	h := New()
	before := cfg.Clone()

	err := h.Transaction("bad", func() error {
		if err := h.Execute(command.NewAddWebModule(cfg, model.WebModule{Path: "/x"})); err != nil {
			return err
		}
		if err := h.Execute(command.NewModifyPort(cfg, "http", 81)); err != nil {
			return err
		}
		return h.Execute(command.NewRemoveWebModule(cfg, 5))
	})
	assert.ErrorIs(t, err, model.ErrIndexOutOfRange)
	assert.True(t, cfg.Equal(before))
	assert.False(t, h.CanUndo())
	assert.False(t, h.IsGrouping())
}

func TestNestedTransactions(t *testing.T) {
	cfg := newConfig(t)
	h := New()
	errInner := errors.New("inner failed")

	err := h.Transaction("outer", func() error {
		if err := h.Execute(command.NewAddWebModule(cfg, model.WebModule{Path: "/a"})); err != nil {
			return err
		}
		inner := h.Transaction("inner", func() error {
			if err := h.Execute(command.NewAddWebModule(cfg, model.WebModule{Path: "/b"})); err != nil {
				return err
			}
			return errInner
		})
		assert.ErrorIs(t, inner, errInner)
		assert.Equal(t, []string{"/a"}, paths(cfg), "only the inner transaction is rolled back")
		assert.True(t, h.IsGrouping())

		require.NoError(t, h.ExecuteGrouped("pair",
			command.NewAddWebModule(cfg, model.WebModule{Path: "/c"}),
			command.NewModifyPort(cfg, "http", 81),
		))
		assert.True(t, h.IsGrouping(), "a nested group leaves the outer one open")
		return h.Execute(command.NewAddWebModule(cfg, model.WebModule{Path: "/d"}))
	})
	require.NoError(t, err)
	assert.False(t, h.IsGrouping())
	assert.Equal(t, []string{"/a", "/c", "/d"}, paths(cfg))

	require.Equal(t, 1, h.UndoCount())
	info, _ := h.PeekUndo()
	assert.Equal(t, "outer", info.Label)

	require.NoError(t, h.Undo())
	assert.Empty(t, paths(cfg))
	assert.Equal(t, 8080, port(t, cfg))
}

func TestNestedFailureRollsBackOuter(t *testing.T) {
	cfg := newConfig(t)
	h := New()
	before := cfg.Clone()

	err := h.Transaction("outer", func() error {
		if err := h.Execute(command.NewModifyPort(cfg, "http", 81)); err != nil {
			return err
		}
		return h.ExecuteGrouped("inner",
			command.NewAddWebModule(cfg, model.WebModule{Path: "/a"}),
			command.NewRemoveWebModule(cfg, 7),
		)
	})
	assert.ErrorIs(t, err, model.ErrIndexOutOfRange)
	assert.True(t, cfg.Equal(before))
	assert.False(t, h.IsGrouping())
	assert.False(t, h.CanUndo())
}

func TestNestedCancelJoinsOuterGroup(t *testing.T) {
	cfg := newConfig(t)
	h := New()

	h.BeginGroup("outer")
	h.BeginGroup("inner")
	require.NoError(t, h.Execute(command.NewModifyPort(cfg, "http", 81)))
	h.CancelGroup()
	assert.True(t, h.IsGrouping())
	h.EndGroup()

	assert.Equal(t, 1, h.UndoCount())
	require.NoError(t, h.Undo())
	assert.Equal(t, 8080, port(t, cfg))
}

func TestTransactionCommits(t *testing.T) {
	cfg := newConfig(t)
	h := New()

	require.NoError(t, h.Transaction("ok", func() error {
		return h.Execute(command.NewModifyPort(cfg, "http", 81))
	}))
	assert.Equal(t, 1, h.UndoCount())
}

func TestExecuteGrouped(t *testing.T) {
	cfg := newConfig(t)
	h := New()

	require.NoError(t, h.ExecuteGrouped("none"))
	assert.Equal(t, 0, h.UndoCount())

	require.NoError(t, h.ExecuteGrouped("single", command.NewModifyPort(cfg, "http", 81)))
	info, _ := h.PeekUndo()
	assert.Equal(t, command.KindModifyPort, info.Kind)

	require.NoError(t, h.ExecuteGrouped("pair",
		command.NewAddWebModule(cfg, model.WebModule{Path: "/a"}),
		command.NewAddWebModule(cfg, model.WebModule{Path: "/b"}),
	))
	assert.Equal(t, 2, h.UndoCount())

	err := h.ExecuteGrouped("broken",
		command.NewRemoveWebModule(cfg, 0),
		command.NewModifyPort(cfg, "none", 1),
	)
	assert.ErrorIs(t, err, model.ErrPortNotFound)
	assert.Equal(t, []string{"/a", "/b"}, paths(cfg))
	assert.Equal(t, 2, h.UndoCount())
}

func TestCheckpoint(t *testing.T) {
	cfg := newConfig(t)
	h := New()

	require.NoError(t, h.Execute(command.NewModifyPort(cfg, "http", 81)))
	cp := h.CreateCheckpoint()
	require.NoError(t, h.Execute(command.NewModifyPort(cfg, "http", 82)))
	require.NoError(t, h.Execute(command.NewModifyPort(cfg, "http", 83)))

	require.NoError(t, h.UndoToCheckpoint(cp))
	assert.Equal(t, 81, port(t, cfg))
	assert.Equal(t, 2, h.RedoCount())

	end := Checkpoint{undoDepth: 3}
	require.NoError(t, h.RedoToCheckpoint(end))
	assert.Equal(t, 83, port(t, cfg))
}

func TestDirty(t *testing.T) {
	cfg := newConfig(t)
	h := New()
	assert.False(t, h.IsDirty())

	require.NoError(t, h.Execute(command.NewModifyPort(cfg, "http", 81)))
	assert.True(t, h.IsDirty())

	h.MarkSaved()
	assert.False(t, h.IsDirty())

	require.NoError(t, h.Undo())
	assert.True(t, h.IsDirty())
	require.NoError(t, h.Redo())
	assert.False(t, h.IsDirty())

	require.NoError(t, h.Undo())
	require.NoError(t, h.Execute(command.NewModifyPort(cfg, "http", 82)))
	assert.True(t, h.IsDirty(), "saved state is gone once redo is discarded")

	h.Clear()
	assert.True(t, h.IsDirty())
	h.MarkSaved()
	assert.False(t, h.IsDirty())
}

func TestDirtyAfterTrimmingSavePoint(t *testing.T) {
	cfg := newConfig(t)
	h := New(WithMaxEntries(2))

	for i := 1; i <= 3; i++ {
		require.NoError(t, h.Execute(command.NewModifyPort(cfg, "http", 8080+i)))
	}
	require.NoError(t, h.UndoToCheckpoint(Checkpoint{}))
	assert.True(t, h.IsDirty())
}

func TestBestEffortNeverFailsHistory(t *testing.T) {
	h := New()
	target := &brokenTarget{}
	require.NoError(t, h.Execute(command.NewAttachModule(target, model.WebModule{Path: "/a"})))
	require.NoError(t, h.Undo())
	require.NoError(t, h.Redo())
	assert.Equal(t, 3, target.calls)
}

type brokenTarget struct{ calls int }

func (b *brokenTarget) AttachModule(context.Context, model.WebModule) error {
	b.calls++
	return errors.New("offline")
}

func (b *brokenTarget) DetachModule(context.Context, model.WebModule) error {
	b.calls++
	return errors.New("offline")
}
