package signal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/clock"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/section"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeContext struct {
	sections *section.SectionManager
	signals  *SignalManager
}

func (c *fakeContext) Clock() *clock.Clock { return nil }
func (c *fakeContext) SectionManager() entity.ISectionManager { return c.sections }
func (c *fakeContext) SignalManager() entity.ISignalManager { return c.signals }
func (c *fakeContext) TurntableManager() entity.ITurntableManager { return nil }
func (c *fakeContext) TrainManager() entity.ITrainManager { return nil }
func (c *fakeContext) RuntimeConfig() *config.RuntimeConfig { return nil }

func newContext() *fakeContext {
	ctx := &fakeContext{}
	ctx.sections = section.NewManager(ctx)
	ctx.signals = NewManager(ctx)
	signals := []input.Signal{{ID: 10, Section: 1, Direction: 0}}
	ctx.sections.Init([]input.Section{{Index: 1, Length: 100}, {Index: 2, Length: 100}}, nil, signals)
	ctx.signals.Init(signals)
	return ctx
}

func TestClearAndReset(t *testing.T) {
	ctx := newContext()
	m := ctx.signals
	require.True(t, ctx.sections.PlaceTrain(1, []int32{1}))

	assert.True(t, m.RequestClear(10, 1, 2, false))
	assert.Equal(t, entity.SignalClear, m.Get(10).Aspect())
	assert.Equal(t, int32(1), m.Get(10).ClearedFor())
	assert.False(t, m.RequestClear(10, 2, 2, false), "already cleared for another train")

	// 列车尚未离开信号机所在区段
	m.Prepare()
	assert.Equal(t, int32(1), m.Get(10).ClearedFor())

	require.True(t, ctx.sections.OccupySections(1, []int32{2}, false))
	ctx.sections.ReleaseSections(1, []int32{1})
	m.Prepare()
	assert.Equal(t, entity.SignalStop, m.Get(10).Aspect())
	assert.Equal(t, int32(-1), m.Get(10).ClearedFor())
}

func TestClearIntoOccupiedSection(t *testing.T) {
	ctx := newContext()
	m := ctx.signals
	require.True(t, ctx.sections.PlaceTrain(2, []int32{2}))
	assert.False(t, m.RequestClear(10, 1, 2, false))
	assert.True(t, m.RequestClear(10, 1, 2, true))
	assert.Equal(t, entity.SignalRestricting, m.Get(10).Aspect())
}

func TestHold(t *testing.T) {
	ctx := newContext()
	m := ctx.signals
	m.AddHold(10)
	m.AddHold(10)
	assert.True(t, m.Get(10).IsHeld())
	assert.False(t, m.RequestClear(10, 1, 2, false))
	m.RemoveHold(10)
	assert.True(t, m.Get(10).IsHeld())
	m.RemoveHold(10)
	assert.False(t, m.Get(10).IsHeld())

	// 外部接口扣停在下一步Prepare时生效
	in, err := structpb.NewStruct(map[string]any{"id": 10, "hold": true})
	require.NoError(t, err)
	_, err = m.SetSignalHold(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, m.Get(10).IsHeld())
	m.Prepare()
	assert.True(t, m.Get(10).IsHeld())

	out, err := m.GetSignal(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, out.GetFields()["held"].GetBoolValue())

	bad, _ := structpb.NewStruct(map[string]any{"id": 99})
	_, err = m.GetSignal(context.Background(), bad)
	assert.Error(t, err)
	_, err = m.GetOrError(99)
	assert.Error(t, err)
}

func TestNextSignal(t *testing.T) {
	ctx := newContext()
	route := entity.Route{{Section: 1}, {Section: 2}}
	id, idx := ctx.signals.NextSignal(route, 0)
	assert.Equal(t, int32(10), id)
	assert.Equal(t, 0, idx)
	id, idx = ctx.signals.NextSignal(route, 1)
	assert.Equal(t, int32(-1), id)
	assert.Equal(t, -1, idx)
	// 反方向没有信号机
	id, _ = ctx.signals.NextSignal(route.Reversed(), 0)
	assert.Equal(t, int32(-1), id)
}
