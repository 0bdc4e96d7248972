package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
)

func q(name string, values ...string) input.Qualifier {
	return input.Qualifier{Name: name, Values: values}
}

func TestParseWait(t *testing.T) {
	p, errs := Parse([]input.Command{
		{Name: "$wait", Values: []string{"B"}, Qualifiers: []input.Qualifier{
			q("maxdelay", "5"), q("notstarted"), q("trigger", "08:00"), q("opposite"),
		}},
		{Name: "follow", Values: []string{"C"}},
		{Name: "connect", Values: []string{"D"}, Qualifiers: []input.Qualifier{q("hold", "2")}},
		{Name: "forcewait", Values: []string{"E"}},
		{Name: "waitany", Values: []string{"3", "4"}, Qualifiers: []input.Qualifier{q("both")}},
	})
	require.Empty(t, errs)
	require.Len(t, p.Waits, 5)

	w := p.Waits[0]
	assert.Equal(t, WaitWait, w.Kind)
	assert.Equal(t, "B", w.Other)
	assert.Equal(t, 300., w.MaxDelay)
	assert.Equal(t, None, w.OwnDelay)
	assert.Equal(t, 8*3600., w.Trigger)
	assert.Equal(t, None, w.EndTrigger)
	assert.True(t, w.NotStarted)
	assert.Equal(t, DirectionOpposite, w.Direction)

	assert.Equal(t, WaitFollow, p.Waits[1].Kind)
	assert.Equal(t, WaitConnect, p.Waits[2].Kind)
	assert.Equal(t, 120., p.Waits[2].Hold)
	assert.True(t, p.Waits[3].Forced)
	assert.Equal(t, WaitConnect, p.Waits[3].Kind)
	assert.Equal(t, []int32{3, 4}, p.Waits[4].Path)
	assert.Equal(t, DirectionBoth, p.Waits[4].Direction)
}

func TestParseReportsAndSkips(t *testing.T) {
	p, errs := Parse([]input.Command{
		{Name: "wait", Values: []string{"B"}, Qualifiers: []input.Qualifier{q("maxdelay", "x"), q("colour")}},
		{Name: "fly"},
		{Name: "attach"},
	})
	require.Len(t, errs, 4)
	assert.ErrorIs(t, errs[0], ErrBadQualifier)
	assert.ErrorIs(t, errs[1], ErrBadQualifier)
	assert.ErrorIs(t, errs[2], ErrUnknownCommand)
	assert.ErrorIs(t, errs[3], ErrMissingValue)

	// 错误的限定词被跳过，义务仍以缺省值创建
	require.Len(t, p.Waits, 1)
	assert.Equal(t, None, p.Waits[0].MaxDelay)
	assert.Nil(t, p.Attach)
}

func TestParseFormation(t *testing.T) {
	p, errs := Parse([]input.Command{
		{Name: "attach", Values: []string{"B"}, Qualifiers: []input.Qualifier{q("setback")}},
		{Name: "detach", Qualifiers: []input.Qualifier{q("units", "2"), q("front"), q("forms", "N")}},
		{Name: "detach", Values: []string{"M"}, Qualifiers: []input.Qualifier{q("power", "trailing")}},
		{Name: "detach", Qualifiers: []input.Qualifier{q("consist", "mail"), q("forms", "K")}},
		{Name: "detach", Qualifiers: []input.Qualifier{q("nonpower")}},
		{Name: "pickup", Values: []string{"S"}},
		{Name: "transfer", Values: []string{"T"}, Qualifiers: []input.Qualifier{q("take"), q("units", "3")}},
		{Name: "activate", Values: []string{"X"}, Qualifiers: []input.Qualifier{q("depart")}},
	})
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrMissingValue)

	require.NotNil(t, p.Attach)
	assert.Equal(t, AttachCommand{Other: "B", SetBack: true}, *p.Attach)
	require.Len(t, p.Detaches, 3)
	assert.Equal(t, DetachCommand{Spec: UnitSpec{Mode: DetachUnits, Units: 2, Front: true}, Forms: "N"}, p.Detaches[0])
	assert.Equal(t, DetachTrailingPower, p.Detaches[1].Spec.Mode)
	assert.Equal(t, "M", p.Detaches[1].Forms)
	assert.Equal(t, UnitSpec{Mode: DetachConsist, Units: 1, Consist: "mail"}, p.Detaches[2].Spec)
	assert.Equal(t, []string{"S"}, p.PickUps)
	require.Len(t, p.Transfers, 1)
	assert.False(t, p.Transfers[0].Give)
	assert.Equal(t, int32(3), p.Transfers[0].Spec.Units)
	assert.Equal(t, []ActivateCommand{{Other: "X", Depart: true}}, p.Activates)
}

func TestParseStopFlags(t *testing.T) {
	p, errs := Parse([]input.Command{
		{Name: "terminal"}, {Name: "closeup"}, {Name: "nowaitsignal"}, {Name: "noclaim"},
		{Name: "callon"}, {Name: "endstop"}, {Name: "extendplatformtosignal"}, {Name: "forcehold"},
		{Name: "keepclear", Qualifiers: []input.Qualifier{q("front", "20"), q("force")}},
		{Name: "stoptime", Values: []string{"45"}},
	})
	require.Empty(t, errs)
	f := p.Stop
	assert.True(t, f.Terminal && f.Closeup && f.NoWaitSignal && f.NoClaim && f.CallOn && f.EndStop && f.ExtendToSignal)
	assert.Equal(t, HoldForce, f.HoldMode)
	assert.Equal(t, 20., f.KeepClearFront)
	assert.True(t, f.ForcePosition)
	assert.Equal(t, 45., f.StopTime)

	p, _ = Parse(nil)
	assert.Equal(t, None, p.Stop.StopTime)
}
