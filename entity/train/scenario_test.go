package train

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
)

// checkInvariants 每步检查的性质
type checkInvariants struct {
	t    *testing.T
	prev map[int32]struct {
		authority entity.Authority
		nsd       float64
	}
}

func newCheck(t *testing.T) *checkInvariants {
	return &checkInvariants{t: t, prev: make(map[int32]struct {
		authority entity.Authority
		nsd       float64
	})}
}

func (c *checkInvariants) check(w *testWorld) {
	for _, tr := range w.trains.Trains() {
		require.GreaterOrEqual(c.t, tr.state, Static)
		require.LessOrEqual(c.t, tr.state, Turntable)
		if tr.state != Static {
			require.True(c.t, tr.onTrack, "train %d in %v is not on track", tr.number, tr.state)
		}
		p, ok := c.prev[tr.number]
		if ok && tr.onTrack && tr.action == nil && p.authority == tr.authority {
			require.LessOrEqual(c.t, tr.nextStopDistance, p.nsd+1e-6, "train %d authority unchanged but distance grew", tr.number)
		}
		c.prev[tr.number] = struct {
			authority entity.Authority
			nsd       float64
		}{tr.authority, tr.nextStopDistance}
	}
}

func withStop(pb input.Train, platform int32, cmds ...input.Command) input.Train {
	pb.Stops = append(pb.Stops, input.Stop{Platform: platform, Commands: cmds})
	return pb
}

func TestRunToStationAndEnd(t *testing.T) {
	a := withStop(simpleTrain(1, "A", "06:00:10", 1, 3, 4, 5, 6), 2)
	w := newWorld(t, branchLayout(), a)
	tr := w.trains.Get(1)
	require.Len(t, tr.stops, 1)
	stop := tr.stops[0]
	c := newCheck(t)

	require.True(t, w.run(2000, func() bool {
		c.check(w)
		return tr.state == StationStop
	}))
	assert.NotEqual(t, timetable.None, stop.ActualArrival)
	assert.Equal(t, int32(5), tr.route[tr.front.Index].Section)
	assert.InDelta(t, 150, tr.front.Offset, 2*w.config.Train.StopTolerance)
	assert.Contains(t, tr.arrivals, "South")

	require.True(t, w.run(3000, func() bool {
		c.check(w)
		return tr.Finished()
	}))
	assert.Empty(t, tr.stops)
	assert.False(t, tr.OnTrack())
	assert.Empty(t, w.sections.Held(1))
	// 离开活动集合在下一步生效
	w.step()
	assert.Zero(t, w.trains.ActiveCount())
}

func TestRecalculateIsIdempotent(t *testing.T) {
	a := withStop(simpleTrain(1, "A", "06:00:10", 1, 3, 4, 5, 6), 2)
	w := newWorld(t, branchLayout(), a)
	tr := w.trains.Get(1)
	require.Len(t, tr.stops, 1)

	tr.Recalculate()
	first := tr.Snapshot().Stops
	tr.Recalculate()
	second := tr.Snapshot().Stops
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("stops changed after recalculation (-first +second):\n%s", diff)
	}
	assert.Equal(t, int32(5), second[0].Section)
	assert.Equal(t, int32(3), second[0].RouteIndex)
	assert.InDelta(t, 150, second[0].StopOffset, 1e-9)
}

// 等待义务在对方晚点不超过maxdelay时有效，超过后失效
func TestWaitWithMaxDelay(t *testing.T) {
	a := simpleTrain(1, "A", "06:00:10", 1, 3, 4, 5, 6)
	a.Commands = []input.Command{command("wait", []string{"B"}, qualifier("maxdelay", "5"))}
	b := simpleTrain(2, "B", "", 2, 3, 4, 5, 6)
	b.Triggered = true
	w := newWorld(t, branchLayout(), a, b)
	ta, tb := w.trains.Get(1), w.trains.Get(2)

	require.Len(t, ta.waits, 1)
	wait := ta.waits[0]
	assert.Equal(t, int32(3), wait.ActiveSection)
	assert.Equal(t, int32(3), wait.WaitSection)
	assert.Equal(t, 300., wait.MaxDelay)

	require.True(t, tb.place())
	tb.delay = 180

	c := newCheck(t)
	w.run(300, func() bool {
		c.check(w)
		return false
	})
	assert.Equal(t, Stopped, ta.state)
	assert.Equal(t, 0, ta.front.Index)
	require.NotEmpty(t, ta.waits)
	assert.True(t, ta.waits[0].Active)
	assert.True(t, ta.moved)

	tb.delay = 360
	require.True(t, w.run(600, func() bool {
		c.check(w)
		return ta.front.Index >= 2
	}))
	assert.Empty(t, ta.waits)
}

// notstarted：对方上线前等待有效，对方驶过锚点后等待删除
func TestWaitNotStartedRoundTrip(t *testing.T) {
	a := simpleTrain(1, "A", "06:00:10", 1, 3, 4, 5, 6)
	a.Commands = []input.Command{command("wait", []string{"B"}, qualifier("notstarted"))}
	b := simpleTrain(2, "B", "06:05:00", 2, 3, 4, 5, 6)
	w := newWorld(t, branchLayout(), a, b)
	ta, tb := w.trains.Get(1), w.trains.Get(2)
	require.Len(t, ta.waits, 1)
	require.True(t, ta.waits[0].NotStarted)

	c := newCheck(t)
	w.run(400, func() bool {
		c.check(w)
		return w.clock.T >= 21890
	})
	assert.False(t, tb.started())
	require.NotEmpty(t, ta.waits)
	assert.True(t, ta.waits[0].Active)
	assert.Equal(t, Stopped, ta.state)
	assert.Equal(t, 0, ta.front.Index)

	require.True(t, w.run(2000, func() bool {
		c.check(w)
		return tb.onTrack && tb.pathIndex(tb.rear.Index) > 1
	}))
	w.step()
	w.step()
	assert.Empty(t, ta.waits)

	require.True(t, w.run(5000, func() bool {
		c.check(w)
		return ta.Finished() && tb.Finished()
	}))
}

func TestReservedSwitchAction(t *testing.T) {
	w := newWorld(t, branchLayout(), simpleTrain(1, "A", "", 1, 3, 4, 5, 6))
	w.config.Train.JunctionOverlap = 5
	tr := w.trains.Get(1)
	require.True(t, tr.place())

	tr.updateAllowedMax()
	tr.authority = entity.Authority{Type: entity.AuthorityReservedSwitch, Distance: 40, LastReservedSection: 1, Blocker: -1}
	tr.ahead = aheadInfo{Number: -1}
	tr.nextStopDistance = tr.computeNextStopDistance()
	assert.InDelta(t, 30, tr.nextStopDistance, 1e-9)

	cands := tr.candidateActions()
	var found *Action
	for _, a := range cands {
		if a.Type == ActionEndOfAuthority {
			found = a
		}
	}
	require.NotNil(t, found)
	assert.InDelta(t, 30, tr.remaining(found), 1e-9)
	assert.Zero(t, found.RequiredSpeed)

	best := tr.selectAction(cands)
	require.NotNil(t, best)
	assert.Equal(t, ActionEndOfAuthority, best.Type)
}

// 退行连挂：A以车尾与B车头相接，掉头后整体并入B
func TestSetBackAttach(t *testing.T) {
	a := simpleTrain(1, "A", "", 2, 3)
	a.Dispose.Commands = []input.Command{command("attach", []string{"B"}, qualifier("setback"))}
	b := simpleTrain(2, "B", "", 2, 3)
	w := newWorld(t, yardLayout(), a, b)
	ta, tb := w.trains.Get(1), w.trains.Get(2)
	require.NotNil(t, ta.attach)
	assert.True(t, ta.attach.SetBack)
	assert.Equal(t, []int32{1}, tb.needAttach[timetable.PlatformEndOfRoute])

	// B在区段2的[0,100]，A在[100,200]
	require.True(t, tb.place())
	ta.route = ta.paths[0].Clone()
	ta.front = RoutePos{Index: 0, Offset: 200}
	ta.updateRear()
	require.True(t, w.sections.OccupySections(1, []int32{2}, true))
	ta.occupied = []int32{2}
	ta.onTrack = true

	mine, theirs, ok := ta.touching(tb)
	require.True(t, ok)
	assert.Equal(t, endRear, mine)
	assert.Equal(t, endFront, theirs)

	done, err := ta.TTCouple(tb, ta.attach.SetBack)
	require.NoError(t, err)
	require.True(t, done)

	assert.Equal(t, entity.Route{{Section: 2, Direction: entity.Backward}}, ta.ValidRoute())
	assert.True(t, ta.tempRoute)
	assert.True(t, ta.Reversed())
	assert.True(t, ta.Finished())
	assert.Empty(t, ta.cars)

	assert.InDelta(t, 200, tb.Length(), 1e-9)
	assert.InDelta(t, 200, tb.front.Offset, 1e-9)
	assert.Equal(t, RoutePos{Index: 0, Offset: 0}, tb.rear)
	assert.Equal(t, []string{"A1", "A2", "A3", "A4", "B1", "B2", "B3", "B4"}, carIDs(tb))
	assert.Empty(t, tb.needAttach[timetable.PlatformEndOfRoute])
	assert.Equal(t, []int32{2}, w.sections.Get(2).OccupiedBy())
}

func detachTrains(units string) []input.Train {
	a := simpleTrain(1, "A", "", 1, 2)
	a.Dispose = input.Dispose{
		Forms:    "C",
		Commands: []input.Command{command("detach", nil, qualifier("units", units), qualifier("forms", "D"))},
	}
	return []input.Train{a, simpleTrain(2, "C", "", 1, 2), simpleTrain(3, "D", "", 1, 2)}
}

// 终点先解编再接续形成下一车次
func TestDetachBeforeForms(t *testing.T) {
	w := newWorld(t, yardLayout(), detachTrains("2")...)
	ta, tc, td := w.trains.Get(1), w.trains.Get(2), w.trains.Get(3)
	require.Len(t, ta.detaches[timetable.PlatformEndOfRoute], 1)
	assert.Equal(t, int32(2), ta.formsNumber)

	require.True(t, ta.place())
	ta.moved, ta.endReached = true, true
	ta.processEndOfRoute()

	assert.True(t, ta.Finished())
	assert.Equal(t, []string{"A3", "A4"}, carIDs(td))
	assert.Equal(t, []string{"A1", "A2"}, carIDs(tc))
	assert.Equal(t, int32(1), td.FormedOf())
	assert.Equal(t, int32(1), tc.FormedOf())
	assert.True(t, tc.onTrack)
	assert.True(t, td.onTrack)
	assert.Equal(t, Init, td.state)
	assert.True(t, ta.detaches[timetable.PlatformEndOfRoute][0].Done)
	assert.ElementsMatch(t, []int32{2, 3}, w.sections.Get(1).OccupiedBy())
}

// 全部车辆被分出时不再接续形成
func TestDetachAllBlocksForms(t *testing.T) {
	w := newWorld(t, yardLayout(), detachTrains("4")...)
	ta, tc, td := w.trains.Get(1), w.trains.Get(2), w.trains.Get(3)

	require.True(t, ta.place())
	ta.moved, ta.endReached = true, true
	ta.processEndOfRoute()

	assert.True(t, ta.Finished())
	assert.Equal(t, []string{"A1", "A2", "A3", "A4"}, carIDs(td))
	assert.False(t, tc.started())
	assert.Equal(t, int32(-1), tc.FormedOf())
}
