package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
)

func backOf(secs ...int32) entity.Route {
	r := routeOf(secs...)
	for i := range r {
		r[i].Direction = entity.Backward
	}
	return r
}

func TestFindAnchor(t *testing.T) {
	// 汇入同一正线
	a, ok := findAnchor([]entity.Route{routeOf(1, 3, 4, 5)}, []entity.Route{routeOf(2, 3, 4, 5)}, false)
	require.True(t, ok)
	assert.Equal(t, anchor{ownSub: 0, ownIdx: 1, otherSub: 0, otherIdx: 1}, a)

	// 从同一区段出发，锚点为第一个不共用的区段
	a, ok = findAnchor([]entity.Route{routeOf(1, 2, 3)}, []entity.Route{routeOf(1, 2, 4)}, false)
	require.True(t, ok)
	assert.Equal(t, anchor{ownSub: 0, ownIdx: 2, otherSub: 0, otherIdx: 1}, a)

	_, ok = findAnchor([]entity.Route{routeOf(1, 2, 3)}, []entity.Route{routeOf(1, 2, 3)}, false)
	assert.False(t, ok)

	// 对向
	a, ok = findAnchor([]entity.Route{routeOf(1, 2, 3)}, []entity.Route{backOf(3, 2, 1)}, true)
	require.True(t, ok)
	assert.Equal(t, anchor{ownSub: 0, ownIdx: 0, otherSub: 0, otherIdx: 2}, a)
	_, ok = findAnchor([]entity.Route{routeOf(1, 2, 3)}, []entity.Route{backOf(3, 2, 1)}, false)
	assert.False(t, ok)

	// 锚点在后一条子路径上
	a, ok = findAnchor([]entity.Route{routeOf(1, 2), backOf(2, 7)}, []entity.Route{backOf(8, 7)}, false)
	require.True(t, ok)
	assert.Equal(t, anchor{ownSub: 1, ownIdx: 1, otherSub: 0, otherIdx: 1}, a)
	assert.True(t, anchor{ownSub: 0, ownIdx: 5}.before(a))
}

func TestFollowAnchors(t *testing.T) {
	res := followAnchors([]entity.Route{routeOf(1, 2, 3, 7, 5, 6)}, []entity.Route{routeOf(2, 3, 4, 5, 6)})
	assert.Equal(t, []anchor{
		{ownSub: 0, ownIdx: 1, otherSub: 0, otherIdx: 0},
		{ownSub: 0, ownIdx: 4, otherSub: 0, otherIdx: 3},
	}, res)
	assert.Empty(t, followAnchors([]entity.Route{routeOf(1)}, []entity.Route{routeOf(2)}))
}

func TestOppositeStretches(t *testing.T) {
	own := routeOf(1, 2, 3, 4)
	other := entity.Route{{Section: 5}, {Section: 3, Direction: entity.Backward}, {Section: 2, Direction: entity.Backward}, {Section: 6}}
	res := oppositeStretches(own, other)
	require.Len(t, res, 1)
	assert.Equal(t, stretch{entry: 2, otherEntry: 3, sections: []int32{2, 3}}, res[0])

	assert.Empty(t, oppositeStretches(routeOf(1, 2), routeOf(1, 2)))
}

func TestResolveStartOfRouteAttach(t *testing.T) {
	alpha := withStop(simpleTrain(1, "Alpha", "06:00:10", 1, 3, 4, 5, 6), 2)
	alpha.Dispose.Commands = []input.Command{command("attach", []string{"beta"})}
	beta := withStop(simpleTrain(2, "Beta", "06:00:00", 2, 3, 4, 5, 6), 2)
	w := newWorld(t, branchLayout(), alpha, beta)
	ta, tb := w.trains.Get(1), w.trains.Get(2)

	require.NotNil(t, ta.attach)
	assert.Equal(t, timetable.PlatformEndOfRoute, ta.attach.Platform)
	assert.Equal(t, int32(2), ta.attach.OtherNumber)
	assert.Equal(t, []int32{1}, tb.needAttach[timetable.PlatformStartOfRoute])
	assert.True(t, ta.isPartner(2))
	assert.True(t, tb.isPartner(1))

	// Beta要等Alpha并入后才能上线
	w.run(60, nil)
	assert.True(t, ta.started())
	assert.False(t, tb.started())
	assert.False(t, tb.canStart())
}

func TestUnknownReferencesDropped(t *testing.T) {
	a := withStop(simpleTrain(1, "A", "06:00:10", 1, 3, 4, 5, 6), 2, command("connect", []string{"Ghost"}))
	a.Commands = []input.Command{
		command("wait", []string{"Nobody"}),
		command("activate", []string{"Nobody"}),
	}
	a.Dispose = input.Dispose{
		Forms:    "Nobody",
		Commands: []input.Command{command("attach", []string{"Nobody"}), command("pickup", []string{"Nobody"})},
	}
	w := newWorld(t, branchLayout(), a)
	tr := w.trains.Get(1)

	assert.Empty(t, tr.waits)
	assert.Nil(t, tr.attach)
	assert.Empty(t, tr.pickups[timetable.PlatformEndOfRoute])
	assert.Empty(t, tr.triggers)
	assert.Equal(t, int32(-1), tr.formsNumber)
	require.Len(t, tr.stops, 1)
	assert.Empty(t, tr.stops[0].Connects)
}

func TestWaitAnyBlockedPath(t *testing.T) {
	a := simpleTrain(1, "A", "06:00:10", 1, 3, 4, 5, 6)
	a.Commands = []input.Command{command("waitany", []string{"4", "5"})}
	b := simpleTrain(2, "B", "", 2, 3, 4, 5, 6)
	w := newWorld(t, branchLayout(), a, b)
	ta := w.trains.Get(1)
	require.Len(t, ta.waits, 1)
	wait := ta.waits[0]
	assert.Equal(t, timetable.WaitAny, wait.Kind)
	assert.Equal(t, int32(4), wait.ActiveSection)

	assert.False(t, ta.isWaitActive(wait))
	require.True(t, w.sections.OccupySections(2, []int32{5}, false))
	assert.True(t, ta.isWaitActive(wait))
}

func TestVerifyDeadlock(t *testing.T) {
	a := simpleTrain(1, "A", "", 1, 3, 4, 5, 6)
	a.Dispose.Commands = []input.Command{command("attach", []string{"B"})}
	w := newWorld(t, branchLayout(), a, simpleTrain(2, "B", "", 2, 3, 4, 5, 6), simpleTrain(3, "C", "", 2, 3, 4))
	ta, tb, tc := w.trains.Get(1), w.trains.Get(2), w.trains.Get(3)

	assert.Equal(t, []int32{3}, ta.VerifyDeadlock([]int32{2, 3}))
	assert.Equal(t, []int32{3}, tb.VerifyDeadlock([]int32{1, 3}))
	assert.Equal(t, []int32{1, 2}, tc.VerifyDeadlock([]int32{1, 2}))

	tc.finished = true
	assert.Empty(t, ta.VerifyDeadlock([]int32{3}))
}

// 对向列车在共用区间上双向登记死锁保护
func TestRegisterDeadlocks(t *testing.T) {
	layout := input.Layout{Sections: []input.Section{
		{Index: 1, Length: 200}, {Index: 2, Length: 200}, {Index: 3, Length: 200}, {Index: 4, Length: 200},
	}}
	east := simpleTrain(1, "East", "", 1, 2, 3)
	west := input.Train{
		Number: 2, Name: "West", MaxSpeed: 20, Cars: cars("W", 4),
		Paths: []input.Path{{Route: []input.RouteElement{{Section: 4, Direction: 1}, {Section: 3, Direction: 1}, {Section: 2, Direction: 1}}}},
	}
	w := newWorld(t, layout, east, west)
	w.trains.Get(1).registerDeadlocks()

	// West进入共用区间后East不能进入入口区段2，反之亦然
	assert.Empty(t, w.sections.DeadlockConflicts(2, 1))
	require.True(t, w.sections.OccupySections(2, []int32{3}, false))
	assert.Equal(t, []int32{2}, w.sections.DeadlockConflicts(2, 1))
	assert.Empty(t, w.sections.DeadlockConflicts(3, 2))
	require.True(t, w.sections.OccupySections(1, []int32{2}, false))
	assert.Equal(t, []int32{1}, w.sections.DeadlockConflicts(3, 2))

	w.sections.RemoveDeadlocks(1)
	assert.Empty(t, w.sections.DeadlockConflicts(2, 1))
	assert.Empty(t, w.sections.DeadlockConflicts(3, 2))
}

func TestConnectsPending(t *testing.T) {
	a := withStop(simpleTrain(1, "A", "06:00:10", 1, 3, 4, 5, 6), 2, command("connect", []string{"B"}, qualifier("hold", "1")))
	b := withStop(simpleTrain(2, "B", "07:00:00", 2, 3, 4, 5, 6), 2)
	w := newWorld(t, branchLayout(), a, b)
	ta, tb := w.trains.Get(1), w.trains.Get(2)
	s := ta.headStop()
	require.Len(t, s.Connects, 1)
	c := s.Connects[0]
	assert.Equal(t, int32(2), c.OtherNumber)
	assert.Equal(t, "South", c.Station)

	// 对方未上线：发车时刻之前等待
	ta.departure = w.clock.T + 10
	assert.True(t, ta.connectsPending(s))

	// 对方到达后等待hold时间
	tb.arrivals["South"] = w.clock.T
	assert.True(t, ta.connectsPending(s))
	assert.Equal(t, w.clock.T, c.ArrivalRecord)
	w.clock.SetStep(w.clock.InternalStep + 61)
	assert.False(t, ta.connectsPending(s))
	assert.Len(t, s.Connects, 1)
}

func TestConnectDroppedAtDeparture(t *testing.T) {
	for _, forced := range []bool{false, true} {
		name := "connect"
		if forced {
			name = "forcewait"
		}
		t.Run(name, func(t *testing.T) {
			a := withStop(simpleTrain(1, "A", "06:00:10", 1, 3, 4, 5, 6), 2, command(name, []string{"B"}))
			b := withStop(simpleTrain(2, "B", "07:00:00", 2, 3, 4, 5, 6), 2)
			w := newWorld(t, branchLayout(), a, b)
			ta := w.trains.Get(1)
			s := ta.headStop()
			require.Len(t, s.Connects, 1)

			ta.departure = w.clock.T
			assert.Equal(t, forced, ta.connectsPending(s))
			assert.Equal(t, forced, len(s.Connects) == 1)
		})
	}
}

// 等待中的列车（车次较小、先更新）不得为锚点以外或被其他列车挡住的信号机请求开放
func TestSignalRequestStopsAtWaitAndBlockedTrack(t *testing.T) {
	a := simpleTrain(1, "A", "", 1, 3, 4, 5, 6)
	a.Commands = []input.Command{command("wait", []string{"B"}, qualifier("notstarted"))}
	b := simpleTrain(2, "B", "06:30:00", 2, 3, 4, 5, 6)
	w := newWorld(t, branchLayout(), a, b)
	ta := w.trains.Get(1)
	require.True(t, ta.place())
	require.Len(t, ta.waits, 1)
	require.True(t, ta.isWaitActive(ta.waits[0]))
	ta.waits[0].Active = true

	ta.requestSignals()
	assert.Equal(t, int32(-1), w.signals.Get(10).ClearedFor())

	// 等待解除后，信号机前的区段被B占用
	ta.waits = nil
	require.True(t, w.sections.OccupySections(2, []int32{4}, false))
	ta.requestSignals()
	assert.Equal(t, int32(-1), w.signals.Get(10).ClearedFor())

	w.sections.ReleaseTrain(2)
	ta.requestSignals()
	assert.Equal(t, int32(1), w.signals.Get(10).ClearedFor())
}
