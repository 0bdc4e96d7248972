package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
)

func fixedLength(l float64) lengthFunc {
	return func(int32) float64 { return l }
}

func routeOf(secs ...int32) entity.Route {
	r := make(entity.Route, len(secs))
	for i, s := range secs {
		r[i] = entity.RouteElement{Section: s}
	}
	return r
}

func TestWalk(t *testing.T) {
	r := routeOf(1, 2, 3)
	l := fixedLength(100)

	p, ok := walkForward(r, RoutePos{Index: 0, Offset: 50}, 120, l)
	assert.True(t, ok)
	assert.Equal(t, RoutePos{Index: 1, Offset: 70}, p)

	p, ok = walkForward(r, RoutePos{Index: 1, Offset: 50}, 300, l)
	assert.False(t, ok)
	assert.Equal(t, RoutePos{Index: 2, Offset: 100}, p)

	p, ok = walkBack(r, RoutePos{Index: 2, Offset: 30}, 150, l)
	assert.True(t, ok)
	assert.Equal(t, RoutePos{Index: 0, Offset: 80}, p)

	p, ok = walkBack(r, RoutePos{Index: 0, Offset: 30}, 50, l)
	assert.False(t, ok)
	assert.Equal(t, RoutePos{Index: 0, Offset: 0}, p)

	back := entity.Route{{Section: 7, Direction: entity.Backward}}
	assert.Equal(t, TrackPos{Section: 7, Offset: 70}, toTrack(back, RoutePos{Index: 0, Offset: 30}, l))
}

func TestAlignRoute(t *testing.T) {
	l := fixedLength(100)
	elems := routeOf(1, 2)
	front := RoutePos{Index: 1, Offset: 40}
	rear := RoutePos{Index: 0, Offset: 60}

	// 新路径沿原方向继续
	route, p, shift, reversed, ok := alignRoute(elems, front, rear, routeOf(0, 1, 2, 3), l)
	require.True(t, ok)
	assert.False(t, reversed)
	assert.Equal(t, routeOf(1, 2, 3), route)
	assert.Equal(t, front, p)
	assert.Equal(t, 1, shift)

	// 新路径反向经过车身：原车尾成为车头
	next := entity.Route{{Section: 2, Direction: entity.Backward}, {Section: 1, Direction: entity.Backward}, {Section: 0, Direction: entity.Backward}}
	route, p, shift, reversed, ok = alignRoute(elems, front, rear, next, l)
	require.True(t, ok)
	assert.True(t, reversed)
	assert.Equal(t, next, route)
	assert.Equal(t, RoutePos{Index: 1, Offset: 40}, p)
	assert.Equal(t, 0, shift)

	_, _, _, _, ok = alignRoute(elems, front, rear, routeOf(5, 6), l)
	assert.False(t, ok)
}

func TestBodySplit(t *testing.T) {
	l := fixedLength(100)
	cs := []*Car{{ID: "a", Length: 25}, {ID: "b", Length: 25}, {ID: "c", Length: 25}, {ID: "d", Length: 25}}
	// 车尾在区段1的50米处，车头在区段2的50米处
	b := body{cars: cs, elems: routeOf(1, 2), front: 50, rear: 50}

	taken, rest := b.split(2, true, l)
	assert.Equal(t, []*Car{cs[0], cs[1]}, taken.cars)
	assert.Equal(t, routeOf(2), taken.elems)
	assert.InDelta(t, 0, taken.rear, 1e-9)
	assert.InDelta(t, 50, taken.front, 1e-9)
	assert.Equal(t, routeOf(1), rest.elems)
	assert.InDelta(t, 50, rest.rear, 1e-9)
	assert.InDelta(t, 100, rest.front, 1e-9)

	taken, rest = b.split(1, false, l)
	assert.Equal(t, []*Car{cs[3]}, taken.cars)
	assert.Equal(t, routeOf(1), taken.elems)
	assert.InDelta(t, 75, taken.front, 1e-9)
	assert.Equal(t, routeOf(1, 2), rest.elems)
	assert.InDelta(t, 75, rest.rear, 1e-9)
	assert.Len(t, rest.cars, 3)

	f := b.flip(l)
	assert.Equal(t, entity.Route{{Section: 2, Direction: entity.Backward}, {Section: 1, Direction: entity.Backward}}, f.elems)
	assert.InDelta(t, 50, f.front, 1e-9)
	assert.InDelta(t, 50, f.rear, 1e-9)
	assert.Equal(t, "d", f.cars[0].ID)
	assert.True(t, f.cars[0].Flipped)
}

func TestSelectUnits(t *testing.T) {
	loco := func(id string) *Car { return &Car{ID: id, Length: 20, Powered: true} }
	tender := func(id string) *Car { return &Car{ID: id, Length: 10, Tender: true} }
	wagon := func(id string) *Car { return &Car{ID: id, Length: 15, Consist: "w"} }
	mixed := []*Car{loco("l1"), tender("t1"), loco("l2"), wagon("w1"), wagon("w2"), loco("l3")}
	tail := []*Car{wagon("w1"), loco("l1"), tender("t1")}
	goods := []*Car{loco("l1"), wagon("w1"), wagon("w2")}

	cases := []struct {
		name  string
		cars  []*Car
		spec  timetable.UnitSpec
		n     int
		front bool
	}{
		{"units rear", mixed, timetable.UnitSpec{Mode: timetable.DetachUnits, Units: 2}, 2, false},
		{"units front", mixed, timetable.UnitSpec{Mode: timetable.DetachUnits, Units: 1, Front: true}, 1, true},
		{"leading power", mixed, timetable.UnitSpec{Mode: timetable.DetachLeadingPower}, 2, true},
		{"all leading power", mixed, timetable.UnitSpec{Mode: timetable.DetachAllLeadingPower}, 3, true},
		{"trailing power", mixed, timetable.UnitSpec{Mode: timetable.DetachTrailingPower}, 1, false},
		{"trailing power with tender", tail, timetable.UnitSpec{Mode: timetable.DetachTrailingPower}, 2, false},
		{"no non-power at ends", mixed, timetable.UnitSpec{Mode: timetable.DetachNonPower}, 0, true},
		{"non-power at rear", goods, timetable.UnitSpec{Mode: timetable.DetachNonPower}, 2, false},
		{"consist at rear", goods, timetable.UnitSpec{Mode: timetable.DetachConsist, Consist: "w"}, 2, false},
		{"consist at front", tail, timetable.UnitSpec{Mode: timetable.DetachConsist, Consist: "w"}, 1, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n, front := selectUnits(c.cars, c.spec)
			assert.Equal(t, c.n, n)
			assert.Equal(t, c.front, front)
		})
	}
	assert.Equal(t, 1, powerRun([]*Car{loco("x"), loco("y")}, false))
	assert.Equal(t, 2, powerRun([]*Car{loco("x"), loco("y")}, true))
}

func TestNextStopDistance(t *testing.T) {
	cases := []struct {
		kind entity.AuthorityType
		want float64
	}{
		{entity.AuthorityReservedSwitch, 30},
		{entity.AuthorityLoop, 30},
		{entity.AuthorityEndOfAuthority, 40},
		{entity.AuthorityEndOfPath, 40},
		{entity.AuthorityTrainAhead, 40},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, nextStopDistance(entity.Authority{Type: c.kind, Distance: 40}, 5), 1e-9, c.kind.String())
	}
	assert.Equal(t, 0.0, nextStopDistance(entity.Authority{Type: entity.AuthorityReservedSwitch, Distance: 6}, 5))
}
