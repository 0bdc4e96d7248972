package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
)

func backward(secs ...int32) []input.RouteElement {
	res := forward(secs...)
	for i := range res {
		res[i].Direction = int8(entity.Backward)
	}
	return res
}

// turntableLayout 三个200米区段，区段3为转车台
func turntableLayout() input.Layout {
	return input.Layout{
		Sections: []input.Section{
			{Index: 1, Length: 200},
			{Index: 2, Length: 200},
			{Index: 3, Length: 200},
		},
		Turntables: []input.Turntable{{Section: 3, RotateTime: 30}},
	}
}

func TestReverseOntoSecondPath(t *testing.T) {
	pb := simpleTrain(1, "A", "06:00:10", 1, 3, 4)
	pb.Paths = append(pb.Paths, input.Path{Route: backward(4, 3, 2)})
	w := newWorld(t, branchLayout(), pb)
	tr := w.trains.Get(1)

	require.True(t, w.run(2000, func() bool { return tr.subpath == 1 }))
	assert.Equal(t, Stopped, tr.state)
	assert.Equal(t, backOf(4, 3, 2), tr.route)
	assert.True(t, tr.reversed)
	assert.Equal(t, []string{"A4", "A3", "A2", "A1"}, carIDs(tr))
	assert.False(t, tr.endReached)
	assert.Zero(t, tr.speed)

	require.True(t, w.run(2000, tr.Finished))
	assert.Empty(t, w.sections.Get(2).OccupiedBy())
}

func TestTurntableTurn(t *testing.T) {
	pb := simpleTrain(1, "A", "06:00:10", 1, 2, 3)
	pb.Paths = append(pb.Paths, input.Path{Route: backward(3, 2, 1)})
	w := newWorld(t, turntableLayout(), pb)
	tr := w.trains.Get(1)

	require.True(t, w.run(2000, func() bool { return tr.state == Turntable }))
	begin := w.clock.InternalStep
	assert.Equal(t, 0, tr.subpath)
	assert.Equal(t, int32(3), tr.route[tr.front.Index].Section)
	assert.Positive(t, w.turntables.Remaining(1))

	require.True(t, w.run(100, func() bool { return tr.state != Turntable }))
	assert.InDelta(t, 30, float64(w.clock.InternalStep-begin), 1)
	assert.Equal(t, Stopped, tr.state)
	assert.Equal(t, 1, tr.subpath)
	assert.Equal(t, backOf(3, 2, 1), tr.route)
	assert.True(t, tr.reversed)
	assert.Zero(t, w.turntables.Remaining(1))

	require.True(t, w.run(2000, tr.Finished))
}

func TestEndOfRouteAtReversalPoint(t *testing.T) {
	pb := simpleTrain(1, "A", "", 1, 3, 4, 5)
	pb.Paths[0].ReverseAt = &input.ReversalPoint{Section: 4, Offset: 150}
	pb.Paths = append(pb.Paths, input.Path{Route: backward(4, 3, 2)})
	w := newWorld(t, branchLayout(), pb)
	tr := w.trains.Get(1)
	require.True(t, tr.place())
	tr.moved = true

	// 车尾在区段4的140米处，尚未越过折返点
	tr.front = RoutePos{Index: 3, Offset: 40}
	tr.updateRear()
	require.Equal(t, RoutePos{Index: 2, Offset: 140}, tr.rear)
	assert.False(t, tr.passedReversalPoint())
	assert.False(t, tr.CheckEndOfRoutePositionTT())

	tr.front = RoutePos{Index: 3, Offset: 60}
	tr.updateRear()
	assert.True(t, tr.passedReversalPoint())
	assert.False(t, tr.endReached)
	assert.True(t, tr.CheckEndOfRoutePositionTT())
}

func TestReverseAtReversalPoint(t *testing.T) {
	pb := simpleTrain(1, "A", "06:00:10", 1, 3, 4, 5, 6)
	pb.Paths[0].ReverseAt = &input.ReversalPoint{Section: 4, Offset: 150}
	pb.Paths = append(pb.Paths, input.Path{Route: backward(4, 3, 2)})
	w := newWorld(t, branchLayout(), pb)
	tr := w.trains.Get(1)

	require.True(t, w.run(2000, func() bool { return tr.subpath == 1 }))
	assert.Equal(t, Stopped, tr.state)
	// 折返时车身跨区段4与5，未驶入区段6
	assert.Equal(t, backOf(5, 4, 3, 2), tr.route)
	assert.Equal(t, 1, tr.front.Index)
	assert.True(t, tr.reversed)
	assert.Empty(t, w.sections.Get(6).OccupiedBy())

	require.True(t, w.run(2000, tr.Finished))
}
