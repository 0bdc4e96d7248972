package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
)

// adjacentPair A在区段2的[100,200]，B紧贴其后在[0,100]
func adjacentPair(t *testing.T) (*testWorld, *Train, *Train) {
	w := newWorld(t, yardLayout(), simpleTrain(1, "A", "", 2, 3), simpleTrain(2, "B", "", 2, 3))
	ta, tb := w.trains.Get(1), w.trains.Get(2)
	require.True(t, tb.place())
	ta.route = ta.paths[0].Clone()
	ta.front = RoutePos{Index: 0, Offset: 200}
	ta.updateRear()
	require.True(t, w.sections.OccupySections(1, []int32{2}, true))
	ta.occupied = []int32{2}
	ta.onTrack = true
	return w, ta, tb
}

func TestPickUp(t *testing.T) {
	w, ta, tb := adjacentPair(t)

	done, err := ta.pickUp(tb)
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, []string{"A1", "A2", "A3", "A4", "B1", "B2", "B3", "B4"}, carIDs(ta))
	assert.InDelta(t, 200, ta.Length(), 1e-9)
	assert.Equal(t, RoutePos{Index: 0, Offset: 0}, ta.rear)
	assert.True(t, tb.Finished())
	assert.Empty(t, tb.cars)
	assert.Equal(t, []int32{1}, w.sections.Get(2).OccupiedBy())
}

func TestTransferGive(t *testing.T) {
	w, ta, tb := adjacentPair(t)
	x := &timetable.TransferInfo{Give: true, Spec: timetable.UnitSpec{Mode: timetable.DetachUnits, Units: 1}}

	done, err := tb.transfer(ta, x)
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, []string{"A1", "A2", "A3", "A4", "B1"}, carIDs(ta))
	assert.Equal(t, []string{"B2", "B3", "B4"}, carIDs(tb))
	assert.InDelta(t, 75, ta.rear.Offset, 1e-9)
	assert.InDelta(t, 75, tb.front.Offset, 1e-9)
	assert.False(t, tb.Finished())
	assert.ElementsMatch(t, []int32{1, 2}, w.sections.Get(2).OccupiedBy())
}

func TestTransferTakeAll(t *testing.T) {
	_, ta, tb := adjacentPair(t)
	x := &timetable.TransferInfo{Spec: timetable.UnitSpec{Mode: timetable.DetachUnits, Units: 4}}

	// A接收B的全部车辆，B离开仿真
	done, err := ta.transfer(tb, x)
	require.NoError(t, err)
	require.True(t, done)
	assert.Len(t, ta.cars, 8)
	assert.True(t, tb.Finished())
}

func TestTransferLeavesPlayerWithoutLocomotive(t *testing.T) {
	_, ta, tb := adjacentPair(t)
	tb.player = true
	x := &timetable.TransferInfo{Give: true, Spec: timetable.UnitSpec{Mode: timetable.DetachUnits, Units: 1}}

	done, err := tb.transfer(ta, x)
	assert.True(t, done)
	assert.ErrorIs(t, err, ErrNoDrivableLocomotive)
}
