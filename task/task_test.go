package task_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/task"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/output"
)

func line() *input.Input {
	return &input.Input{
		Layout: &input.Layout{
			Sections: []input.Section{
				{Index: 1, Length: 200},
				{Index: 2, Length: 200},
				{Index: 3, Length: 200, Kind: "end_of_track"},
			},
		},
		Timetable: &input.Timetable{Trains: []input.Train{{
			Number:    1,
			Name:      "Up",
			StartTime: "06:01:30",
			MaxSpeed:  20,
			Cars:      []input.Car{{ID: "U1", Length: 25, Powered: true}, {ID: "U2", Length: 25}},
			Paths:     []input.Path{{Route: []input.RouteElement{{Section: 1}, {Section: 2}, {Section: 3}}}},
		}}},
	}
}

func testConfig(dir string) config.Config {
	return config.Config{
		Control: config.Control{
			Step: config.ControlStep{Start: 21600, Total: 300, Interval: 1},
			Seed: 7,
		},
		Output: &config.Output{Snapshot: &config.OutputPath{Dir: dir, Interval: 100}},
	}
}

func TestRunWritesSnapshots(t *testing.T) {
	dir := t.TempDir()
	ctx, err := task.NewContext("job0", testConfig(dir), line(), nil, false)
	require.NoError(t, err)
	require.NoError(t, ctx.Run())
	assert.Equal(t, int32(21899), ctx.Clock().InternalStep)

	_, err = os.Stat(filepath.Join(dir, "job0."+ctx.RunID()+".00021700.bson"))
	assert.NoError(t, err)

	store, err := output.NewFileStore(dir)
	require.NoError(t, err)
	var s task.Snapshot
	require.NoError(t, store.Load(context.Background(), "job0."+ctx.RunID()+".final", &s))
	assert.Equal(t, "job0", s.Job)
	assert.Equal(t, ctx.RunID(), s.RunID)
	assert.Equal(t, int32(21899), s.Step)
	require.NotNil(t, s.Trains)
	require.Len(t, s.Trains.Trains, 1)
	assert.True(t, s.Trains.Trains[0].Finished)
}

func TestInitRestoresSnapshot(t *testing.T) {
	dir := t.TempDir()
	first, err := task.NewContext("job0", testConfig(dir), line(), nil, false)
	require.NoError(t, err)
	require.NoError(t, first.Run())

	c := testConfig(dir)
	c.Output.Restore = "job0." + first.RunID() + ".00021700"
	second, err := task.NewContext("job0", c, line(), nil, false)
	require.NoError(t, err)
	defer second.Close()
	assert.NotEqual(t, first.RunID(), second.RunID())
	require.NoError(t, second.Init())
	assert.Equal(t, int32(21700), second.Clock().InternalStep)
	assert.Equal(t, 1, second.TrainManager().ActiveCount())

	require.NoError(t, second.Step())
	assert.Equal(t, int32(21701), second.Clock().InternalStep)
}

func TestInitMissingSnapshot(t *testing.T) {
	c := testConfig(t.TempDir())
	c.Output.Restore = "nope"
	ctx, err := task.NewContext("job0", c, line(), nil, false)
	require.NoError(t, err)
	defer ctx.Close()
	err = ctx.Init()
	assert.ErrorIs(t, err, output.ErrNotFound)
}
