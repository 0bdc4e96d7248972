package train

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestTrainRPC(t *testing.T) {
	a := withStop(simpleTrain(1, "A", "06:00:10", 1, 3, 4, 5, 6), 2)
	w := newWorld(t, branchLayout(), a, simpleTrain(2, "B", "07:00:00", 2, 3, 4, 5, 6))
	require.True(t, w.run(100, func() bool { return w.trains.ActiveCount() == 1 }))
	ctx := context.Background()

	res, err := w.trains.ListTrains(ctx, &structpb.Struct{})
	require.NoError(t, err)
	assert.Len(t, res.GetFields()["trains"].GetListValue().GetValues(), 1)

	in, err := structpb.NewStruct(map[string]any{"numbers": []any{2, 7}})
	require.NoError(t, err)
	res, err = w.trains.ListTrains(ctx, in)
	require.NoError(t, err)
	trains := res.GetFields()["trains"].GetListValue().GetValues()
	require.Len(t, trains, 1)
	assert.Equal(t, "B", trains[0].GetStructValue().GetFields()["name"].GetStringValue())
	missing := res.GetFields()["missing"].GetListValue().GetValues()
	require.Len(t, missing, 1)
	assert.Equal(t, 7., missing[0].GetNumberValue())

	in, err = structpb.NewStruct(map[string]any{"number": 1})
	require.NoError(t, err)
	res, err = w.trains.GetTrain(ctx, in)
	require.NoError(t, err)
	assert.True(t, res.GetFields()["on_track"].GetBoolValue())
	assert.Equal(t, "P2", res.GetFields()["next_stop"].GetStringValue())

	res, err = w.trains.GetSnapshot(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "A", res.GetFields()["name"].GetStringValue())

	in, err = structpb.NewStruct(map[string]any{"number": 9})
	require.NoError(t, err)
	_, err = w.trains.GetTrain(ctx, in)
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}
