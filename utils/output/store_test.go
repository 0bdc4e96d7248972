package output_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/output"
)

type sample struct {
	Step   int32              `bson:"step"`
	Speeds []float64          `bson:"speeds"`
	Waits  map[string][]int32 `bson:"waits"`
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := output.NewFileStore(t.TempDir())
	require.NoError(t, err)
	want := sample{Step: 12, Speeds: []float64{0.1, 12.345678901234}, Waits: map[string][]int32{"3": {1, 2}}}
	require.NoError(t, s.Save(ctx, "job0-12", want))

	var got sample
	require.NoError(t, s.Load(ctx, "job0-12", &got))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	err = s.Load(ctx, "missing", &got)
	assert.ErrorIs(t, err, output.ErrNotFound)
	assert.NoError(t, s.Close(ctx))
}

func TestNewStoreSelection(t *testing.T) {
	s, err := output.New(nil)
	assert.NoError(t, err)
	assert.Nil(t, s)

	_, err = output.New(&config.Output{Snapshot: &config.OutputPath{DB: "a", Col: "b"}})
	assert.Error(t, err)

	s, err = output.New(&config.Output{Snapshot: &config.OutputPath{Dir: t.TempDir()}})
	require.NoError(t, err)
	assert.IsType(t, &output.FileStore{}, s)
}
