package clock_test

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	clockv1 "git.fiblab.net/sim/protos/v2/go/city/clock/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/clock"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/config"
)

func TestClockTick(t *testing.T) {
	c := clock.New(config.ControlStep{Start: 21600, Total: 3, Interval: 1})
	assert.Equal(t, 21600.0, c.T)
	assert.Equal(t, "06:00:00", c.String())
	c.Tick()
	assert.Equal(t, int32(21601), c.InternalStep)
	assert.False(t, c.Finished())
	c.Tick()
	assert.True(t, c.Finished())
	h, m, s := c.GetHourMinuteSecond()
	assert.Equal(t, 6, h)
	assert.Equal(t, 0, m)
	assert.Equal(t, 2.0, s)
	c.SetStep(21600 + 90)
	assert.Equal(t, "06:01:30", c.String())
}

func TestClockNow(t *testing.T) {
	c := clock.New(config.ControlStep{Start: 10, Total: 10, Interval: 0.5})
	res, err := c.Now(context.Background(), connect.NewRequest(&clockv1.NowRequest{}))
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Msg.T)
}
