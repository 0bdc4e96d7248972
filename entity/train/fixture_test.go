package train

import (
	"fmt"
	"testing"

	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/clock"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/section"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/signal"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/turntable"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/randengine"
)

// testWorld 使用真实管理器的仿真环境
type testWorld struct {
	clock      *clock.Clock
	config     *config.RuntimeConfig
	sections   *section.SectionManager
	signals    *signal.SignalManager
	turntables *turntable.TurntableManager
	trains     *Manager
}

func (w *testWorld) Clock() *clock.Clock { return w.clock }
func (w *testWorld) SectionManager() entity.ISectionManager { return w.sections }
func (w *testWorld) SignalManager() entity.ISignalManager { return w.signals }
func (w *testWorld) TurntableManager() entity.ITurntableManager { return w.turntables }
func (w *testWorld) TrainManager() entity.ITrainManager { return w.trains }
func (w *testWorld) RuntimeConfig() *config.RuntimeConfig { return w.config }

// newWorld 06:00开始、步长1秒，起动延迟全部为0
func newWorld(t *testing.T, layout input.Layout, trains ...input.Train) *testWorld {
	t.Helper()
	k := config.DefaultTrainConstants()
	k.StationRestart = config.RestartDelay{}
	k.FollowRestart = config.RestartDelay{}
	k.TurntableRestart = config.RestartDelay{}
	k.DefaultRestart = config.RestartDelay{}
	w := &testWorld{
		clock:  clock.New(config.ControlStep{Start: 21600, Total: 20000, Interval: 1}),
		config: &config.RuntimeConfig{Train: k},
	}
	w.sections = section.NewManager(w)
	w.signals = signal.NewManager(w)
	w.turntables = turntable.NewManager(w)
	w.trains = NewManager(w, randengine.New(1))
	w.sections.Init(layout.Sections, layout.Platforms, layout.Signals)
	w.signals.Init(layout.Signals)
	w.turntables.Init(layout.Turntables)
	w.trains.Init(trains)
	return w
}

func (w *testWorld) step() {
	w.clock.Tick()
	w.signals.Prepare()
	w.trains.Prepare()
	w.turntables.Update(w.clock.DT)
	w.trains.Update(w.clock.DT)
}

// run 推进至多n步，cond成立时提前结束
func (w *testWorld) run(n int, cond func() bool) bool {
	for range n {
		if cond != nil && cond() {
			return true
		}
		w.step()
	}
	return cond != nil && cond()
}

// branchLayout 两条支线汇入同一正线
//
//	1 ─┐
//	   3 ── 4 ── 5 ── 6|
//	2 ─┘
//
// 区段均长200米，3为道岔，6为尽头线；站台P1在区段1，站台P2在区段5；信号机10在区段4正向末端
func branchLayout() input.Layout {
	return input.Layout{
		Sections: []input.Section{
			{Index: 1, Length: 200},
			{Index: 2, Length: 200},
			{Index: 3, Length: 200, Kind: "junction"},
			{Index: 4, Length: 200},
			{Index: 5, Length: 200},
			{Index: 6, Length: 200, Kind: "end_of_track"},
		},
		Platforms: []input.Platform{
			{ID: 1, Name: "P1", Station: "North", Sections: []int32{1}, StartOffset: 20, EndOffset: 180},
			{ID: 2, Name: "P2", Station: "South", Sections: []int32{5}, StartOffset: 20, EndOffset: 180},
		},
		Signals: []input.Signal{{ID: 10, Section: 4, Direction: 0}},
	}
}

// yardLayout 一段400米的长区段，两端各接一个区段
func yardLayout() input.Layout {
	return input.Layout{
		Sections: []input.Section{
			{Index: 1, Length: 200},
			{Index: 2, Length: 400},
			{Index: 3, Length: 200, Kind: "end_of_track"},
		},
	}
}

func forward(secs ...int32) []input.RouteElement {
	res := make([]input.RouteElement, len(secs))
	for i, s := range secs {
		res[i] = input.RouteElement{Section: s}
	}
	return res
}

// cars n辆25米的车辆，第一辆为动力车
func cars(prefix string, n int) []input.Car {
	res := make([]input.Car, n)
	for i := range res {
		res[i] = input.Car{ID: fmt.Sprintf("%s%d", prefix, i+1), Length: 25, Powered: i == 0}
	}
	return res
}

func command(name string, values []string, qualifiers ...input.Qualifier) input.Command {
	return input.Command{Name: name, Values: values, Qualifiers: qualifiers}
}

func qualifier(name string, values ...string) input.Qualifier {
	return input.Qualifier{Name: name, Values: values}
}

func simpleTrain(number int32, name, start string, secs ...int32) input.Train {
	return input.Train{
		Number:    number,
		Name:      name,
		StartTime: start,
		MaxSpeed:  20,
		Cars:      cars(name, 4),
		Paths:     []input.Path{{Route: forward(secs...)}},
	}
}

func carIDs(t *Train) []string {
	res := make([]string, len(t.cars))
	for i, c := range t.cars {
		res[i] = c.ID
	}
	return res
}
