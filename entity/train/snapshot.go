package train

import (
	"maps"
	"slices"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/governor"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
)

// PlatformTrains 站台键与列车列表（按站台键保存的依赖）
type PlatformTrains struct {
	Platform int32   `bson:"platform"`
	Trains   []int32 `bson:"trains"`
}

// Snapshot 列车状态快照
// 说明：按站台键的映射以切片保存，恢复时按Platform字段重新分组
type Snapshot struct {
	Number int32  `bson:"number"`
	Name   string `bson:"name"`
	Player bool   `bson:"player"`
	Fired  bool   `bson:"fired"`

	Cars     []Car         `bson:"cars"`
	Reversed bool          `bson:"reversed"`
	State    MovementState `bson:"state"`
	Control  ControlMode   `bson:"control"`

	Subpath   int          `bson:"subpath"`
	Route     entity.Route `bson:"route"`
	Shift     int          `bson:"shift"`
	TempRoute bool         `bson:"temp_route"`
	Front     RoutePos     `bson:"front"`
	Rear      RoutePos     `bson:"rear"`
	Occupied  []int32      `bson:"occupied"`
	OnTrack   bool         `bson:"on_track"`
	Moved     bool         `bson:"moved"`

	Speed             float64           `bson:"speed"`
	PrevSpeed         float64           `bson:"prev_speed"`
	ActualDecel       float64           `bson:"actual_decel"`
	DistanceTravelled float64           `bson:"distance_travelled"`
	AllowedMax        float64           `bson:"allowed_max"`
	Controls          governor.Controls `bson:"controls"`

	Authority        entity.Authority `bson:"authority"`
	NextStopDistance float64          `bson:"next_stop_distance"`
	Action           *Action          `bson:"action,omitempty"`
	EndReached       bool             `bson:"end_reached"`
	EndStop          bool             `bson:"end_stop"`

	Stops    []*timetable.StationStop `bson:"stops"`
	Arrivals map[string]float64       `bson:"arrivals"`
	Waits    []*timetable.WaitInfo    `bson:"waits"`

	Attach       *timetable.AttachInfo     `bson:"attach,omitempty"`
	NeedAttach   []PlatformTrains          `bson:"need_attach"`
	NeedTransfer []PlatformTrains          `bson:"need_transfer"`
	Detaches     []*timetable.DetachInfo   `bson:"detaches"`
	PickUps      []*timetable.PickUpInfo   `bson:"pickups"`
	Transfers    []*timetable.TransferInfo `bson:"transfers"`
	Triggers     []*timetable.Trigger      `bson:"triggers"`

	FormsNumber int32 `bson:"forms_number"`
	FormedOf    int32 `bson:"formed_of"`

	Departure float64 `bson:"departure"`
	Holding   bool    `bson:"holding"`
	RestartAt float64 `bson:"restart_at"`
	Delay     float64 `bson:"delay"`
	Finished  bool    `bson:"finished"`
	Disposed  bool    `bson:"disposed"`
}

// platformKeys 站台键按升序排列，保证快照内容确定
func platformKeys[V any](m map[int32]V) []int32 {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}

func flattenNeeds(m map[int32][]int32) []PlatformTrains {
	res := make([]PlatformTrains, 0, len(m))
	for _, k := range platformKeys(m) {
		if len(m[k]) == 0 {
			continue
		}
		res = append(res, PlatformTrains{Platform: k, Trains: slices.Clone(m[k])})
	}
	return res
}

func groupNeeds(s []PlatformTrains) map[int32][]int32 {
	m := make(map[int32][]int32, len(s))
	for _, p := range s {
		m[p.Platform] = slices.Clone(p.Trains)
	}
	return m
}

// flatten 按站台键展开并逐个复制
func flatten[T any](m map[int32][]*T) []*T {
	res := make([]*T, 0)
	for _, k := range platformKeys(m) {
		for _, x := range m[k] {
			c := *x
			res = append(res, &c)
		}
	}
	return res
}

// group 按站台键重新分组
func group[T any](s []*T, key func(*T) int32) map[int32][]*T {
	m := make(map[int32][]*T)
	for _, x := range s {
		c := *x
		m[key(&c)] = append(m[key(&c)], &c)
	}
	return m
}

func cloneCars(cars []*Car) []Car {
	return lo.Map(cars, func(c *Car, _ int) Car { return *c })
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// Snapshot 导出列车完整状态
func (t *Train) Snapshot() *Snapshot {
	return &Snapshot{
		Number:            t.number,
		Name:              t.name,
		Player:            t.player,
		Fired:             t.fired,
		Cars:              cloneCars(t.cars),
		Reversed:          t.reversed,
		State:             t.state,
		Control:           t.control,
		Subpath:           t.subpath,
		Route:             t.route.Clone(),
		Shift:             t.shift,
		TempRoute:         t.tempRoute,
		Front:             t.front,
		Rear:              t.rear,
		Occupied:          slices.Clone(t.occupied),
		OnTrack:           t.onTrack,
		Moved:             t.moved,
		Speed:             t.speed,
		PrevSpeed:         t.prevSpeed,
		ActualDecel:       t.actualDecel,
		DistanceTravelled: t.distanceTravelled,
		AllowedMax:        t.allowedMax,
		Controls:          t.controls,
		Authority:         t.authority,
		NextStopDistance:  t.nextStopDistance,
		Action:            copyPtr(t.action),
		EndReached:        t.endReached,
		EndStop:           t.endStop,
		Stops:             lo.Map(t.stops, func(s *timetable.StationStop, _ int) *timetable.StationStop { return s.Clone() }),
		Arrivals:          maps.Clone(t.arrivals),
		Waits:             lo.Map(t.waits, func(w *timetable.WaitInfo, _ int) *timetable.WaitInfo { return w.Clone() }),
		Attach:            copyPtr(t.attach),
		NeedAttach:        flattenNeeds(t.needAttach),
		NeedTransfer:      flattenNeeds(t.needTransfer),
		Detaches:          flatten(t.detaches),
		PickUps:           flatten(t.pickups),
		Transfers:         flatten(t.transfers),
		Triggers:          lo.Map(t.triggers, func(g *timetable.Trigger, _ int) *timetable.Trigger { return copyPtr(g) }),
		FormsNumber:       t.formsNumber,
		FormedOf:          t.formedOf,
		Departure:         t.departure,
		Holding:           t.holding,
		RestartAt:         t.restartAt,
		Delay:             t.delay,
		Finished:          t.finished,
		Disposed:          t.disposed,
	}
}

// restore 由快照恢复列车状态（不含区段、信号等外部状态）
func (t *Train) restore(s *Snapshot) {
	t.player = s.Player
	t.fired = s.Fired
	t.cars = lo.Map(s.Cars, func(c Car, _ int) *Car { return &c })
	t.length = carsLength(t.cars)
	t.reversed = s.Reversed
	t.state = s.State
	t.control = s.Control
	t.subpath = s.Subpath
	t.route = s.Route.Clone()
	t.shift = s.Shift
	t.tempRoute = s.TempRoute
	t.front = s.Front
	t.rear = s.Rear
	t.occupied = slices.Clone(s.Occupied)
	t.onTrack = s.OnTrack
	t.moved = s.Moved
	t.speed = s.Speed
	t.prevSpeed = s.PrevSpeed
	t.actualDecel = s.ActualDecel
	t.distanceTravelled = s.DistanceTravelled
	t.allowedMax = s.AllowedMax
	t.controls = s.Controls
	t.authority = s.Authority
	t.nextStopDistance = s.NextStopDistance
	t.action = copyPtr(s.Action)
	t.endReached = s.EndReached
	t.endStop = s.EndStop
	t.stops = lo.Map(s.Stops, func(x *timetable.StationStop, _ int) *timetable.StationStop { return x.Clone() })
	t.arrivals = maps.Clone(s.Arrivals)
	if t.arrivals == nil {
		t.arrivals = make(map[string]float64)
	}
	t.waits = lo.Map(s.Waits, func(w *timetable.WaitInfo, _ int) *timetable.WaitInfo { return w.Clone() })
	t.attach = copyPtr(s.Attach)
	t.needAttach = groupNeeds(s.NeedAttach)
	t.needTransfer = groupNeeds(s.NeedTransfer)
	t.detaches = group(s.Detaches, func(d *timetable.DetachInfo) int32 { return d.Platform })
	t.pickups = group(s.PickUps, func(p *timetable.PickUpInfo) int32 { return p.Platform })
	t.transfers = group(s.Transfers, func(x *timetable.TransferInfo) int32 { return x.Platform })
	t.triggers = lo.Map(s.Triggers, func(g *timetable.Trigger, _ int) *timetable.Trigger { return copyPtr(g) })
	t.formsNumber = s.FormsNumber
	t.formedOf = s.FormedOf
	t.departure = s.Departure
	t.holding = s.Holding
	t.restartAt = s.RestartAt
	t.delay = s.Delay
	t.finished = s.Finished
	t.disposed = s.Disposed
	t.ahead = aheadInfo{Number: -1}
}

// ResetActions 恢复后清除动作，下一步按当前许可重新生成
func (t *Train) ResetActions() {
	t.action = nil
	t.ahead = aheadInfo{Number: -1}
}
