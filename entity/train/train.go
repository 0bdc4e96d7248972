package train

import (
	"strings"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/governor"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/container"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/randengine"
)

// ReversalPoint 子路径上的折返点，Offset沿行驶方向度量
type ReversalPoint struct {
	Section int32   `bson:"section"`
	Offset  float64 `bson:"offset"`
}

// aheadInfo 前方列车
type aheadInfo struct {
	Found     bool
	Number    int32
	Gap       float64 // 车头到前车最近一端的距离
	OtherEnd  bool    // true表示最近一端为前车车头（对向）
	OtherMove float64 // 前车速度
}

// Train 列车
// 功能：按时刻表自主运行的列车，维护运行状态、位置、行车许可、停站与协调义务
// 说明：车辆按行驶方向从前到后排列；位置以有效路径上的区段索引与区段内偏移表示
type Train struct {
	container.IncrementalItemBase

	ctx      entity.ITaskContext
	registry Registry
	rnd      *randengine.Engine
	k        *config.TrainConstants

	number    int32
	name      string
	freight   bool
	player    bool
	maxSpeed  float64
	startTime float64 // 计划上线时刻，None表示没有
	triggered bool    // 需要被其他列车触发
	fired     bool    // 已被触发

	cars     []*Car
	length   float64
	reversed bool // 编组朝向相对初始状态是否倒转

	state   MovementState
	control ControlMode

	paths     []entity.Route
	reverseAt []*ReversalPoint
	subpath   int
	route     entity.Route // 有效路径
	shift     int          // 有效路径索引+shift=子路径索引
	tempRoute bool         // 有效路径为临时路径（退行连挂）
	front     RoutePos
	rear      RoutePos
	occupied  []int32 // 从车尾到车头
	onTrack   bool
	moved     bool // 上线后是否移动过

	speed             float64
	prevSpeed         float64
	actualDecel       float64
	distanceTravelled float64
	allowedMax        float64
	controls          governor.Controls

	authority        entity.Authority
	nextStopDistance float64
	action           *Action
	ahead            aheadInfo
	endReached       bool // 因路径终点动作而停车
	endStop          bool // 已在endstop停站发车

	stops    []*timetable.StationStop
	arrivals map[string]float64 // 车站 -> 实际到达时刻
	waits    []*timetable.WaitInfo
	waitCmds []timetable.WaitCommand

	attach       *timetable.AttachInfo
	needAttach   map[int32][]int32 // 站台 -> 将并入本车的列车
	needTransfer map[int32][]int32 // 站台 -> 将与本车交接车辆的列车
	detaches     map[int32][]*timetable.DetachInfo
	pickups      map[int32][]*timetable.PickUpInfo
	transfers    map[int32][]*timetable.TransferInfo
	triggers     []*timetable.Trigger

	attachCmd   map[int32]*timetable.AttachCommand
	pickupCmd   map[int32][]string
	transferCmd map[int32][]timetable.TransferCommand
	detachCmd   map[int32][]timetable.DetachCommand
	activateCmd []pendingTrigger

	formsName     string
	formsNumber   int32
	formedOf      int32
	disposeStatic bool

	departure float64 // 本站计划发车时刻
	holding   bool    // 已扣停出站信号
	restartAt float64
	delay     float64 // 秒，晚点为正
	finished  bool    // 已离开仿真
	disposed  bool    // 终到后静置
}

type pendingTrigger struct {
	kind     timetable.TriggerKind
	platform int32
	target   string
}

// newTrain 由时刻表输入创建列车（Static，不在轨道上）
// 功能：解析时刻、车辆、路径、停站与命令；引用其他列车的命令暂存，待全部列车创建后解析
func newTrain(ctx entity.ITaskContext, registry Registry, rnd *randengine.Engine, pb input.Train) *Train {
	t := &Train{
		ctx:          ctx,
		registry:     registry,
		rnd:          rnd,
		k:            &ctx.RuntimeConfig().Train,
		number:       pb.Number,
		name:         pb.Name,
		freight:      pb.Freight,
		player:       pb.Player,
		maxSpeed:     pb.MaxSpeed,
		startTime:    timetable.None,
		triggered:    pb.Triggered,
		cars:         newCars(pb.Cars),
		state:        Static,
		control:      Inactive,
		front:        RoutePos{Index: -1},
		rear:         RoutePos{Index: -1},
		occupied:     make([]int32, 0),
		arrivals:     make(map[string]float64),
		needAttach:   make(map[int32][]int32),
		needTransfer: make(map[int32][]int32),
		detaches:     make(map[int32][]*timetable.DetachInfo),
		pickups:      make(map[int32][]*timetable.PickUpInfo),
		transfers:    make(map[int32][]*timetable.TransferInfo),
		attachCmd:    make(map[int32]*timetable.AttachCommand),
		pickupCmd:    make(map[int32][]string),
		transferCmd:  make(map[int32][]timetable.TransferCommand),
		detachCmd:    make(map[int32][]timetable.DetachCommand),
		formsNumber:  -1,
		formedOf:     -1,
		restartAt:    timetable.None,
		authority:    entity.Authority{Type: entity.AuthorityNoPathReserved, LastReservedSection: -1, Blocker: -1},
	}
	t.SetIndex(-1)
	t.length = carsLength(t.cars)
	if t.maxSpeed <= 0 {
		t.maxSpeed = 1e9
	}
	if pb.StartTime != "" {
		if v, err := input.ParseTime(pb.StartTime); err == nil {
			t.startTime = v
		}
	}
	for _, p := range pb.Paths {
		route := make(entity.Route, len(p.Route))
		for i, e := range p.Route {
			route[i] = entity.RouteElement{Section: e.Section, Direction: entity.Direction(e.Direction)}
		}
		t.paths = append(t.paths, route)
		if p.ReverseAt != nil {
			t.reverseAt = append(t.reverseAt, &ReversalPoint{Section: p.ReverseAt.Section, Offset: p.ReverseAt.Offset})
		} else {
			t.reverseAt = append(t.reverseAt, nil)
		}
	}
	t.route = t.paths[0].Clone()

	parsed := t.parse(pb.Commands)
	t.waitCmds = append(t.waitCmds, parsed.Waits...)
	for _, a := range parsed.Activates {
		t.activateCmd = append(t.activateCmd, pendingTrigger{kind: timetable.TriggerStart, platform: timetable.PlatformStartOfRoute, target: a.Other})
	}
	t.initStops(pb.Stops)
	t.initDispose(pb.Dispose)
	return t
}

// parse 解析命令并记录非致命错误
func (t *Train) parse(cmds []input.Command) timetable.Parsed {
	parsed, errs := timetable.Parse(cmds)
	for _, err := range errs {
		log.Warnf("train %d(%s): %v", t.number, t.name, err)
	}
	return parsed
}

// initDispose 终到处置
func (t *Train) initDispose(d input.Dispose) {
	t.formsName = d.Forms
	t.disposeStatic = d.Static
	parsed := t.parse(d.Commands)
	t.addLocationCommands(timetable.PlatformEndOfRoute, parsed)
	for _, a := range parsed.Activates {
		t.activateCmd = append(t.activateCmd, pendingTrigger{kind: timetable.TriggerDispose, platform: timetable.PlatformEndOfRoute, target: a.Other})
	}
}

// addLocationCommands 暂存与位置（站台或路径终点）相关的编组命令
func (t *Train) addLocationCommands(platform int32, parsed timetable.Parsed) {
	if parsed.Attach != nil {
		t.attachCmd[platform] = parsed.Attach
	}
	t.pickupCmd[platform] = append(t.pickupCmd[platform], parsed.PickUps...)
	t.transferCmd[platform] = append(t.transferCmd[platform], parsed.Transfers...)
	t.detachCmd[platform] = append(t.detachCmd[platform], parsed.Detaches...)
}

// Number 车次
func (t *Train) Number() int32 {
	return t.number
}

// Name 车名
func (t *Train) Name() string {
	return t.name
}

// State 运行状态
func (t *Train) State() MovementState {
	return t.state
}

// ControlMode 控制方式
func (t *Train) ControlMode() ControlMode {
	return t.control
}

// ValidRoute 有效路径
func (t *Train) ValidRoute() entity.Route {
	return t.route
}

// FrontPosition 车头位置
func (t *Train) FrontPosition() (int, float64) {
	return t.front.Index, t.front.Offset
}

// RearPosition 车尾位置
func (t *Train) RearPosition() (int, float64) {
	return t.rear.Index, t.rear.Offset
}

func (t *Train) Speed() float64 {
	return t.speed
}

func (t *Train) Cars() []*Car {
	return t.cars
}

func (t *Train) Length() float64 {
	return t.length
}

func (t *Train) Reversed() bool {
	return t.reversed
}

func (t *Train) Authority() entity.Authority {
	return t.authority
}

func (t *Train) NextStopDistance() float64 {
	return t.nextStopDistance
}

// NextAction 当前动作，没有时返回nil
func (t *Train) NextAction() *Action {
	return t.action
}

func (t *Train) Occupied() []int32 {
	return t.occupied
}

func (t *Train) OnTrack() bool {
	return t.onTrack
}

func (t *Train) Finished() bool {
	return t.finished
}

func (t *Train) Delay() float64 {
	return t.delay
}

func (t *Train) Stops() []*timetable.StationStop {
	return t.stops
}

func (t *Train) Waits() []*timetable.WaitInfo {
	return t.waits
}

// FormedOf 由哪趟列车形成，-1表示没有
func (t *Train) FormedOf() int32 {
	return t.formedOf
}

// Forms 终到后形成的列车，-1表示没有
func (t *Train) Forms() int32 {
	return t.formsNumber
}

func (t *Train) now() float64 {
	return t.ctx.Clock().T
}

func (t *Train) sectionLength(section int32) float64 {
	return t.ctx.SectionManager().Get(section).Length()
}

// started 是否已上线（含已离开仿真）
func (t *Train) started() bool {
	return t.onTrack || t.finished
}

// gone 已离开仿真或终到静置
func (t *Train) gone() bool {
	return t.finished || t.disposed
}

// pathIndex 有效路径索引对应的子路径索引
func (t *Train) pathIndex(ri int) int {
	return ri + t.shift
}

// routeIndex 子路径索引对应的有效路径索引
func (t *Train) routeIndex(pi int) int {
	return pi - t.shift
}

// hasFormationObligation 是否有待完成的连挂/摘挂/交接义务（需要以引导方式接近其他列车）
func (t *Train) hasFormationObligation() bool {
	if t.attach != nil && t.attach.Valid {
		return true
	}
	for _, ps := range t.pickups {
		if len(ps) > 0 {
			return true
		}
	}
	for _, ts := range t.transfers {
		if len(ts) > 0 {
			return true
		}
	}
	return false
}

// isPartner 对方是否为本车的连挂/摘挂/交接对象
func (t *Train) isPartner(other int32) bool {
	if t.attach != nil && t.attach.OtherNumber == other {
		return true
	}
	for _, ps := range t.pickups {
		if lo.ContainsBy(ps, func(p *timetable.PickUpInfo) bool { return p.OtherNumber == other }) {
			return true
		}
	}
	for _, ts := range t.transfers {
		if lo.ContainsBy(ts, func(x *timetable.TransferInfo) bool { return x.OtherNumber == other }) {
			return true
		}
	}
	for _, ns := range t.needAttach {
		if lo.Contains(ns, other) {
			return true
		}
	}
	for _, ns := range t.needTransfer {
		if lo.Contains(ns, other) {
			return true
		}
	}
	return false
}

func sameName(a, b string) bool {
	return strings.EqualFold(a, b)
}
