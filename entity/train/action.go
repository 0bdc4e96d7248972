package train

import (
	"fmt"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/governor"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
)

// ActionType 动作类型
type ActionType int32

const (
	ActionStationStop ActionType = iota
	ActionReversal
	ActionEndOfRoute
	ActionEndOfAuthority
	ActionSignalStop
	ActionSignalRestricted
	ActionSpeedLimit
	ActionTrainAhead
)

var actionNames = [...]string{
	"StationStop", "Reversal", "EndOfRoute", "EndOfAuthority",
	"SignalStop", "SignalRestricted", "SpeedLimit", "TrainAhead",
}

func (a ActionType) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return fmt.Sprintf("ActionType(%d)", int32(a))
	}
	return actionNames[a]
}

// Action 下一动作
// 说明：距离以行驶里程坐标表示，与distanceTravelled比较
type Action struct {
	Type               ActionType `bson:"type"`
	RequiredDistance   float64    `bson:"required_distance"`
	ActivationDistance float64    `bson:"activation_distance"`
	RequiredSpeed      float64    `bson:"required_speed"`
	Creep              float64    `bson:"creep"`
	Other              int32      `bson:"other"` // 信号机或前车，-1表示没有
}

// creepFor 各类动作的蠕行余量
func (t *Train) creepFor(kind ActionType) float64 {
	switch kind {
	case ActionStationStop:
		return t.k.StationCreep
	case ActionSignalStop:
		return t.k.SignalCreep
	case ActionSignalRestricted, ActionSpeedLimit:
		return 0
	}
	return t.k.ClearingCreep
}

// decel 当前速度下的标称减速度
func (t *Train) decel() float64 {
	return governor.Deceleration(t.freight, t.speed, t.k)
}

// CreateTrainAction 创建动作
// 参数：kind-动作类型，distance-车头到动作点的距离，requiredSpeed-动作点要求速度，other-信号机或前车
// 返回：动作，激活距离为以一半标称减速度从max(当前速度,允许速度)降到要求速度的距离加蠕行与出清余量
func (t *Train) CreateTrainAction(kind ActionType, distance, requiredSpeed float64, other int32) *Action {
	creep := t.creepFor(kind)
	brake := governor.BrakingDistanceTo(max(t.speed, t.allowedMax), requiredSpeed, 0.5*t.decel())
	return &Action{
		Type:               kind,
		RequiredDistance:   t.distanceTravelled + distance,
		ActivationDistance: t.distanceTravelled + distance - brake - creep - t.k.ClearingDistance,
		RequiredSpeed:      requiredSpeed,
		Creep:              creep,
		Other:              other,
	}
}

// remaining 到动作点的剩余距离
func (t *Train) remaining(a *Action) float64 {
	return a.RequiredDistance - t.distanceTravelled
}

// governorInput 构造调速器输入
func (t *Train) governorInput(a *Action, dt float64) governor.Input {
	in := governor.Input{
		Speed:         t.speed,
		PrevSpeed:     t.prevSpeed,
		RequiredSpeed: t.allowedMax,
		Distance:      mathutil.INF,
		AllowedMax:    t.allowedMax,
		Decel:         t.decel(),
		ActualDecel:   t.actualDecel,
		DT:            dt,
		Throttle:      t.controls.Throttle,
		Brake:         t.controls.Brake,
	}
	if a != nil {
		in.RequiredSpeed = a.RequiredSpeed
		in.Distance = t.remaining(a)
		in.Creep = a.Creep
	}
	return in
}

// nextStopDistance 由行车许可推算可行驶距离：道岔被预留或路径成环时扣除两倍道岔保护余量
func nextStopDistance(a entity.Authority, junctionOverlap float64) float64 {
	switch a.Type {
	case entity.AuthorityReservedSwitch, entity.AuthorityLoop:
		return max(a.Distance-2*junctionOverlap, 0)
	}
	return a.Distance
}

// updateAllowedMax 允许最高速度：列车最高速度与车身所在区段限速的较小者
func (t *Train) updateAllowedMax() {
	v := t.maxSpeed
	secs := t.ctx.SectionManager()
	for _, s := range t.occupied {
		if m := secs.Get(s).MaxV(); m > 0 {
			v = min(v, m)
		}
	}
	t.allowedMax = v
}

// refreshAuthority 每步重新计算行车许可与下一动作
// 算法说明：
// 1. 清除未占用区段上的预留，请求开放前方信号机，再向区段管理器请求行车许可
// 2. 扫描前方列车，计算可行驶距离（含等待锚点截断）
// 3. 生成候选动作，取当前允许速度最低者
func (t *Train) refreshAuthority() {
	secs := t.ctx.SectionManager()
	secs.ClearReservations(t.number)
	t.updateAllowedMax()
	t.requestSignals()
	t.authority = secs.RequestAuthority(t, t.checkDistance())
	t.ahead = t.locateTrainAhead()
	t.nextStopDistance = t.computeNextStopDistance()
	t.action = t.selectAction(t.candidateActions())
}

// checkDistance 请求许可的最大距离：生效的等待义务使许可不越过锚点
func (t *Train) checkDistance() float64 {
	d := t.k.MaxCheckDistance
	if w := t.headWait(); w != nil && w.Active {
		if ad, ok := t.anchorDistance(w); ok {
			d = min(d, max(ad, 0))
		}
	}
	return d
}

// permissive 是否允许以引导方式进入前车占用的区段
func (t *Train) permissive() bool {
	if t.hasFormationObligation() {
		return true
	}
	if s := t.headStop(); s != nil && (s.CallOn || s.Closeup) && s.Subpath == int32(t.subpath) {
		return true
	}
	return false
}

// requestSignals 请求开放前方信号机
// 算法说明：
// 1. 只请求信号请求距离与许可检查距离（含等待锚点截断）内的信号机
// 2. 信号机之前的区段被其他列车占用或预留时停止，不为被挡住的列车开放信号
// 3. 遇到扣停或未能开放的信号机即停止
func (t *Train) requestSignals() {
	sigs := t.ctx.SignalManager()
	secs := t.ctx.SectionManager()
	held := t.heldExitSignal()
	permissive := t.permissive()
	limit := min(t.k.SignalRequestDistance, t.checkDistance())
	from := t.front.Index
	checked := t.front.Index
	for {
		id, i := sigs.NextSignal(t.route, from)
		if id == -1 || i+1 >= len(t.route) {
			return
		}
		if t.distanceTo(i, t.sectionLength(t.route[i].Section)) > limit {
			return
		}
		for ; checked < i; checked++ {
			if t.blockedByOther(secs.Get(t.route[checked+1].Section)) {
				return
			}
		}
		if id == held || !sigs.RequestClear(id, t.number, t.route[i+1].Section, permissive) {
			return
		}
		from = i + 1
	}
}

// blockedByOther 区段是否被其他列车占用或预留
func (t *Train) blockedByOther(s entity.ISection) bool {
	if r := s.ReservedBy(); r != -1 && r != t.number {
		return true
	}
	return s.IsOccupiedByOther(t.number)
}

// heldExitSignal 尚未发车的停站扣停的出站信号机
func (t *Train) heldExitSignal() int32 {
	if s := t.headStop(); s != nil && s.HoldSignal && s.ActualDeparture == timetable.None && t.state != StationStop {
		return s.ExitSignal
	}
	return -1
}

// locateTrainAhead 扫描前方列车
// 功能：从车头区段开始，沿已预留区段并多看一个区段，找到最近的其他列车并计算精确间距
func (t *Train) locateTrainAhead() aheadInfo {
	res := aheadInfo{Number: -1, Gap: mathutil.INF}
	secs := t.ctx.SectionManager()
	last := t.front.Index
	for i := t.front.Index + 1; i < len(t.route); i++ {
		last = i
		if t.route[i].Section == t.authority.LastReservedSection {
			break
		}
	}
	last = min(last+1, len(t.route)-1)
	base := -t.front.Offset
	for i := t.front.Index; i <= last; i++ {
		e := t.route[i]
		l := t.sectionLength(e.Section)
		for _, n := range secs.Get(e.Section).OccupiedBy() {
			if n == t.number {
				continue
			}
			o, ok := t.registry.ByNumber(n)
			if !ok {
				continue
			}
			a, b, ok := o.coverage(e.Section)
			if !ok {
				continue
			}
			if e.Direction == entity.Backward {
				a, b = l-b, l-a
			}
			if i == t.front.Index && b < t.front.Offset-t.k.CouplingTolerance {
				// 在车头后方
				continue
			}
			gap := max(base+a, 0)
			if gap < res.Gap {
				res = aheadInfo{Found: true, Number: n, Gap: gap, OtherMove: o.speed}
				// 前车在该区段的行驶方向与本车相反时，最近一端为其车头
				oe := o.route[o.front.Index]
				res.OtherEnd = oe.Section == e.Section && oe.Direction != e.Direction
			}
		}
		if res.Found {
			return res
		}
		base += l
	}
	return res
}

// keepDistance 与前车保持的距离
func (t *Train) keepDistance(o *Train) float64 {
	if t.isPartner(o.number) {
		return 0
	}
	if s := t.headStop(); s != nil && (s.CallOn || s.Closeup) && s.Subpath == int32(t.subpath) {
		return t.k.KeepDistanceCloseup
	}
	if o.speed > t.k.StopSpeed {
		return t.k.KeepDistanceMoving
	}
	if t.freight {
		return t.k.KeepDistanceStaticFreight
	}
	return t.k.KeepDistanceStaticPassenger
}

// computeNextStopDistance 可行驶距离
// 算法说明：
// 1. 由行车许可推算
// 2. 前车在许可范围内（同区段）时以间距减保持距离截断；允许引导接近时以间距为准
// 3. 有效的等待义务截断到锚点区段起点之前
func (t *Train) computeNextStopDistance() float64 {
	d := nextStopDistance(t.authority, t.k.JunctionOverlap)
	if t.ahead.Found {
		o, _ := t.registry.ByNumber(t.ahead.Number)
		limit := max(t.ahead.Gap-t.keepDistance(o), 0)
		if t.authority.Type == entity.AuthorityTrainAhead && t.permissive() {
			d = limit
		} else {
			d = min(d, limit)
		}
	}
	if w := t.headWait(); w != nil && w.Active {
		if ad, ok := t.anchorDistance(w); ok {
			d = min(d, max(ad-t.k.StopTolerance, 0))
		}
	}
	return d
}

// candidateActions 候选动作
func (t *Train) candidateActions() []*Action {
	res := make([]*Action, 0, 4)
	// 停站
	if s := t.headStop(); s != nil && int(s.Subpath) == t.subpath && !t.tempRoute {
		ri := t.routeIndex(int(s.RouteIndex))
		if ri >= 0 && ri < len(t.route) {
			res = append(res, t.CreateTrainAction(ActionStationStop, t.distanceTo(ri, s.StopOffset), 0, -1))
		}
	}
	// 折返点
	if p, ok := t.reversalPoint(); ok && !t.passedReversalPoint() {
		d := t.distanceTo(p.Index, p.Offset) + t.length
		res = append(res, t.CreateTrainAction(ActionReversal, d, 0, -1))
	}
	// 许可终点
	switch t.authority.Type {
	case entity.AuthorityEndOfPath, entity.AuthorityEndOfTrack:
		kind := ActionEndOfRoute
		if t.subpath+1 < len(t.paths) {
			kind = ActionReversal
		}
		if !t.ahead.Found && t.nextStopDistance < t.authority.Distance-t.k.StopTolerance {
			// 等待锚点截断了许可
			res = append(res, t.CreateTrainAction(ActionEndOfAuthority, t.nextStopDistance, 0, -1))
		}
		res = append(res, t.CreateTrainAction(kind, t.authority.Distance, 0, -1))
	case entity.AuthorityTrainAhead:
		if !t.ahead.Found {
			res = append(res, t.CreateTrainAction(ActionEndOfAuthority, t.nextStopDistance, 0, -1))
		}
	default:
		if id := t.signalAtAuthorityEnd(); id != -1 {
			res = append(res, t.CreateTrainAction(ActionSignalStop, t.nextStopDistance, 0, id))
		} else {
			res = append(res, t.CreateTrainAction(ActionEndOfAuthority, t.nextStopDistance, 0, -1))
		}
	}
	// 前车
	if t.ahead.Found {
		o, _ := t.registry.ByNumber(t.ahead.Number)
		required := 0.
		if o.speed > t.k.StopSpeed && !t.ahead.OtherEnd {
			required = min(o.speed, t.k.MaxFollowSpeed)
		}
		a := t.CreateTrainAction(ActionTrainAhead, max(t.ahead.Gap-t.keepDistance(o), 0), required, o.number)
		if t.isPartner(o.number) || o.isPartner(t.number) {
			// 连挂对象需要一直接近到连挂容差以内
			a.Creep = 0
		}
		res = append(res, a)
	}
	// 前方限速与引导信号
	secs := t.ctx.SectionManager()
	sigs := t.ctx.SignalManager()
	dist := t.sectionLength(t.route[t.front.Index].Section) - t.front.Offset
	for i := t.front.Index + 1; i < len(t.route) && dist < t.k.MaxCheckDistance; i++ {
		prev := t.route[i-1]
		if id := secs.Get(prev.Section).Signal(prev.Direction); id != -1 {
			sg := sigs.Get(id)
			if sg.ClearedFor() != t.number {
				break
			}
			if sg.Aspect() == entity.SignalRestricting {
				res = append(res, t.CreateTrainAction(ActionSignalRestricted, dist, t.k.CreepSpeed, id))
			}
		}
		s := secs.Get(t.route[i].Section)
		if v := s.MaxV(); v > 0 && v < t.allowedMax {
			res = append(res, t.CreateTrainAction(ActionSpeedLimit, dist, v, -1))
		}
		dist += s.Length()
	}
	return res
}

// signalAtAuthorityEnd 许可终点处未开放的信号机
func (t *Train) signalAtAuthorityEnd() int32 {
	if t.authority.Type != entity.AuthorityEndOfAuthority {
		return -1
	}
	i := t.route.Index(t.authority.LastReservedSection, t.front.Index)
	if i < 0 || i+1 >= len(t.route) {
		return -1
	}
	e := t.route[i]
	id := t.ctx.SectionManager().Get(e.Section).Signal(e.Direction)
	if id == -1 || t.ctx.SignalManager().Get(id).ClearedFor() == t.number {
		return -1
	}
	return id
}

// selectAction 选择当前允许速度最低的已激活动作，速度相同时保留先出现者
func (t *Train) selectAction(candidates []*Action) *Action {
	var best *Action
	bestV := mathutil.INF
	for _, a := range candidates {
		if t.distanceTravelled < a.ActivationDistance {
			continue
		}
		v := governor.ComputeBands(t.governorInput(a, t.ctx.Clock().DT), t.k).Ideal
		if v < bestV-1e-9 {
			best, bestV = a, v
		}
	}
	return best
}
