package train

import (
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/governor"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/config"
)

// Update 更新阶段：按当前运行状态执行一步
// 说明：Static与已离开轨道的列车不做任何处理
func (t *Train) Update(dt float64) {
	if t.gone() || !t.onTrack {
		return
	}
	switch t.state {
	case Init:
		t.updateInit()
	case Stopped:
		t.updateStopped()
	case Accelerating, Running, Braking:
		t.updateMoving(dt)
	case Following:
		t.updateFollowing(dt)
	case StationStop:
		t.updateStationStop()
	case Turntable:
		t.updateTurntable()
	}
}

// updateInit 刚上线：登记死锁保护、触发起点触发器、推算停站，在站台内上线的列车直接停站
func (t *Train) updateInit() {
	t.control = AutoSignal
	t.registerDeadlocks()
	t.fireTriggers(timetable.TriggerStart, timetable.PlatformStartOfRoute)
	t.Recalculate()
	t.checkForSingleTrainWait()
	if t.atStopPosition() {
		t.arriveAtStation()
		return
	}
	t.enterStopped(t.k.DefaultRestart)
}

// updateStopped Stopped状态
// 算法说明：
// 1. 处理等待队列，删除已越过的停站；位于停站位置时到站
// 2. 刷新行车许可；到达路径终点时执行终到处理
// 3. 与编组对象相接时执行编组
// 4. 可行驶距离大于出清余量、等待义务不生效、起动延迟结束时起动
func (t *Train) updateStopped() {
	t.checkForSingleTrainWait()
	t.dropPassedStops()
	if t.atStopPosition() {
		t.arriveAtStation()
		return
	}
	t.refreshAuthority()
	t.updateEndReached()
	if t.CheckEndOfRoutePositionTT() {
		t.processEndOfRoute()
		return
	}
	margin := t.k.ClearingDistance
	if o, ok := t.partnerAhead(); ok {
		if t.ahead.Gap <= t.k.CouplingTolerance && !o.state.Moving() && t.couple(o) {
			return
		}
		margin = t.k.StopTolerance
	}
	next := decideStopped(stoppedInput{
		DistanceToClear: t.nextStopDistance,
		ClearingMargin:  margin,
		WaitActive:      t.waitHolding(),
		RestartPending:  t.restartAt != timetable.None && t.now() < t.restartAt,
		HasAction:       t.action != nil,
		TrainAhead:      t.ahead.Found && (t.authority.Type == entity.AuthorityTrainAhead || t.action != nil && t.action.Type == ActionTrainAhead),
	})
	if next != Stopped {
		log.Debugf("train %d starts: %v", t.number, next)
	}
	t.state = next
}

// updateMoving 加速、运行与减速状态
func (t *Train) updateMoving(dt float64) {
	t.checkForSingleTrainWait()
	t.dropPassedStops()
	t.refreshAuthority()
	t.govern(dt)
	a := t.action
	in := movingInput{
		Speed:      t.speed,
		AllowedMax: t.allowedMax,
		Hysteresis: t.k.Hysteresis,
		StopSpeed:  t.k.StopSpeed,
		HasAction:  a != nil,
		AtTarget:   t.atTarget(),
		TrainAhead: a != nil && a.Type == ActionTrainAhead,
	}
	if a != nil {
		in.Target = governor.ComputeBands(t.governorInput(a, dt), t.k).Ideal
	}
	switch next := decideAccelerating(in); next {
	case Stopped:
		t.stopAt(a)
	default:
		t.state = next
	}
}

// updateFollowing Following状态：跟驰前车，接近编组对象时执行编组
func (t *Train) updateFollowing(dt float64) {
	t.checkForSingleTrainWait()
	t.dropPassedStops()
	t.refreshAuthority()
	o, found := t.aheadTrain()
	partner := found && (t.isPartner(o.number) || o.isPartner(t.number))
	step := t.govern(dt)
	in := followInput{
		Found:          found,
		Gap:            max(t.ahead.Gap-step, 0),
		Speed:          t.speed,
		StopSpeed:      t.k.StopSpeed,
		StopTolerance:  t.k.StopTolerance,
		CouplingRange:  t.k.CouplingTolerance,
		Coupling:       partner,
		HasOtherAction: t.action != nil && t.action.Type != ActionTrainAhead,
	}
	if found {
		in.KeepDistance = t.keepDistance(o)
		in.OtherSpeed = o.speed
		in.TerminateInto = t.terminatesInto(o)
	}
	d := decideFollowing(in)
	switch {
	case d.Couple:
		if !t.couple(o) {
			t.enterStopped(t.k.FollowRestart)
		}
	case d.State == StationStop:
		t.arriveAtStation()
	case d.State == Stopped:
		t.stopAt(t.action)
	default:
		t.state = d.State
	}
}

// updateTurntable 转车台转向完成后驶入下一条子路径
func (t *Train) updateTurntable() {
	tt := t.ctx.TurntableManager()
	if !tt.Done(t.number) {
		return
	}
	tt.Release(t.number)
	t.turnAround(t.k.TurntableRestart)
}

// atTarget 是否已停在动作点或可行驶距离的终点
func (t *Train) atTarget() bool {
	if t.nextStopDistance <= t.k.StopTolerance {
		return true
	}
	a := t.action
	return a != nil && a.RequiredSpeed == 0 && t.remaining(a) <= t.k.StopTolerance
}

// stopAt 停车后按动作类型转入下一状态
func (t *Train) stopAt(a *Action) {
	switch {
	case t.atStopPosition():
		t.arriveAtStation()
	case a != nil && (a.Type == ActionEndOfRoute || a.Type == ActionReversal):
		t.enterStopped(t.k.DefaultRestart)
		t.endReached = true
	case a != nil && a.Type == ActionTrainAhead:
		t.enterStopped(t.k.FollowRestart)
	default:
		t.enterStopped(t.k.DefaultRestart)
	}
}

// updateEndReached 停在路径终点前（且当前子路径上没有停站）时标记到达终点
func (t *Train) updateEndReached() {
	if t.endReached {
		return
	}
	switch t.authority.Type {
	case entity.AuthorityEndOfPath, entity.AuthorityEndOfTrack:
	default:
		return
	}
	if t.authority.Distance > t.k.ClearingDistance {
		return
	}
	if s := t.headStop(); s != nil && int(s.Subpath) == t.subpath {
		return
	}
	t.endReached = true
}

// aheadTrain 前方列车
func (t *Train) aheadTrain() (*Train, bool) {
	if !t.ahead.Found {
		return nil, false
	}
	o, ok := t.registry.ByNumber(t.ahead.Number)
	if !ok || !o.onTrack {
		return nil, false
	}
	return o, true
}

// partnerAhead 前方列车是编组对象时返回该列车
func (t *Train) partnerAhead() (*Train, bool) {
	o, ok := t.aheadTrain()
	if !ok || !(t.isPartner(o.number) || o.isPartner(t.number)) {
		return nil, false
	}
	return o, true
}

// terminatesInto 前车停在本车的终到站台
func (t *Train) terminatesInto(o *Train) bool {
	s := t.headStop()
	if s == nil || !s.Terminal || int(s.Subpath) != t.subpath {
		return false
	}
	_, _, ok := o.coverage(s.Section)
	return ok
}

// govern 调速：由调速器决定牵引制动，推进车头并更新占用
// 返回：本步行驶距离
// 算法说明：
// 1. 速度带与控制决策由调速器给出，速度不超过允许最高速度
// 2. 本步行驶距离不超过可行驶距离与停车动作的剩余距离，到达时速度置0
func (t *Train) govern(dt float64) float64 {
	in := t.governorInput(t.action, dt)
	bands := governor.ComputeBands(in, t.k)
	d := governor.Decide(in, bands, t.k.Hysteresis)
	acc := t.controls.Apply(d, governor.Acceleration(t.freight, t.k), in.Decel, t.k)
	v := max(t.speed+acc*dt, 0)
	if v > t.allowedMax {
		v = t.allowedMax
	}
	limit := max(t.nextStopDistance, 0)
	if a := t.action; a != nil && a.RequiredSpeed == 0 {
		limit = min(limit, max(t.remaining(a), 0))
	}
	step := 0.5 * (t.speed + v) * dt
	if step >= limit {
		step, v = limit, 0
		t.controls.FullBrake()
	}
	if dt > 0 {
		t.actualDecel = max(t.speed-v, 0) / dt
	}
	t.prevSpeed = t.speed
	t.speed = v
	t.advance(step)
	t.updateOccupation(t.permissive())
	t.updateControlMode()
	return step
}

// updateControlMode 前方有信号机时按信号运行，否则按节点运行
func (t *Train) updateControlMode() {
	if id, _ := t.ctx.SignalManager().NextSignal(t.route, t.front.Index); id != -1 {
		t.control = AutoSignal
	} else {
		t.control = AutoNode
	}
}

// enterTurntableOrReverse 切换到下一条子路径：位于转车台上时先转向
func (t *Train) enterTurntableOrReverse() {
	sec := t.route[t.front.Index].Section
	tt := t.ctx.TurntableManager()
	if tt.IsTurntable(sec) && tt.Begin(sec, t.number) {
		t.resetMotion()
		t.state = Turntable
		log.Debugf("train %d turning on turntable %d, %.0fs", t.number, sec, tt.Remaining(t.number))
		return
	}
	t.turnAround(t.k.DefaultRestart)
}

// turnAround 折返到下一条子路径并重新登记死锁保护与停站
func (t *Train) turnAround(d config.RestartDelay) {
	if !t.reverse() {
		t.retire("path %d unreachable", t.subpath+1)
		return
	}
	t.updateOccupation(true)
	t.ctx.SectionManager().RemoveDeadlocks(t.number)
	t.registerDeadlocks()
	t.Recalculate()
	t.enterStopped(d)
}
