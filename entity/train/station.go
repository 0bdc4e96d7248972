package train

import (
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/stopcalc"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
)

// stopGeometry 区段管理器到停站计算的适配
type stopGeometry struct {
	secs entity.ISectionManager
}

func (g stopGeometry) SectionLength(section int32) float64 {
	return g.secs.Get(section).Length()
}

func (g stopGeometry) PlatformsOn(section int32) []*entity.Platform {
	ids := g.secs.Get(section).Platforms()
	res := make([]*entity.Platform, 0, len(ids))
	for _, id := range ids {
		if p, err := g.secs.Platform(id); err == nil {
			res = append(res, p)
		}
	}
	return res
}

// initStops 创建停站
// 说明：站台不存在的停站被忽略；停站命令中的connect/forcewait绑定到停站，其他等待命令按锚点处理
func (t *Train) initStops(pbs []input.Stop) {
	secs := t.ctx.SectionManager()
	for _, pb := range pbs {
		p, err := secs.Platform(pb.Platform)
		if err != nil {
			log.Warnf("train %d(%s): ignore stop: %v", t.number, t.name, err)
			continue
		}
		s := timetable.NewStationStop(p)
		if pb.Arrival != "" {
			if s.ArrivalTime, err = input.ParseTime(pb.Arrival); err != nil {
				log.Warnf("train %d(%s) stop %s: %v", t.number, t.name, p.Name, err)
				s.ArrivalTime = timetable.None
			}
		}
		if pb.Departure != "" {
			if s.DepartureTime, err = input.ParseTime(pb.Departure); err != nil {
				log.Warnf("train %d(%s) stop %s: %v", t.number, t.name, p.Name, err)
				s.DepartureTime = timetable.None
			}
		}
		parsed := t.parse(pb.Commands)
		f := parsed.Stop
		s.Terminal = f.Terminal
		s.Closeup = f.Closeup
		s.NoWaitSignal = f.NoWaitSignal && !f.WaitSignal
		s.NoClaim = f.NoClaim
		s.CallOn = f.CallOn
		s.EndStop = f.EndStop
		s.ExtendToSignal = f.ExtendToSignal
		s.RestrictToSignal = f.RestrictToSignal
		s.KeepClearFront = f.KeepClearFront
		s.KeepClearRear = f.KeepClearRear
		s.ForcePosition = f.ForcePosition
		s.HoldMode = f.HoldMode
		if f.StopTime != timetable.None {
			s.MinStopTime = f.StopTime
		}
		for _, w := range parsed.Waits {
			if w.Kind != timetable.WaitConnect {
				t.waitCmds = append(t.waitCmds, w)
				continue
			}
			c := timetable.NewWaitInfo(timetable.WaitConnect)
			c.OtherName = w.Other
			c.HoldTime = w.Hold
			c.Station = p.Station
			c.Forced = w.Forced
			s.Connects = append(s.Connects, c)
		}
		t.addLocationCommands(p.ID, parsed)
		for _, a := range parsed.Activates {
			kind := timetable.TriggerStationStop
			if a.Depart {
				kind = timetable.TriggerStationDepart
			}
			t.activateCmd = append(t.activateCmd, pendingTrigger{kind: kind, platform: p.ID, target: a.Other})
		}
		t.stops = append(t.stops, s)
	}
	t.Recalculate()
}

// headStop 当前停站，没有时返回nil
func (t *Train) headStop() *timetable.StationStop {
	if len(t.stops) == 0 {
		return nil
	}
	return t.stops[0]
}

// Recalculate 按当前车长与位置重新计算尚未到达的停站位置
// 说明：正在停站的当前停站保持不变；无法在路径上定位的停站被删除
func (t *Train) Recalculate() {
	secs := t.ctx.SectionManager()
	geo := stopGeometry{secs: secs}
	fromSub, fromIdx := t.subpath, 0
	if t.onTrack && !t.tempRoute {
		fromIdx = max(t.pathIndex(t.rear.Index), 0)
	}
	kept := t.stops[:0]
	for i, s := range t.stops {
		if i == 0 && t.state == StationStop {
			kept = append(kept, s)
			fromSub, fromIdx = int(s.Subpath), int(s.RouteIndex)
			continue
		}
		p, err := secs.Platform(s.Platform)
		if err != nil {
			continue
		}
		res, ok := stopcalc.Calculate(stopcalc.Request{
			Paths:            t.paths,
			FromSubpath:      fromSub,
			FromIndex:        fromIdx,
			Platform:         p,
			TrainLength:      t.length,
			Terminal:         s.Terminal,
			Closeup:          s.Closeup,
			ExtendToSignal:   s.ExtendToSignal,
			RestrictToSignal: s.RestrictToSignal,
			KeepClearFront:   s.KeepClearFront,
			KeepClearRear:    s.KeepClearRear,
			ForcePosition:    s.ForcePosition,
			HoldMode:         s.HoldMode,
		}, geo, t.k)
		if !ok {
			log.Warnf("train %d(%s): platform %s is not on the path, stop removed", t.number, t.name, s.PlatformName)
			continue
		}
		s.Subpath = int32(res.Subpath)
		s.RouteIndex = int32(res.RouteIndex)
		s.Section = res.Section
		s.StopOffset = res.StopOffset
		s.ExitSignal = res.ExitSignal
		s.HoldSignal = res.HoldSignal
		kept = append(kept, s)
		fromSub, fromIdx = res.Subpath, res.RouteIndex
	}
	clear(t.stops[len(kept):])
	t.stops = kept
}

// stopDistance 车头到停站位置的距离，停站不在当前有效路径上时返回false
func (t *Train) stopDistance(s *timetable.StationStop) (float64, bool) {
	if t.tempRoute || int(s.Subpath) != t.subpath {
		return 0, false
	}
	ri := t.routeIndex(int(s.RouteIndex))
	if ri < 0 || ri >= len(t.route) {
		return 0, false
	}
	return t.distanceTo(ri, s.StopOffset), true
}

// dropPassedStops 删除已经越过的停站
func (t *Train) dropPassedStops() {
	for len(t.stops) > 0 {
		s := t.stops[0]
		passed := int(s.Subpath) < t.subpath
		if d, ok := t.stopDistance(s); ok && d < -t.length {
			passed = true
		}
		if !passed {
			return
		}
		log.Warnf("train %d(%s) passed stop %s without stopping", t.number, t.name, s.PlatformName)
		t.stops = t.stops[1:]
	}
}

// atStopPosition 车头是否位于当前停站位置（或已在站台内）
func (t *Train) atStopPosition() bool {
	s := t.headStop()
	if s == nil {
		return false
	}
	d, ok := t.stopDistance(s)
	return ok && d <= t.k.StopTolerance
}

// arriveAtStation 到站
// 算法说明：
// 1. 记录实际到达时刻与晚点
// 2. 发车时刻 = max(计划发车, 到达+最小停站时间)
// 3. 需要时扣停出站信号，触发到站触发器
func (t *Train) arriveAtStation() {
	s := t.headStop()
	now := t.now()
	t.state = StationStop
	t.resetMotion()
	t.endReached = false
	s.ActualArrival = now
	t.arrivals[s.Station] = now
	if s.ArrivalTime != timetable.None {
		t.delay = now - s.ArrivalTime
	}
	stopTime := t.k.DefaultStopTime
	if s.MinStopTime > 0 {
		stopTime = s.MinStopTime
	}
	t.departure = now + stopTime
	if s.DepartureTime != timetable.None {
		t.departure = max(t.departure, s.DepartureTime)
	}
	if s.HoldSignal && s.ExitSignal != -1 && !t.holding {
		t.ctx.SignalManager().AddHold(s.ExitSignal)
		t.holding = true
	}
	t.fireTriggers(timetable.TriggerStationStop, s.Platform)
	log.Debugf("train %d arrives at %s, departs at %.0f", t.number, s.PlatformName, t.departure)
}

// updateStationStop StationStop状态
// 算法说明：
// 1. 执行本站的解编、摘挂、交接与连挂
// 2. 检查联络等待、连挂与交接义务
// 3. 发车条件满足后解除扣停并请求开放出站信号，开放后发车
func (t *Train) updateStationStop() {
	s := t.headStop()
	if s == nil {
		t.enterStopped(t.k.DefaultRestart)
		return
	}
	t.performDetachesAt(s.Platform)
	if t.gone() || t.performFormationAt(s.Platform) {
		return
	}
	in := departInput{
		Now:            t.now(),
		Departure:      t.departure,
		ConnectPending: t.connectsPending(s),
		AttachPending:  t.attachPendingAt(s.Platform),
		DetachPending:  t.detachPendingAt(s.Platform),
		SignalRequired: s.ExitSignal != -1 && !s.NoWaitSignal,
	}
	if in.dutiesDone() && t.holding {
		t.ctx.SignalManager().RemoveHold(s.ExitSignal)
		t.holding = false
	}
	t.refreshAuthority()
	if in.SignalRequired {
		in.SignalCleared = t.ctx.SignalManager().Get(s.ExitSignal).ClearedFor() == t.number
	}
	if decideStationDeparture(in) == Stopped {
		t.departStation()
	}
}

// departStation 发车
func (t *Train) departStation() {
	s := t.headStop()
	now := t.now()
	s.ActualDeparture = now
	if s.DepartureTime != timetable.None {
		t.delay = now - s.DepartureTime
	}
	if t.holding {
		t.ctx.SignalManager().RemoveHold(s.ExitSignal)
		t.holding = false
	}
	t.fireTriggers(timetable.TriggerStationDepart, s.Platform)
	t.stops = t.stops[1:]
	t.enterStopped(t.k.StationRestart)
	if s.EndStop {
		t.endStop = true
		t.endReached = true
	}
	log.Debugf("train %d departs from %s, delay %.0fs", t.number, s.PlatformName, t.delay)
}

// enterStopped 转入Stopped并设置带随机抖动的起动延迟
func (t *Train) enterStopped(d config.RestartDelay) {
	t.state = Stopped
	t.resetMotion()
	t.restartAt = t.now() + t.rnd.Delay(d.Fixed, d.Random)
}
