package train

import (
	"slices"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
)

// anchor 两车路径上的等待锚点
type anchor struct {
	ownSub, ownIdx     int
	otherSub, otherIdx int
}

func (a anchor) before(b anchor) bool {
	if a.ownSub != b.ownSub {
		return a.ownSub < b.ownSub
	}
	return a.ownIdx < b.ownIdx
}

// findAnchor 查找等待锚点
// 功能：沿本车各子路径向前扫描，找到与对方路径共用的第一个区段
// 参数：own/other-两车的子路径，opposite-对方逆向通过共用区段
// 返回：锚点，没有共用区段时返回false
// 算法说明：
// 1. 同向：对方路径中同区段同方向的元素
// 2. 对向：对方路径中同区段反方向的元素
// 3. 同向且两条路径从起点开始即相同：锚点后移到第一个不共用的区段，避免等待永远有效
func findAnchor(own, other []entity.Route, opposite bool) (anchor, bool) {
	for sp, path := range own {
		for i, e := range path {
			want := e
			if opposite {
				want.Direction = e.Direction.Reverse()
			}
			for osp, op := range other {
				j := indexDir(op, want)
				if j < 0 {
					continue
				}
				if opposite {
					// 对方逆向通过时，与本车入口区段对应的元素是其离开共用区间的最后一个区段
					return anchor{ownSub: sp, ownIdx: i, otherSub: osp, otherIdx: j}, true
				}
				if i == 0 && j == 0 {
					k := 0
					for k < len(path) && k < len(op) && path[k] == op[k] {
						k++
					}
					if k >= len(path) {
						return anchor{}, false
					}
					return anchor{ownSub: sp, ownIdx: k, otherSub: osp, otherIdx: max(k-1, 0)}, true
				}
				return anchor{ownSub: sp, ownIdx: i, otherSub: osp, otherIdx: j}, true
			}
		}
	}
	return anchor{}, false
}

// followAnchors 同向共用的每一段区间各产生一个锚点
func followAnchors(own, other []entity.Route) []anchor {
	var res []anchor
	for sp, path := range own {
		shared := false
		for i, e := range path {
			osp, j := -1, -1
			for k, op := range other {
				if j = indexDir(op, e); j >= 0 {
					osp = k
					break
				}
			}
			if j < 0 {
				shared = false
				continue
			}
			if !shared {
				res = append(res, anchor{ownSub: sp, ownIdx: i, otherSub: osp, otherIdx: j})
			}
			shared = true
		}
	}
	return res
}

// newWait 由锚点创建等待义务
func (t *Train) newWait(cmd timetable.WaitCommand, o *Train, a anchor) *timetable.WaitInfo {
	w := timetable.NewWaitInfo(cmd.Kind)
	w.ActiveSubpath = int32(a.ownSub)
	w.ActiveRouteIndex = int32(a.ownIdx)
	w.ActiveSection = t.paths[a.ownSub][a.ownIdx].Section
	if o != nil {
		w.OtherNumber = o.number
		w.OtherName = o.name
		w.WaitSubpath = int32(a.otherSub)
		w.WaitRouteIndex = int32(a.otherIdx)
		w.WaitSection = o.paths[a.otherSub][a.otherIdx].Section
	}
	w.MaxDelay = cmd.MaxDelay
	w.OwnDelay = cmd.OwnDelay
	w.Trigger = cmd.Trigger
	w.EndTrigger = cmd.EndTrigger
	w.NotStarted = cmd.NotStarted
	w.AtStart = cmd.AtStart
	w.Direction = cmd.Direction
	w.HoldTime = cmd.Hold
	w.Forced = cmd.Forced
	if cmd.AtStart {
		w.ActiveSubpath, w.ActiveRouteIndex = int32(t.subpath), 0
		w.ActiveSection = t.paths[t.subpath][0].Section
	}
	return w
}

// resolveWaits 将等待命令解析为带锚点的等待义务
// 说明：引用的列车不存在或两车路径没有共用区段时，命令被丢弃
func (t *Train) resolveWaits() {
	for _, cmd := range t.waitCmds {
		switch cmd.Kind {
		case timetable.WaitAny:
			t.resolveWaitAny(cmd)
			continue
		case timetable.WaitConnect:
			log.Warnf("train %d(%s): connect %s outside a station stop ignored", t.number, t.name, cmd.Other)
			continue
		}
		o, ok := t.registry.ByName(cmd.Other)
		if !ok || o == t {
			log.Warnf("train %d(%s): %s refers to unknown train %s", t.number, t.name, cmd.Kind, cmd.Other)
			continue
		}
		if cmd.Kind == timetable.WaitFollow {
			for _, a := range followAnchors(t.paths, o.paths) {
				t.waits = append(t.waits, t.newWait(cmd, o, a))
			}
			continue
		}
		a, found := anchor{}, false
		if cmd.Direction != timetable.DirectionOpposite {
			a, found = findAnchor(t.paths, o.paths, false)
		}
		if cmd.Direction != timetable.DirectionSame {
			if b, ok := findAnchor(t.paths, o.paths, true); ok && (!found || b.before(a)) {
				a, found = b, true
			}
		}
		if !found {
			log.Warnf("train %d(%s): no common section with %s, wait dropped", t.number, t.name, o.name)
			continue
		}
		t.waits = append(t.waits, t.newWait(cmd, o, a))
	}
	t.waitCmds = nil
	t.sortWaits()
}

// resolveWaitAny waitany的锚点为本车路径上第一个属于给定路径的区段
func (t *Train) resolveWaitAny(cmd timetable.WaitCommand) {
	for sp, path := range t.paths {
		for i, e := range path {
			if !slices.Contains(cmd.Path, e.Section) {
				continue
			}
			w := t.newWait(cmd, nil, anchor{ownSub: sp, ownIdx: i})
			w.Path = slices.Clone(cmd.Path)
			t.waits = append(t.waits, w)
			return
		}
	}
	log.Warnf("train %d(%s): waitany path %v not on route, dropped", t.number, t.name, cmd.Path)
}

func (t *Train) sortWaits() {
	slices.SortStableFunc(t.waits, func(a, b *timetable.WaitInfo) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	})
}

// headWait 等待队列的队首
func (t *Train) headWait() *timetable.WaitInfo {
	if len(t.waits) == 0 {
		return nil
	}
	return t.waits[0]
}

// anchorDistance 车头到锚点区段起点的距离，锚点不在当前有效路径上时返回false
func (t *Train) anchorDistance(w *timetable.WaitInfo) (float64, bool) {
	if t.tempRoute || int(w.ActiveSubpath) != t.subpath {
		return 0, false
	}
	if w.AtStart && !t.moved {
		return 0, true
	}
	ri := t.routeIndex(int(w.ActiveRouteIndex))
	if ri < 0 || ri >= len(t.route) {
		return 0, false
	}
	return t.distanceTo(ri, 0), true
}

// ownPassed 本车是否已越过锚点
func (t *Train) ownPassed(w *timetable.WaitInfo) bool {
	if t.tempRoute || !t.onTrack {
		return false
	}
	if t.subpath != int(w.ActiveSubpath) {
		return t.subpath > int(w.ActiveSubpath)
	}
	if w.AtStart {
		return t.moved
	}
	ri := t.routeIndex(int(w.ActiveRouteIndex))
	if ri < 0 {
		return true
	}
	return ri < len(t.route) && t.distanceTo(ri, 0) < -t.k.StopTolerance
}

// otherPassed 对方列车是否已驶离其锚点区段（车尾越过）
func otherPassed(o *Train, w *timetable.WaitInfo) bool {
	if o.gone() {
		return true
	}
	if !o.onTrack {
		return false
	}
	if o.subpath != int(w.WaitSubpath) {
		return o.subpath > int(w.WaitSubpath)
	}
	if o.tempRoute {
		return false
	}
	return o.pathIndex(o.rear.Index) > int(w.WaitRouteIndex)
}

// isWaitActive 等待义务是否生效
// 算法说明：
// 1. 触发时刻未到、结束时刻已过、本车晚点未超过own-delay时不生效
// 2. waitany：给定路径上任一区段被其他列车预留或占用时生效
// 3. 对方未上线：notstarted时生效
// 4. 对方未越过锚点，且晚点不超过max-delay（或本车与对方晚点差超过own-delay）时生效
func (t *Train) isWaitActive(w *timetable.WaitInfo) bool {
	now := t.now()
	if w.Trigger != timetable.None && now < w.Trigger {
		return false
	}
	if w.EndTrigger != timetable.None && now >= w.EndTrigger {
		return false
	}
	if w.OwnDelay != timetable.None && t.delay <= w.OwnDelay {
		return false
	}
	if w.Kind == timetable.WaitAny {
		return t.pathBlocked(w.Path)
	}
	o, ok := t.registry.ByNumber(w.OtherNumber)
	if !ok {
		return false
	}
	if !o.started() {
		return w.NotStarted
	}
	if otherPassed(o, w) {
		return false
	}
	if w.MaxDelay == timetable.None {
		return true
	}
	return o.delay <= w.MaxDelay || (w.OwnDelay != timetable.None && t.delay-o.delay > w.OwnDelay)
}

// pathBlocked 路径上是否有区段被其他列车预留或占用
func (t *Train) pathBlocked(path []int32) bool {
	secs := t.ctx.SectionManager()
	return lo.ContainsBy(path, func(idx int32) bool {
		s, err := secs.GetOrError(idx)
		if err != nil {
			return false
		}
		r := s.ReservedBy()
		return (r != -1 && r != t.number) || s.IsOccupiedByOther(t.number)
	})
}

// waitApplies 队首等待义务是否仍然有意义
func (t *Train) waitApplies(w *timetable.WaitInfo) bool {
	if w.Kind == timetable.WaitInvalid || t.ownPassed(w) {
		return false
	}
	if w.EndTrigger != timetable.None && t.now() >= w.EndTrigger {
		return false
	}
	if w.Kind == timetable.WaitAny {
		return true
	}
	o, ok := t.registry.ByNumber(w.OtherNumber)
	return ok && !otherPassed(o, w)
}

// checkForSingleTrainWait 处理等待队列
// 说明：每步只判断队首；队首失效时删除并在下一步处理新的队首
func (t *Train) checkForSingleTrainWait() {
	w := t.headWait()
	if w == nil {
		return
	}
	if !t.waitApplies(w) {
		w.Active = false
		t.waits = t.waits[1:]
		log.Debugf("train %d: %s on %s retired", t.number, w.Kind, w.OtherName)
		return
	}
	w.Active = t.isWaitActive(w)
}

// waitHolding 生效的等待义务是否使列车停在锚点前
func (t *Train) waitHolding() bool {
	w := t.headWait()
	if w == nil || !w.Active {
		return false
	}
	d, ok := t.anchorDistance(w)
	return ok && d <= t.k.ClearingDistance
}
