package train

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
)

// RoutePos 有效路径上的位置：区段索引与沿行驶方向的区段内偏移
type RoutePos struct {
	Index  int     `bson:"index"`
	Offset float64 `bson:"offset"`
}

// TrackPos 轨道位置：区段与按区段正方向度量的偏移
type TrackPos struct {
	Section int32
	Offset  float64
}

type lengthFunc func(section int32) float64

// walkBack 沿路径后退d米
// 返回：新位置，路径起点不足d米时停在起点并返回false
func walkBack(route entity.Route, p RoutePos, d float64, length lengthFunc) (RoutePos, bool) {
	idx, off := p.Index, p.Offset-d
	for off < 0 && idx > 0 {
		idx--
		off += length(route[idx].Section)
	}
	if off < 0 {
		return RoutePos{Index: idx, Offset: 0}, false
	}
	return RoutePos{Index: idx, Offset: off}, true
}

// walkForward 沿路径前进d米
// 返回：新位置，路径终点不足d米时停在终点并返回false
func walkForward(route entity.Route, p RoutePos, d float64, length lengthFunc) (RoutePos, bool) {
	idx, off := p.Index, p.Offset+d
	for idx+1 < len(route) && off > length(route[idx].Section) {
		off -= length(route[idx].Section)
		idx++
	}
	if l := length(route[idx].Section); off > l {
		return RoutePos{Index: idx, Offset: l}, false
	}
	return RoutePos{Index: idx, Offset: off}, true
}

// toTrack 路径位置转换为轨道位置
func toTrack(route entity.Route, p RoutePos, length lengthFunc) TrackPos {
	e := route[p.Index]
	if e.Direction == entity.Forward {
		return TrackPos{Section: e.Section, Offset: p.Offset}
	}
	return TrackPos{Section: e.Section, Offset: length(e.Section) - p.Offset}
}

// indexDir 路径上第一个与e区段和方向都相同的元素
func indexDir(route entity.Route, e entity.RouteElement) int {
	for i, x := range route {
		if x == e {
			return i
		}
	}
	return -1
}

// alignRoute 将一段车身接到新路径上
// 功能：用于折返、解编与接续成新车次时确定新的有效路径与车头位置
// 参数：elems-车身覆盖的区段（车尾到车头），front/rear-车头车尾在elems中的位置，path-新路径
// 返回：新有效路径、新车头位置、索引偏移、是否掉头、是否成功
// 算法说明：
// 1. 新路径包含车头所在区段且方向相同：车身+新路径剩余部分，车头不变
// 2. 新路径包含车尾所在区段且方向相反：反转车身+新路径剩余部分，原车尾成为车头
func alignRoute(elems entity.Route, front, rear RoutePos, path entity.Route, length lengthFunc) (entity.Route, RoutePos, int, bool, bool) {
	n := len(elems)
	if k := indexDir(path, elems[n-1]); k >= 0 {
		route := append(elems.Clone(), path[k+1:]...)
		return route, front, k + 1 - n, false, true
	}
	rev := elems.Reversed()
	if k := indexDir(path, rev[n-1]); k >= 0 {
		route := append(rev, path[k+1:]...)
		newFront := RoutePos{Index: n - 1, Offset: length(rev[n-1].Section) - rear.Offset}
		return route, newFront, k + 1 - n, true, true
	}
	return nil, RoutePos{}, 0, false, false
}

// distanceTo 车头沿有效路径到(ri, off)的距离，目标在车头后方时为负
func (t *Train) distanceTo(ri int, off float64) float64 {
	if ri >= len(t.route) {
		ri = len(t.route) - 1
		off = t.sectionLength(t.route[ri].Section)
	}
	d := off - t.front.Offset
	for i := t.front.Index; i < ri; i++ {
		d += t.sectionLength(t.route[i].Section)
	}
	for i := ri; i < t.front.Index; i++ {
		d -= t.sectionLength(t.route[i].Section)
	}
	return d
}

// remainingRoute 车头到有效路径终点的距离
func (t *Train) remainingRoute() float64 {
	last := len(t.route) - 1
	return t.distanceTo(last, t.sectionLength(t.route[last].Section))
}

func (t *Train) frontTrack() TrackPos {
	return toTrack(t.route, t.front, t.sectionLength)
}

func (t *Train) rearTrack() TrackPos {
	return toTrack(t.route, t.rear, t.sectionLength)
}

// coverage 列车在区段上覆盖的范围（按区段正方向度量）
func (t *Train) coverage(section int32) (from float64, to float64, ok bool) {
	if !t.onTrack {
		return 0, 0, false
	}
	for i := t.rear.Index; i <= t.front.Index; i++ {
		e := t.route[i]
		if e.Section != section {
			continue
		}
		l := t.sectionLength(section)
		a, b := 0., l
		if i == t.rear.Index {
			a = t.rear.Offset
		}
		if i == t.front.Index {
			b = t.front.Offset
		}
		if e.Direction == entity.Backward {
			a, b = l-b, l-a
		}
		if !ok {
			from, to, ok = a, b, true
		} else {
			from, to = min(from, a), max(to, b)
		}
	}
	return
}

// occupiedElems 车身覆盖的路径元素（车尾到车头）
func (t *Train) occupiedElems() entity.Route {
	return t.route[t.rear.Index : t.front.Index+1].Clone()
}

// footprint 车身覆盖的区段（去重，车尾到车头）
func (t *Train) footprint() []int32 {
	return lo.Uniq(t.route[t.rear.Index : t.front.Index+1].Sections())
}

// updateRear 按车长由车头推算车尾
func (t *Train) updateRear() {
	t.rear, _ = walkBack(t.route, t.front, t.length, t.sectionLength)
}

// updateOccupation 占用新进入的区段，释放离开的区段
// 返回：新区段无法占用时返回false，此时占用不变
func (t *Train) updateOccupation(permissive bool) bool {
	want := t.footprint()
	added, left := lo.Difference(want, t.occupied)
	secs := t.ctx.SectionManager()
	if len(added) > 0 && !secs.OccupySections(t.number, added, permissive) {
		log.Warnf("train %d cannot occupy sections %v", t.number, added)
		return false
	}
	if len(left) > 0 {
		secs.ReleaseSections(t.number, left)
	}
	t.occupied = want
	return true
}

// advance 车头沿有效路径前进
func (t *Train) advance(d float64) {
	if d <= 0 {
		return
	}
	t.front, _ = walkForward(t.route, t.front, d, t.sectionLength)
	t.updateRear()
	t.distanceTravelled += d
	t.moved = true
}

// place 将列车放置在当前子路径起点：车尾位于起点，车头在车长之前
// 返回：路径长度不足或区段无法占用时返回false，列车状态不变
func (t *Train) place() bool {
	route := t.paths[t.subpath].Clone()
	front, ok := walkForward(route, RoutePos{Index: 0}, t.length, t.sectionLength)
	if !ok {
		log.Warnf("train %d: path %d shorter than train length %.1f", t.number, t.subpath, t.length)
		return false
	}
	rear := RoutePos{Index: 0, Offset: 0}
	secs := lo.Uniq(route[rear.Index : front.Index+1].Sections())
	if !t.ctx.SectionManager().PlaceTrain(t.number, secs) {
		return false
	}
	t.route, t.shift, t.tempRoute = route, 0, false
	t.front, t.rear = front, rear
	t.occupied = secs
	t.onTrack = true
	return true
}

// reversalPoint 当前子路径的折返点在有效路径上的位置
func (t *Train) reversalPoint() (RoutePos, bool) {
	if t.tempRoute || t.subpath >= len(t.reverseAt) || t.reverseAt[t.subpath] == nil {
		return RoutePos{}, false
	}
	rp := t.reverseAt[t.subpath]
	pi := t.paths[t.subpath].Index(rp.Section, 0)
	if pi < 0 {
		return RoutePos{}, false
	}
	ri := t.routeIndex(pi)
	if ri < 0 || ri >= len(t.route) {
		return RoutePos{}, false
	}
	return RoutePos{Index: ri, Offset: rp.Offset}, true
}

// passedReversalPoint 车尾是否已越过折返点
func (t *Train) passedReversalPoint() bool {
	p, ok := t.reversalPoint()
	if !ok {
		return false
	}
	return t.rear.Index > p.Index || (t.rear.Index == p.Index && t.rear.Offset >= p.Offset-t.k.StopTolerance)
}

// reverse 折返：切换到下一条子路径，原车尾成为车头
func (t *Train) reverse() bool {
	next := t.subpath + 1
	if next >= len(t.paths) {
		return false
	}
	elems := t.occupiedElems()
	front := RoutePos{Index: len(elems) - 1, Offset: t.front.Offset}
	rear := RoutePos{Index: 0, Offset: t.rear.Offset}
	route, newFront, shift, reversed, ok := alignRoute(elems, front, rear, t.paths[next], t.sectionLength)
	if !ok {
		log.Warnf("train %d: path %d does not continue from current position", t.number, next)
		return false
	}
	t.subpath = next
	t.route, t.front, t.shift, t.tempRoute = route, newFront, shift, false
	t.updateRear()
	if reversed {
		t.cars = reverseCars(t.cars)
		t.reversed = !t.reversed
	}
	t.resetMotion()
	t.endReached = false
	log.Debugf("train %d reversed onto path %d", t.number, next)
	return true
}

// reverseInPlace 原地掉头：有效路径改为到车头为止的反向临时路径
func (t *Train) reverseInPlace() {
	l := t.sectionLength(t.route[t.rear.Index].Section)
	newFront := RoutePos{Index: t.front.Index - t.rear.Index, Offset: l - t.rear.Offset}
	t.route = t.route[:t.front.Index+1].Reversed()
	t.front = newFront
	t.shift, t.tempRoute = 0, true
	t.updateRear()
	t.cars = reverseCars(t.cars)
	t.reversed = !t.reversed
	t.resetMotion()
}

// resetMotion 停车并清除动作
func (t *Train) resetMotion() {
	t.speed, t.prevSpeed, t.actualDecel = 0, 0, 0
	t.controls.Release()
	t.action = nil
}
