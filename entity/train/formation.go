package train

import (
	"fmt"
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
)

// body 车身：车辆与覆盖的路径元素（车尾到车头，按所属列车行驶方向）
type body struct {
	cars  []*Car
	elems entity.Route
	front float64 // 车头在末元素内的偏移
	rear  float64 // 车尾在首元素内的偏移
}

func (b body) frontPos() RoutePos {
	return RoutePos{Index: len(b.elems) - 1, Offset: b.front}
}

func (b body) rearPos() RoutePos {
	return RoutePos{Index: 0, Offset: b.rear}
}

// body 列车当前车身
func (t *Train) body() body {
	return body{cars: t.cars, elems: t.occupiedElems(), front: t.front.Offset, rear: t.rear.Offset}
}

// flip 反向：车头车尾互换
func (b body) flip(length lengthFunc) body {
	n := len(b.elems)
	return body{
		cars:  reverseCars(b.cars),
		elems: b.elems.Reversed(),
		front: length(b.elems[0].Section) - b.rear,
		rear:  length(b.elems[n-1].Section) - b.front,
	}
}

// cut 截取from到to之间的车身
func (b body) cut(from, to RoutePos, cars []*Car, length lengthFunc) body {
	if from.Index < to.Index && from.Offset >= length(b.elems[from.Index].Section) {
		from = RoutePos{Index: from.Index + 1}
	}
	if to.Index > from.Index && to.Offset <= 0 {
		to = RoutePos{Index: to.Index - 1, Offset: length(b.elems[to.Index-1].Section)}
	}
	return body{cars: cars, elems: b.elems[from.Index : to.Index+1].Clone(), front: to.Offset, rear: from.Offset}
}

// split 从车头或车尾分出n辆车
// 返回：分出的车身与剩余车身
func (b body) split(n int, atFront bool, length lengthFunc) (taken, rest body) {
	if atFront {
		takenCars, restCars := b.cars[:n], b.cars[n:]
		mid, _ := walkBack(b.elems, b.frontPos(), carsLength(takenCars), length)
		return b.cut(mid, b.frontPos(), takenCars, length), b.cut(b.rearPos(), mid, restCars, length)
	}
	takenCars, restCars := b.cars[len(b.cars)-n:], b.cars[:len(b.cars)-n]
	mid, _ := walkBack(b.elems, b.frontPos(), carsLength(restCars), length)
	return b.cut(b.rearPos(), mid, takenCars, length), b.cut(mid, b.frontPos(), restCars, length)
}

// trainEnd 列车的一端
type trainEnd int8

const (
	endRear trainEnd = iota
	endFront
)

func (e trainEnd) String() string {
	if e == endFront {
		return "front"
	}
	return "rear"
}

func (t *Train) endTrack(e trainEnd) TrackPos {
	if e == endFront {
		return t.frontTrack()
	}
	return t.rearTrack()
}

// touching 连挂相邻判断
// 功能：两车在同一区段内端部相距不超过连挂容差，且车身没有重叠
// 返回：本车与对方相接的一端
func (t *Train) touching(o *Train) (mine, theirs trainEnd, ok bool) {
	if !t.onTrack || !o.onTrack || len(o.cars) == 0 {
		return 0, 0, false
	}
	tol := t.k.CouplingTolerance
	for _, a := range []trainEnd{endFront, endRear} {
		pa := t.endTrack(a)
		for _, b := range []trainEnd{endRear, endFront} {
			pb := o.endTrack(b)
			if pa.Section != pb.Section || math.Abs(pa.Offset-pb.Offset) > tol {
				continue
			}
			lo1, hi1, _ := t.coverage(pa.Section)
			lo2, hi2, _ := o.coverage(pa.Section)
			if min(hi1, hi2)-max(lo1, lo2) > tol {
				continue
			}
			return a, b, true
		}
	}
	return 0, 0, false
}

// join 在本车一端并入车身
// 参数：b-按本车行驶方向排列的车身，at-并入的一端
// 说明：有效路径按需要向前或向后延伸，车尾由车长重新推算
func (t *Train) join(b body, at trainEnd) {
	if at == endFront {
		suffix := b.elems
		if suffix[0].Section == t.route[t.front.Index].Section {
			suffix = suffix[1:]
		}
		match := true
		for k, e := range suffix {
			i := t.front.Index + 1 + k
			if i >= len(t.route) || t.route[i] != e {
				match = false
				break
			}
		}
		if !match {
			t.route = append(t.route[:t.front.Index+1].Clone(), suffix...)
		}
		t.front = RoutePos{Index: t.front.Index + len(suffix), Offset: b.front}
		t.cars = append(b.cars, t.cars...)
	} else {
		prefix := b.elems
		if prefix[len(prefix)-1].Section == t.route[t.rear.Index].Section {
			prefix = prefix[:len(prefix)-1]
		}
		start := t.rear.Index - len(prefix)
		match := start >= 0
		for k := 0; match && k < len(prefix); k++ {
			match = t.route[start+k] == prefix[k]
		}
		if !match {
			delta := len(prefix) - t.rear.Index
			t.route = append(prefix.Clone(), t.route[t.rear.Index:]...)
			t.front.Index += delta
			t.shift -= delta
		}
		t.cars = append(t.cars, b.cars...)
	}
	t.length = carsLength(t.cars)
	t.updateRear()
}

// shrink 从车头或车尾去掉车辆，只保留keep
func (t *Train) shrink(keep []*Car, atFront bool) {
	if atFront {
		t.front, _ = walkBack(t.route, t.front, t.length-carsLength(keep), t.sectionLength)
	}
	t.cars = keep
	t.length = carsLength(keep)
	t.updateRear()
}

// absorb 本车在相接的一端并入o的车身（或其一部分）
func (t *Train) absorb(b body, mine, theirs trainEnd) {
	if mine == theirs {
		b = b.flip(t.sectionLength)
	}
	t.join(b, mine)
}

// placeBody 将车身放置为本车
// 功能：解编形成新车次或终到接续时使用；车身能接上当前子路径时沿子路径运行，否则以车身覆盖范围为临时路径
// 返回：区段无法占用时返回false，本车状态不变
func (t *Train) placeBody(b body) bool {
	n := len(b.elems)
	route, front, shift, reversed, ok := entity.Route(nil), RoutePos{}, 0, false, false
	if t.subpath < len(t.paths) {
		route, front, shift, reversed, ok = alignRoute(b.elems, b.frontPos(), b.rearPos(), t.paths[t.subpath], t.sectionLength)
	}
	temp := false
	if !ok {
		if len(t.paths) > 0 {
			log.Warnf("train %d: formation position is not on its path", t.number)
		}
		route, front, shift, temp = b.elems.Clone(), RoutePos{Index: n - 1, Offset: b.front}, 0, true
	}
	secs := lo.Uniq(b.elems.Sections())
	if !t.ctx.SectionManager().OccupySections(t.number, secs, true) {
		log.Debugf("train %d cannot be placed on %v", t.number, secs)
		return false
	}
	t.cars = b.cars
	if reversed {
		t.cars = reverseCars(t.cars)
		t.reversed = !t.reversed
	}
	t.length = carsLength(t.cars)
	t.route, t.front, t.shift, t.tempRoute = route, front, shift, temp
	t.updateRear()
	t.occupied = secs
	t.onTrack = true
	t.updateOccupation(true)
	return true
}

// checkPlayer 玩家列车必须有动力车
func (t *Train) checkPlayer() error {
	if t.player && !hasPowered(t.cars) {
		log.Errorf("train %d(%s) has no drivable locomotive", t.number, t.name)
		return fmt.Errorf("train %d(%s): %w", t.number, t.name, ErrNoDrivableLocomotive)
	}
	return nil
}

// TTCouple 连挂：本车全部车辆并入o
// 功能：两车端部相接时，本车车辆整体并入o，o按新车长重新推算占用与停站；本车离开仿真
// 参数：o-连挂对象，setBack-本车需退行连挂（先原地掉头，以原车尾连挂）
// 返回：是否完成连挂；o为玩家列车且连挂后没有动力车时返回ErrNoDrivableLocomotive
func (t *Train) TTCouple(o *Train, setBack bool) (bool, error) {
	mine, theirs, ok := t.touching(o)
	if !ok {
		return false, nil
	}
	if setBack {
		if mine != endRear {
			log.Warnf("train %d: setback attach to %d but front is adjacent", t.number, o.number)
		} else {
			t.reverseInPlace()
			mine = endFront
		}
	}
	o.absorb(t.body(), theirs, mine)
	o.updateOccupation(true)
	o.player = o.player || t.player
	o.removeNeed(t.number)
	t.cars = nil
	t.length = 0
	t.attach = nil
	t.retire("attached to %d", o.number)
	o.Recalculate()
	log.Infof("train %d attached to %d at its %s", t.number, o.number, theirs)
	return true, o.checkPlayer()
}

// pickUp 挂走静置车组
func (t *Train) pickUp(o *Train) (bool, error) {
	mine, theirs, ok := t.touching(o)
	if !ok {
		return false, nil
	}
	t.absorb(o.body(), mine, theirs)
	t.updateOccupation(true)
	o.cars = nil
	o.length = 0
	o.retire("picked up by %d", t.number)
	t.Recalculate()
	log.Infof("train %d picked up %d at its %s", t.number, o.number, mine)
	return true, t.checkPlayer()
}

// transfer 与o交接车辆
// 算法说明：
// 1. 按交接方式从交出方相接的一端选出车辆
// 2. 选中全部车辆时等同于连挂/摘挂，交出方离开仿真
// 3. 否则分出相接一端的车辆并入接收方，两车重新推算占用与停站
func (t *Train) transfer(o *Train, x *timetable.TransferInfo) (bool, error) {
	mine, theirs, ok := t.touching(o)
	if !ok {
		return false, nil
	}
	giver, taker, gEnd, tEnd := t, o, mine, theirs
	if !x.Give {
		giver, taker, gEnd, tEnd = o, t, theirs, mine
	}
	n, front := selectUnits(giver.cars, x.Spec)
	if n <= 0 {
		log.Warnf("train %d: no units to transfer between %d and %d", t.number, giver.number, taker.number)
		return true, nil
	}
	if front != (gEnd == endFront) {
		log.Debugf("train %d: transfer units taken from the adjacent %s", giver.number, gEnd)
	}
	if n >= len(giver.cars) {
		taker.absorb(giver.body(), tEnd, gEnd)
		taker.updateOccupation(true)
		giver.cars = nil
		giver.length = 0
		giver.retire("all units transferred to %d", taker.number)
		taker.Recalculate()
		return true, taker.checkPlayer()
	}
	taken, rest := giver.body().split(n, gEnd == endFront, giver.sectionLength)
	taker.absorb(taken, tEnd, gEnd)
	taker.updateOccupation(true)
	giver.shrink(rest.cars, gEnd == endFront)
	giver.updateOccupation(true)
	taker.Recalculate()
	giver.Recalculate()
	log.Infof("train %d gave %d units to %d", giver.number, n, taker.number)
	if err := giver.checkPlayer(); err != nil {
		return true, err
	}
	return true, taker.checkPlayer()
}

// removeNeed 删除其他列车对本车的连挂/交接依赖
func (t *Train) removeNeed(other int32) {
	for k, ns := range t.needAttach {
		t.needAttach[k] = lo.Without(ns, other)
	}
	for k, ns := range t.needTransfer {
		t.needTransfer[k] = lo.Without(ns, other)
	}
}

// pruneNeeds 删除已离开仿真或不再有对应义务的列车
func (t *Train) pruneNeeds() {
	for k, ns := range t.needAttach {
		t.needAttach[k] = lo.Filter(ns, func(n int32, _ int) bool {
			o, ok := t.registry.ByNumber(n)
			return ok && !o.gone() && o.attach != nil && o.attach.Valid && o.attach.OtherNumber == t.number
		})
	}
	for k, ns := range t.needTransfer {
		t.needTransfer[k] = lo.Filter(ns, func(n int32, _ int) bool {
			o, ok := t.registry.ByNumber(n)
			if !ok || o.gone() {
				return false
			}
			for _, xs := range o.transfers {
				if lo.ContainsBy(xs, func(x *timetable.TransferInfo) bool { return x.Valid && x.OtherNumber == t.number }) {
					return true
				}
			}
			return false
		})
	}
}

// attachPendingAt 本站是否还有未完成的连挂、摘挂或交接
func (t *Train) attachPendingAt(platform int32) bool {
	t.pruneNeeds()
	if t.attach != nil && t.attach.Valid && t.attach.Platform == platform {
		return true
	}
	return len(t.needAttach[platform]) > 0 || len(t.needTransfer[platform]) > 0 ||
		len(t.pickups[platform]) > 0 || len(t.transfers[platform]) > 0
}

// detachPendingAt 本站是否还有未完成的解编
func (t *Train) detachPendingAt(platform int32) bool {
	return lo.ContainsBy(t.detaches[platform], func(d *timetable.DetachInfo) bool {
		return d.Valid && !d.Done
	})
}

// performDetachesAt 执行本站的全部解编
// 返回：allowForm，任一解编未能完成或本车已离开仿真时为false
func (t *Train) performDetachesAt(platform int32) bool {
	allow := true
	for _, d := range t.detaches[platform] {
		if !t.PerformDetach(d) {
			allow = false
		}
		if t.gone() {
			return false
		}
	}
	return allow
}

// performFormationAt 执行本站的编组作业
// 返回：本车是否已离开仿真（全部车辆并入其他列车或交出）
// 算法说明：依次执行摘挂、交接、连挂；对方尚未就位的作业保留到下一步
func (t *Train) performFormationAt(platform int32) bool {
	t.pickups[platform] = lo.Filter(t.pickups[platform], func(p *timetable.PickUpInfo, _ int) bool {
		o, ok := t.registry.ByNumber(p.OtherNumber)
		if !ok || (o.gone() && len(o.cars) == 0) {
			log.Warnf("train %d: pick up %s no longer possible", t.number, p.OtherName)
			return false
		}
		if o.state != Static || !o.onTrack {
			return true
		}
		done, err := t.pickUp(o)
		t.report(err)
		return !done
	})
	t.transfers[platform] = lo.Filter(t.transfers[platform], func(x *timetable.TransferInfo, _ int) bool {
		o, ok := t.registry.ByNumber(x.OtherNumber)
		if !ok || (o.gone() && len(o.cars) == 0) || !o.onTrack && o.started() {
			log.Warnf("train %d: transfer with %s no longer possible", t.number, x.OtherName)
			return false
		}
		if o.state.Moving() {
			return true
		}
		done, err := t.transfer(o, x)
		t.report(err)
		return !done
	})
	if t.gone() {
		return true
	}
	if a := t.attach; a != nil && a.Valid && a.Platform == platform {
		return t.tryAttach()
	}
	return false
}

// tryAttach 执行连挂义务
// 说明：对方未上线时由本车车身形成对方车次
func (t *Train) tryAttach() bool {
	a := t.attach
	o, ok := t.registry.ByNumber(a.OtherNumber)
	if !ok || o.finished {
		log.Warnf("train %d: attach partner %s is gone", t.number, a.OtherName)
		t.attach = nil
		return false
	}
	if !o.started() {
		if t.formInto(o) {
			o.removeNeed(t.number)
			return true
		}
		return false
	}
	if o.state.Moving() {
		return false
	}
	done, err := t.TTCouple(o, a.SetBack)
	t.report(err)
	return done
}

// couple Following中与前车相接时执行编组作业
func (t *Train) couple(o *Train) bool {
	if t.attach != nil && t.attach.Valid && t.attach.OtherNumber == o.number {
		done, err := t.TTCouple(o, false)
		t.report(err)
		return done
	}
	for k, ps := range t.pickups {
		for i, p := range ps {
			if p.OtherNumber != o.number {
				continue
			}
			done, err := t.pickUp(o)
			t.report(err)
			if done {
				t.pickups[k] = append(ps[:i:i], ps[i+1:]...)
			}
			return done
		}
	}
	for k, xs := range t.transfers {
		for i, x := range xs {
			if x.OtherNumber != o.number {
				continue
			}
			done, err := t.transfer(o, x)
			t.report(err)
			if done {
				t.transfers[k] = append(xs[:i:i], xs[i+1:]...)
			}
			return done
		}
	}
	if o.attach != nil && o.attach.Valid && o.attach.OtherNumber == t.number {
		done, err := o.TTCouple(t, false)
		o.report(err)
		return done
	}
	return false
}

// report 记录编组作业的硬错误，交由管理器向上返回
func (t *Train) report(err error) {
	if err != nil {
		t.registry.Fail(err)
	}
}
