package train

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
)

// PerformDetach 解编
// 功能：按解编方式从车头或车尾分出车辆，形成（并激活）另一趟列车，两车重新推算位置、占用与停站
// 参数：d-解编义务
// 返回：allowForm，本车之后是否还可以接续形成其他车次
// 说明：
// 1. 义务无效或已完成时返回true
// 2. 没有可分出的车辆、形成的车次不存在或已上线时删除义务并返回true
// 3. 分出的车辆无法放置时保留义务，下一步重试，返回false
// 4. 全部车辆被分出时本车离开仿真，返回false
func (t *Train) PerformDetach(d *timetable.DetachInfo) bool {
	if !d.Valid || d.Done {
		return true
	}
	n, atFront := selectUnits(t.cars, d.Spec)
	if n <= 0 {
		log.Warnf("train %d(%s): no units match detach %v, dropped", t.number, t.name, d.Spec.Mode)
		d.Valid = false
		return true
	}
	o, ok := t.registry.ByNumber(d.FormsNumber)
	if !ok || o.started() {
		log.Warnf("train %d(%s): detached units cannot form %s, dropped", t.number, t.name, d.FormsName)
		d.Valid = false
		return true
	}
	all := n >= len(t.cars)
	taken, rest := t.body(), body{}
	if !all {
		taken, rest = t.body().split(n, atFront, t.sectionLength)
	}
	if !o.placeBody(taken) {
		log.Debugf("train %d: detached units for %d cannot be placed, retry", t.number, o.number)
		return false
	}
	d.Done = true
	o.formedOf = t.number
	o.delay = t.delay
	o.goLive()
	if all {
		t.cars = nil
		t.length = 0
		t.retire("all units detached to %d", o.number)
		log.Infof("train %d detached all units to form %d", t.number, o.number)
		return false
	}
	t.shrink(rest.cars, atFront)
	t.updateOccupation(true)
	t.Recalculate()
	log.Infof("train %d detached %d units from its %s to form %d", t.number, n, lo.Ternary(atFront, endFront, endRear), o.number)
	if err := t.checkPlayer(); err != nil {
		t.report(err)
	}
	return true
}

// formInto 本车全部车辆形成o
// 返回：o无法放置时返回false，本车不变
func (t *Train) formInto(o *Train) bool {
	if o.started() {
		log.Warnf("train %d: %d already running, cannot be formed", t.number, o.number)
		return false
	}
	if !o.placeBody(t.body()) {
		return false
	}
	o.formedOf = t.number
	o.delay = t.delay
	o.player = o.player || t.player
	t.cars = nil
	t.length = 0
	t.retire("formed %d", o.number)
	o.goLive()
	log.Infof("train %d forms %d", t.number, o.number)
	o.report(o.checkPlayer())
	return true
}

// FormTrainFromAI 终到后接续形成下一车次
// 返回：是否完成接续；下一车次不存在时返回false
func (t *Train) FormTrainFromAI() bool {
	o, ok := t.registry.ByNumber(t.formsNumber)
	if !ok {
		log.Warnf("train %d(%s): forms unknown train %s", t.number, t.name, t.formsName)
		t.formsNumber = -1
		return false
	}
	if o.started() {
		log.Warnf("train %d(%s): %s already running, forms dropped", t.number, t.name, o.name)
		t.formsNumber = -1
		return false
	}
	return t.formInto(o)
}
