package train

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
)

// canStart 上线条件
// 算法说明：
// 1. 已上线或已离开仿真的列车不再上线
// 2. 登记在起点的连挂与交接依赖（-2）未满足时不上线
// 3. 需触发的列车等待触发；否则到达计划上线时刻；两者都没有的列车只能由其他列车形成
func (t *Train) canStart() bool {
	if t.started() || t.gone() {
		return false
	}
	t.pruneNeeds()
	if len(t.needAttach[timetable.PlatformStartOfRoute]) > 0 || len(t.needTransfer[timetable.PlatformStartOfRoute]) > 0 {
		return false
	}
	if t.triggered {
		return t.fired
	}
	return t.startTime != timetable.None && t.now() >= t.startTime
}

// activate 上线：放置到第一条子路径起点并进入Init
// 返回：条件不满足或无法放置时返回false，由调用方重新排队
func (t *Train) activate() bool {
	if !t.canStart() {
		return false
	}
	if !t.place() {
		log.Debugf("train %d(%s) cannot be placed, retry", t.number, t.name)
		return false
	}
	t.goLive()
	return true
}

// goLive 已在轨道上的列车进入活动集合
func (t *Train) goLive() {
	t.fired = true
	t.state = Init
	t.control = AutoSignal
	t.restartAt = timetable.None
	t.registry.AddActive(t)
	log.Infof("train %d(%s) starts at %.0f", t.number, t.name, t.now())
}

// retire 离开仿真：释放全部区段、死锁登记、扣停与转车台
// 说明：有效路径与编组朝向保留，供查询最终状态
func (t *Train) retire(format string, args ...any) {
	secs := t.ctx.SectionManager()
	secs.ReleaseTrain(t.number)
	secs.RemoveDeadlocks(t.number)
	t.releaseHold()
	t.ctx.TurntableManager().Release(t.number)
	t.occupied = t.occupied[:0]
	t.onTrack = false
	t.state = Static
	t.control = Inactive
	t.finished = true
	t.resetMotion()
	t.registry.RemoveActive(t)
	log.Infof("train %d(%s) leaves: %s", t.number, t.name, fmt.Sprintf(format, args...))
}

// becomeStatic 终到后静置：保留占用，等待被挂走
func (t *Train) becomeStatic() {
	secs := t.ctx.SectionManager()
	secs.ClearReservations(t.number)
	secs.RemoveDeadlocks(t.number)
	t.releaseHold()
	t.disposed = true
	t.state = Static
	t.control = Inactive
	t.resetMotion()
	t.registry.RemoveActive(t)
	log.Infof("train %d(%s) stays static", t.number, t.name)
}

// releaseHold 解除本车对出站信号的扣停
func (t *Train) releaseHold() {
	if !t.holding {
		return
	}
	if s := t.headStop(); s != nil && s.ExitSignal != -1 {
		t.ctx.SignalManager().RemoveHold(s.ExitSignal)
	}
	t.holding = false
}

// fireTriggers 触发在该位置登记的触发器
// 说明：目标列车被标记为已触发并交给管理器排队上线，每个触发器只触发一次
func (t *Train) fireTriggers(kind timetable.TriggerKind, platform int32) {
	t.triggers = lo.Filter(t.triggers, func(g *timetable.Trigger, _ int) bool {
		if g.Kind != kind || g.Platform != platform {
			return true
		}
		o, ok := t.registry.ByNumber(g.TargetNumber)
		if !ok || o.started() {
			return false
		}
		o.fired = true
		t.registry.Schedule(o)
		log.Infof("train %d triggers %d", t.number, o.number)
		return false
	})
}
