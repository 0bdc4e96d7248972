package train

import (
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity/train/timetable"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/config"
)

// endOfRouteInput 终点判定的输入
type endOfRouteInput struct {
	Moved          bool
	PassedReversal bool    // 车尾已越过折返点
	EndReached     bool    // 已因路径终点停车
	FrontInLast    bool    // 车头位于有效路径最后一个区段
	RearInLast     bool    // 车尾位于有效路径最后一个区段
	Remaining      float64 // 车头到有效路径终点的距离
	JunctionAhead  bool    // 车头到路径终点之间有道岔
	SignalAhead    bool    // 车头到路径终点之间有信号机
	PlatformAhead  bool    // 车头到路径终点之间有站台
	EndStop        bool    // 已在endstop停站
	SignalAtLast   bool    // 停在最后可达区段末端的信号机前
}

// endOfRoute 终点判定
// 算法说明：
// 1. 上线后没有移动过时为false；车尾越过折返点时为true
// 2. 只在因路径终点停车后判定，以下任一条件成立即为终点：
// 车头在最后区段、距终点不超过固定距离且中间没有道岔、车尾在最后区段、endstop、
// 停在最后可达区段的信号机前、剩余距离不足两倍标准保护区段、前方没有道岔信号机与站台
func endOfRoute(in endOfRouteInput, k *config.TrainConstants) bool {
	if !in.Moved {
		return false
	}
	if in.PassedReversal {
		return true
	}
	if !in.EndReached {
		return false
	}
	return in.FrontInLast ||
		(in.Remaining <= k.EndOfRouteDistance && !in.JunctionAhead) ||
		in.RearInLast ||
		in.EndStop ||
		in.SignalAtLast ||
		in.Remaining < 2*k.StandardOverlap ||
		(!in.JunctionAhead && !in.SignalAhead && !in.PlatformAhead)
}

// CheckEndOfRoutePositionTT 列车是否已到达当前子路径的终点
func (t *Train) CheckEndOfRoutePositionTT() bool {
	if !t.onTrack || t.tempRoute {
		return false
	}
	in := endOfRouteInput{
		Moved:          t.moved,
		PassedReversal: t.passedReversalPoint(),
		EndReached:     t.endReached,
		EndStop:        t.endStop,
	}
	if !in.Moved || (!in.PassedReversal && !in.EndReached) {
		return false
	}
	last := len(t.route) - 1
	in.FrontInLast = t.front.Index == last
	in.RearInLast = t.rear.Index == last
	in.Remaining = t.remainingRoute()
	secs := t.ctx.SectionManager()
	for i := t.front.Index; i <= last; i++ {
		e := t.route[i]
		s := secs.Get(e.Section)
		if i > t.front.Index {
			in.JunctionAhead = in.JunctionAhead || s.IsJunction()
			in.PlatformAhead = in.PlatformAhead || len(s.Platforms()) > 0
		}
		if i < last && s.Signal(e.Direction) != -1 {
			in.SignalAhead = true
		}
	}
	fe := t.route[t.front.Index]
	in.SignalAtLast = secs.Get(fe.Section).Signal(fe.Direction) != -1 &&
		t.authority.LastReservedSection == fe.Section &&
		(t.authority.Type == entity.AuthorityEndOfPath || t.authority.Type == entity.AuthorityEndOfTrack)
	return endOfRoute(in, t.k)
}

// processEndOfRoute 终到处理
// 算法说明：
// 1. 还有下一条子路径时折返（在转车台上时先转向）
// 2. 触发终到触发器，执行终点的解编；解编未完成时下一步重试且不接续形成
// 3. 执行终点的摘挂、交接与连挂，仍有未完成的编组义务时等待
// 4. 接续形成下一车次；否则按处置静置或离开仿真
func (t *Train) processEndOfRoute() {
	if t.subpath+1 < len(t.paths) {
		t.enterTurntableOrReverse()
		return
	}
	const p = timetable.PlatformEndOfRoute
	t.fireTriggers(timetable.TriggerDispose, p)
	if !t.performDetachesAt(p) {
		return
	}
	if t.performFormationAt(p) {
		return
	}
	if t.attachPendingAt(p) {
		return
	}
	if t.formsNumber != -1 {
		if t.FormTrainFromAI() {
			return
		}
		if t.formsNumber != -1 {
			// 新车次暂时无法放置
			return
		}
	}
	if t.disposeStatic {
		t.becomeStatic()
		return
	}
	t.retire("end of route")
}
