package train

import "fmt"

// MovementState 列车运行状态
type MovementState int32

const (
	Static       MovementState = iota // 不在运行（未上线、等待连挂或终到静置）
	Init                              // 刚上线
	Stopped                           // 停车
	Accelerating                      // 加速
	Running                           // 以允许速度运行
	Braking                           // 向动作点减速
	Following                         // 跟驰前车
	StationStop                       // 停站
	Turntable                         // 在转车台上转向
)

var stateNames = [...]string{
	"Static", "Init", "Stopped", "Accelerating", "Running", "Braking", "Following", "StationStop", "Turntable",
}

func (s MovementState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("MovementState(%d)", int32(s))
	}
	return stateNames[s]
}

// Moving 是否为行驶中的状态
func (s MovementState) Moving() bool {
	switch s {
	case Accelerating, Running, Braking, Following:
		return true
	}
	return false
}

// ControlMode 控制方式
type ControlMode int32

const (
	AutoSignal ControlMode = iota // 按信号运行
	AutoNode                      // 无信号区段按节点运行
	Inactive                      // 未运行
)

func (m ControlMode) String() string {
	switch m {
	case AutoSignal:
		return "AutoSignal"
	case AutoNode:
		return "AutoNode"
	case Inactive:
		return "Inactive"
	}
	return fmt.Sprintf("ControlMode(%d)", int32(m))
}

// stoppedInput Stopped状态的决策输入
type stoppedInput struct {
	DistanceToClear float64 // 可行驶距离
	ClearingMargin  float64
	WaitActive      bool // 等待义务阻止起动
	RestartPending  bool // 起动延迟未结束
	HasAction       bool
	TrainAhead      bool
}

// decideStopped Stopped状态的下一状态
func decideStopped(in stoppedInput) MovementState {
	if in.DistanceToClear <= in.ClearingMargin || in.WaitActive || in.RestartPending {
		return Stopped
	}
	switch {
	case in.TrainAhead:
		return Following
	case in.HasAction:
		return Braking
	}
	return Accelerating
}

// movingInput 行驶状态（加速/运行/减速）的决策输入
type movingInput struct {
	Speed      float64
	AllowedMax float64
	Hysteresis float64
	StopSpeed  float64
	HasAction  bool    // 存在有约束的动作
	Target     float64 // 动作给出的理想速度
	AtTarget   bool    // 已到达动作点
	TrainAhead bool    // 约束动作来自前车
}

// decideAccelerating 加速、运行与减速状态的下一状态
// 说明：停在动作点时返回Stopped，由调用方根据动作类型转入停站等状态
func decideAccelerating(in movingInput) MovementState {
	if in.AtTarget && in.Speed <= in.StopSpeed {
		return Stopped
	}
	if in.TrainAhead {
		return Following
	}
	if in.HasAction && in.Target < in.AllowedMax-in.Hysteresis {
		return Braking
	}
	if max(in.Speed-in.AllowedMax, in.AllowedMax-in.Speed) <= in.Hysteresis || in.Speed > in.AllowedMax {
		return Running
	}
	return Accelerating
}

// followInput Following状态的决策输入
type followInput struct {
	Found          bool // 前车仍存在
	Gap            float64
	KeepDistance   float64
	Speed          float64
	OtherSpeed     float64
	StopSpeed      float64
	StopTolerance  float64
	CouplingRange  float64
	Coupling       bool // 与前车有连挂/摘挂/交接义务
	TerminateInto  bool // 前车停在本车终到站台
	HasOtherAction bool // 存在比前车更严格的动作
}

// followDecision Following状态的决策
type followDecision struct {
	State  MovementState
	Couple bool // 执行编组作业
}

// decideFollowing Following状态的下一状态
// 算法说明：
// 1. 前车消失：行驶中转Running，否则Stopped
// 2. 有编组义务且在连挂容差内、相对速度接近0：执行编组
// 3. 前车位于本车终到站台且已停稳：StationStop
// 4. 距离达到保持距离且速度接近0：Stopped
// 5. 存在更严格的其他动作：Braking
func decideFollowing(in followInput) followDecision {
	if !in.Found {
		if in.Speed > in.StopSpeed {
			return followDecision{State: Running}
		}
		return followDecision{State: Stopped}
	}
	slow := in.Speed <= in.StopSpeed && max(in.Speed-in.OtherSpeed, in.OtherSpeed-in.Speed) <= in.StopSpeed
	if in.Coupling && in.Gap <= in.CouplingRange && slow {
		return followDecision{State: Stopped, Couple: true}
	}
	near := in.Gap-in.KeepDistance <= in.StopTolerance
	if near && in.Speed <= in.StopSpeed {
		if in.TerminateInto {
			return followDecision{State: StationStop}
		}
		return followDecision{State: Stopped}
	}
	if in.HasOtherAction {
		return followDecision{State: Braking}
	}
	return followDecision{State: Following}
}

// departInput StationStop状态的决策输入
type departInput struct {
	Now            float64
	Departure      float64
	ConnectPending bool
	AttachPending  bool
	DetachPending  bool
	SignalRequired bool
	SignalCleared  bool
}

// dutiesDone 已到发车时刻且没有未完成的联络与编组义务，不考虑出站信号
func (in departInput) dutiesDone() bool {
	return in.Now >= in.Departure && !in.ConnectPending && !in.AttachPending && !in.DetachPending
}

// decideStationDeparture StationStop状态的下一状态
func decideStationDeparture(in departInput) MovementState {
	if !in.dutiesDone() {
		return StationStop
	}
	if in.SignalRequired && !in.SignalCleared {
		return StationStop
	}
	return Stopped
}
