// Package governor 速度调节器
// 根据到下一动作点的剩余距离与要求速度计算理想速度带，每步给出唯一的牵引/制动调整
package governor

import (
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/config"
)

// Choice 每步的控制选择
type Choice int32

const (
	Hold         Choice = iota // 保持
	ThrottleMore               // 加大牵引
	ThrottleLess               // 减小牵引
	BrakeMore                  // 加大制动
	BrakeLess                  // 缓解制动
	Clamp                      // 超过允许最高速度，直接限速
)

var choiceNames = [...]string{"Hold", "ThrottleMore", "ThrottleLess", "BrakeMore", "BrakeLess", "Clamp"}

func (c Choice) String() string {
	if c < 0 || int(c) >= len(choiceNames) {
		return fmt.Sprintf("Choice(%d)", int32(c))
	}
	return choiceNames[c]
}

// speedEpsilon 判断速度升降趋势的阈值
const speedEpsilon = 1e-3

// Input 调节器输入
type Input struct {
	Speed         float64 // 当前速度
	PrevSpeed     float64 // 上一步速度
	RequiredSpeed float64 // 动作点要求速度，0表示停车
	Distance      float64 // 到动作点的剩余距离
	Creep         float64 // 蠕行余量（站停/信号/一般出清各不相同）
	AllowedMax    float64 // 允许最高速度
	Decel         float64 // 标称减速度
	ActualDecel   float64 // 上一步实际减速度（减速为正）
	DT            float64 // 步长
	Throttle      float64 // 当前牵引百分比
	Brake         float64 // 当前制动百分比
}

// Bands 理想速度与上下速度带
// 说明：ThreeLow <= Low <= Ideal <= High <= Top <= ThreeHigh
type Bands struct {
	ThreeLow      float64
	Low           float64
	Ideal         float64
	High          float64
	Top           float64
	ThreeHigh     float64
	MaxPossible   float64 // 以一半标称减速度仍能在剩余距离内降到要求速度的最高速度
	RequiredDecel float64 // 从当前速度在剩余距离内降到要求速度所需的减速度
}

// Deceleration 计算标称减速度
// 功能：客车在高速区间允许更大的减速度
// 参数：freight-是否货车，speed-当前速度，c-列车常量
func Deceleration(freight bool, speed float64, c *config.TrainConstants) float64 {
	if freight {
		return c.MaxDecelFreight
	}
	switch {
	case speed > c.HighSpeedHigh:
		return c.MaxDecelPassenger * 2.5
	case speed > c.HighSpeedLow:
		return c.MaxDecelPassenger * 1.5
	}
	return c.MaxDecelPassenger
}

// Acceleration 最大加速度
func Acceleration(freight bool, c *config.TrainConstants) float64 {
	if freight {
		return c.MaxAccelFreight
	}
	return c.MaxAccelPassenger
}

// BrakingDistanceTo 以减速度decel从v降到targetV所需距离
func BrakingDistanceTo(v, targetV, decel float64) float64 {
	if decel <= 0 {
		return math.Inf(1)
	}
	if v <= targetV {
		return 0
	}
	return (v*v - targetV*targetV) / (2 * decel)
}

// ComputeBands 计算速度带
// 功能：由剩余距离与要求速度推算理想速度并生成五条速度带
// 参数：in-调节器输入，c-列车常量
// 返回：速度带
// 算法说明：
// 1. 剩余距离扣除蠕行余量；本步以当前速度会越过剩余距离时，剩余距离减半
// 2. maxPossible = sqrt(0.5*decel*2*remaining + required²)，停车时不低于蠕行速度，进入停车容差后为0
// 3. 理想速度为maxPossible与允许最高速度的较小者，按带宽h生成 -3h/-h/+h/+2h/+3h 五条速度带
func ComputeBands(in Input, c *config.TrainConstants) Bands {
	h := c.Hysteresis
	remaining := in.Distance - in.Creep
	if in.Speed*in.DT > remaining {
		remaining *= 0.5
	}
	remaining = max(remaining, 0)
	maxPossible := math.Sqrt(0.5*in.Decel*2*remaining + in.RequiredSpeed*in.RequiredSpeed)
	if in.RequiredSpeed == 0 {
		if in.Distance <= c.StopTolerance {
			maxPossible = 0
		} else {
			maxPossible = max(maxPossible, c.CreepSpeed)
		}
	}
	ideal := min(maxPossible, in.AllowedMax)
	requiredDecel := 0.
	if in.Distance > 0 && in.Speed > in.RequiredSpeed {
		requiredDecel = (in.Speed*in.Speed - in.RequiredSpeed*in.RequiredSpeed) / (2 * in.Distance)
	}
	return Bands{
		ThreeLow:      ideal - 3*h,
		Low:           ideal - h,
		Ideal:         ideal,
		High:          ideal + h,
		Top:           ideal + 2*h,
		ThreeHigh:     ideal + 3*h,
		MaxPossible:   maxPossible,
		RequiredDecel: requiredDecel,
	}
}

// Decision 控制决策
type Decision struct {
	Choice Choice
	Strong bool // 强制动
}

// Decide 选择本步的控制动作
// 功能：比较当前速度、速度趋势与速度带，得到唯一的控制选择
// 参数：in-调节器输入，b-速度带，h-带宽
// 返回：控制决策
// 算法说明：
// 1. 超过允许最高速度+h：限速
// 2. 高于ThreeHigh：强制动
// 3. Top~ThreeHigh：速度上升或实际减速度不足所需减速度时加大制动，否则保持
// 4. High~Top：速度上升时减小牵引（制动中则加大制动），否则保持
// 5. Low~High：在带内，上升且有牵引时减小牵引，下降且有制动时缓解制动，否则保持
// 6. ThreeLow~Low：制动中缓解制动，否则加大牵引
// 7. 低于ThreeLow：同6
func Decide(in Input, b Bands, h float64) Decision {
	rising := in.Speed > in.PrevSpeed+speedEpsilon
	falling := in.Speed < in.PrevSpeed-speedEpsilon
	braking := in.Brake > 0
	switch {
	case in.Speed > in.AllowedMax+h:
		return Decision{Choice: Clamp}
	case in.Speed > b.ThreeHigh:
		return Decision{Choice: BrakeMore, Strong: true}
	case in.Speed > b.Top:
		if rising || in.ActualDecel < b.RequiredDecel {
			return Decision{Choice: BrakeMore}
		}
		return Decision{Choice: Hold}
	case in.Speed > b.High:
		if rising {
			if braking {
				return Decision{Choice: BrakeMore}
			}
			return Decision{Choice: ThrottleLess}
		}
		return Decision{Choice: Hold}
	case in.Speed >= b.Low:
		if rising && in.Throttle > 0 {
			return Decision{Choice: ThrottleLess}
		}
		if falling && braking {
			return Decision{Choice: BrakeLess}
		}
		return Decision{Choice: Hold}
	}
	// 低于Low
	if braking {
		return Decision{Choice: BrakeLess}
	}
	return Decision{Choice: ThrottleMore}
}

// Controls 牵引与制动百分比
type Controls struct {
	Throttle float64 `bson:"throttle"`
	Brake    float64 `bson:"brake"`
}

// Apply 应用控制决策
// 返回：本步加速度（减速为负）
func (ctl *Controls) Apply(d Decision, accel, decel float64, c *config.TrainConstants) float64 {
	switch d.Choice {
	case ThrottleMore:
		ctl.Brake = 0
		ctl.Throttle = min(ctl.Throttle+c.ThrottleStep, 100)
	case ThrottleLess:
		ctl.Throttle = max(ctl.Throttle-c.ThrottleStep, 0)
	case BrakeMore:
		ctl.Throttle = 0
		step := c.BrakeStep
		if d.Strong {
			step = c.StrongBrakeStep
		}
		ctl.Brake = min(ctl.Brake+step, 100)
	case BrakeLess:
		ctl.Brake = max(ctl.Brake-c.BrakeStep, 0)
	case Clamp:
		ctl.Throttle = 0
	}
	return ctl.Throttle/100*accel - ctl.Brake/100*decel
}

// FullBrake 紧急停车
func (ctl *Controls) FullBrake() {
	ctl.Throttle = 0
	ctl.Brake = 100
}

// Release 缓解全部控制
func (ctl *Controls) Release() {
	ctl.Throttle = 0
	ctl.Brake = 0
}
