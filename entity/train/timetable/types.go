// Package timetable 时刻表命令与协调义务的数据结构
package timetable

import (
	"slices"

	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/entity"
)

// 站台键：非负为站台ID，以下两个值表示路径起点与终点
const (
	PlatformEndOfRoute   int32 = -1
	PlatformStartOfRoute int32 = -2
)

// None 未设置的时间/延误
const None float64 = -1

// WaitKind 等待义务类型
type WaitKind int32

const (
	WaitWait WaitKind = iota
	WaitFollow
	WaitConnect
	WaitAny
	WaitInvalid
)

func (k WaitKind) String() string {
	switch k {
	case WaitWait:
		return "wait"
	case WaitFollow:
		return "follow"
	case WaitConnect:
		return "connect"
	case WaitAny:
		return "waitany"
	}
	return "invalid"
}

// DirectionFilter 等待义务适用的相对方向
type DirectionFilter int32

const (
	DirectionSame DirectionFilter = iota
	DirectionOpposite
	DirectionBoth
)

// WaitInfo 等待义务
type WaitInfo struct {
	Kind WaitKind `bson:"kind"`

	// 本车路径上的锚点
	ActiveSubpath    int32 `bson:"active_subpath"`
	ActiveRouteIndex int32 `bson:"active_route_index"`
	ActiveSection    int32 `bson:"active_section"`
	// 对方列车路径上的锚点
	WaitSubpath    int32 `bson:"wait_subpath"`
	WaitRouteIndex int32 `bson:"wait_route_index"`
	WaitSection    int32 `bson:"wait_section"`

	OtherNumber int32  `bson:"other_number"`
	OtherName   string `bson:"other_name"`

	MaxDelay   float64         `bson:"max_delay"`   // 秒，None表示不限
	OwnDelay   float64         `bson:"own_delay"`   // 秒，None表示不限
	Trigger    float64         `bson:"trigger"`     // 当天秒数，None表示不限
	EndTrigger float64         `bson:"end_trigger"` // 当天秒数，None表示不限
	NotStarted bool            `bson:"not_started"`
	AtStart    bool            `bson:"at_start"`
	Direction  DirectionFilter `bson:"direction"`

	// connect/forcewait
	HoldTime      float64 `bson:"hold_time"`
	Station       string  `bson:"station"`
	Forced        bool    `bson:"forced"`
	ArrivalRecord float64 `bson:"arrival_record"` // 对方到达时刻，None表示尚未到达

	// waitany
	Path []int32 `bson:"path,omitempty"`

	Active bool `bson:"active"`
}

// NewWaitInfo 创建带缺省值的等待义务
func NewWaitInfo(kind WaitKind) *WaitInfo {
	return &WaitInfo{
		Kind:           kind,
		ActiveSection:  -1,
		WaitSection:    -1,
		OtherNumber:    -1,
		MaxDelay:       None,
		OwnDelay:       None,
		Trigger:        None,
		EndTrigger:     None,
		HoldTime:       0,
		ArrivalRecord:  None,
		ActiveSubpath:  -1,
		WaitSubpath:    -1,
		WaitRouteIndex: -1,
	}
}

// Clone 复制等待义务（锚点之外的字段）
func (w *WaitInfo) Clone() *WaitInfo {
	c := *w
	c.Path = slices.Clone(w.Path)
	return &c
}

// Before 锚点在本车路径上的先后
func (w *WaitInfo) Before(o *WaitInfo) bool {
	if w.ActiveSubpath != o.ActiveSubpath {
		return w.ActiveSubpath < o.ActiveSubpath
	}
	return w.ActiveRouteIndex < o.ActiveRouteIndex
}

// AttachInfo 连挂义务：本车并入对方列车
type AttachInfo struct {
	Platform    int32  `bson:"platform"`
	OtherNumber int32  `bson:"other_number"`
	OtherName   string `bson:"other_name"`
	SetBack     bool   `bson:"set_back"` // 本车需退行连挂
	Valid       bool   `bson:"valid"`
	Ready       bool   `bson:"ready"` // 本车已到达连挂位置
}

// DetachMode 解编方式
type DetachMode int32

const (
	DetachUnits            DetachMode = iota // 固定辆数
	DetachLeadingPower                       // 前部动力单元（含煤水车）
	DetachTrailingPower                      // 后部动力单元（含煤水车）
	DetachAllLeadingPower                    // 前部全部连续动力单元
	DetachAllTrailingPower                   // 后部全部连续动力单元
	DetachNonPower                           // 全部非动力车辆
	DetachConsist                            // 指定编组名的车辆
)

// UnitSpec 选择车辆的方式
type UnitSpec struct {
	Mode    DetachMode `bson:"mode"`
	Units   int32      `bson:"units"`
	Front   bool       `bson:"front"` // 从前部摘下
	Consist string     `bson:"consist,omitempty"`
}

// DetachInfo 解编义务
type DetachInfo struct {
	Platform    int32    `bson:"platform"`
	Spec        UnitSpec `bson:"spec"`
	FormsName   string   `bson:"forms_name"`
	FormsNumber int32    `bson:"forms_number"`
	Valid       bool     `bson:"valid"`
	Done        bool     `bson:"done"`
}

// PickUpInfo 摘挂义务：本车挂走静置车组
type PickUpInfo struct {
	Platform    int32  `bson:"platform"`
	OtherNumber int32  `bson:"other_number"`
	OtherName   string `bson:"other_name"`
	Valid       bool   `bson:"valid"`
}

// TransferInfo 车辆交接义务
type TransferInfo struct {
	Platform    int32    `bson:"platform"`
	OtherNumber int32    `bson:"other_number"`
	OtherName   string   `bson:"other_name"`
	Give        bool     `bson:"give"` // true为本车交出车辆，false为本车接收
	Spec        UnitSpec `bson:"spec"`
	Valid       bool     `bson:"valid"`
}

// TriggerKind 触发时机
type TriggerKind int32

const (
	TriggerStart TriggerKind = iota
	TriggerStationStop
	TriggerStationDepart
	TriggerDispose
)

// Trigger 激活其他列车的触发器
type Trigger struct {
	Kind         TriggerKind `bson:"kind"`
	Platform     int32       `bson:"platform"`
	TargetName   string      `bson:"target_name"`
	TargetNumber int32       `bson:"target_number"`
}

// HoldMode 出站信号扣停方式
type HoldMode int32

const (
	HoldDefault HoldMode = iota // 有出站信号时扣停
	HoldNone                    // nohold
	HoldForce                   // forcehold
)

// StationStop 停站
type StationStop struct {
	Platform     int32  `bson:"platform"`
	PlatformName string `bson:"platform_name"`
	Station      string `bson:"station"`

	Subpath    int32   `bson:"subpath"`
	RouteIndex int32   `bson:"route_index"`
	Section    int32   `bson:"section"`
	StopOffset float64 `bson:"stop_offset"` // 车头在停车区段内的位置（沿行驶方向）

	ArrivalTime     float64 `bson:"arrival_time"`   // 计划到达，None表示未给出
	DepartureTime   float64 `bson:"departure_time"` // 计划出发，None表示未给出
	ActualArrival   float64 `bson:"actual_arrival"`
	ActualDeparture float64 `bson:"actual_departure"`

	ExitSignal int32 `bson:"exit_signal"`
	HoldSignal bool  `bson:"hold_signal"`

	Terminal         bool     `bson:"terminal"`
	Closeup          bool     `bson:"closeup"`
	NoWaitSignal     bool     `bson:"no_wait_signal"`
	NoClaim          bool     `bson:"no_claim"`
	CallOn           bool     `bson:"call_on"`
	EndStop          bool     `bson:"end_stop"`
	ExtendToSignal   bool     `bson:"extend_to_signal"`
	RestrictToSignal bool     `bson:"restrict_to_signal"`
	KeepClearFront   float64  `bson:"keep_clear_front"`
	KeepClearRear    float64  `bson:"keep_clear_rear"`
	ForcePosition    bool     `bson:"force_position"`
	HoldMode         HoldMode `bson:"hold_mode"`
	MinStopTime      float64  `bson:"min_stop_time"`

	Connects []*WaitInfo `bson:"connects,omitempty"`
}

// NewStationStop 创建停站
func NewStationStop(platform *entity.Platform) *StationStop {
	return &StationStop{
		Platform:        platform.ID,
		PlatformName:    platform.Name,
		Station:         platform.Station,
		Subpath:         -1,
		RouteIndex:      -1,
		Section:         -1,
		ArrivalTime:     None,
		DepartureTime:   None,
		ActualArrival:   None,
		ActualDeparture: None,
		ExitSignal:      -1,
		MinStopTime:     platform.MinStopTime,
	}
}

// Clone 深拷贝停站（含联络等待）
func (s *StationStop) Clone() *StationStop {
	c := *s
	if s.Connects != nil {
		c.Connects = make([]*WaitInfo, len(s.Connects))
		for i, w := range s.Connects {
			c.Connects[i] = w.Clone()
		}
	}
	return &c
}
