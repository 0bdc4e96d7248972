package entity

import (
	"fmt"
	"strings"
)

// SectionKind 区段类型
type SectionKind int32

const (
	SectionNormal     SectionKind = iota // 普通区段
	SectionJunction                      // 道岔区段
	SectionCrossover                     // 交叉渡线
	SectionEndOfTrack                    // 尽头线
	SectionTurntable                     // 转车台
)

// ParseSectionKind 解析区段类型字符串，空字符串视为普通区段
func ParseSectionKind(s string) (SectionKind, error) {
	switch strings.ToLower(s) {
	case "", "normal":
		return SectionNormal, nil
	case "junction":
		return SectionJunction, nil
	case "crossover":
		return SectionCrossover, nil
	case "end_of_track":
		return SectionEndOfTrack, nil
	case "turntable":
		return SectionTurntable, nil
	}
	return SectionNormal, fmt.Errorf("unknown section kind %q", s)
}

// entity/section/section.go的依赖倒置
type ISection interface {
	Index() int32           // 获取区段索引
	Length() float64        // 获取区段长度
	Kind() SectionKind      // 获取区段类型
	IsJunction() bool       // 是否为道岔或交叉渡线
	MaxV() float64          // 获取区段限速，0表示不限速
	Signal(d Direction) int32 // 获取区段在d方向末端的信号机，-1表示没有
	Platforms() []int32     // 获取区段上的站台

	OccupiedBy() []int32              // 占用区段的列车
	ReservedBy() int32                // 预留区段的列车，-1表示无
	IsOccupiedByOther(train int32) bool // 是否被其他列车占用
	IsClearFor(train int32) bool        // 是否未被其他列车占用或预留
}

// Platform 站台（已与区段、信号机关联）
// 说明：Sections按正方向排列，StartOffset/EndOffset以正方向度量
type Platform struct {
	ID          int32
	Name        string
	Station     string
	Sections    []int32
	StartOffset float64
	EndOffset   float64
	Length      float64
	MinStopTime float64

	ExitSignals   [2]int32   // 各方向的出站信号机，-1表示没有
	DistToSignals [2]float64 // 各方向站台末端到出站信号机的距离，负值表示信号机位于站台内
}

// EndSection 行驶方向d上站台末端所在区段
func (p *Platform) EndSection(d Direction) int32 {
	if d == Forward {
		return p.Sections[len(p.Sections)-1]
	}
	return p.Sections[0]
}

// BeginSection 行驶方向d上站台始端所在区段
func (p *Platform) BeginSection(d Direction) int32 {
	if d == Forward {
		return p.Sections[0]
	}
	return p.Sections[len(p.Sections)-1]
}

// EndOffset 行驶方向d上站台末端在末端区段内的偏移（按d方向度量）
// 参数：sectionLength-末端区段长度
func (p *Platform) EndOffsetIn(d Direction, sectionLength float64) float64 {
	if d == Forward {
		return p.EndOffset
	}
	return sectionLength - p.StartOffset
}

// BeginOffsetIn 行驶方向d上站台始端在始端区段内的偏移（按d方向度量）
// 参数：sectionLength-始端区段长度
func (p *Platform) BeginOffsetIn(d Direction, sectionLength float64) float64 {
	if d == Forward {
		return p.StartOffset
	}
	return sectionLength - p.EndOffset
}

// HasSection 站台是否包含区段
func (p *Platform) HasSection(section int32) bool {
	for _, s := range p.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// AuthorityType 行车许可终点类型
type AuthorityType int32

const (
	AuthorityEndOfTrack     AuthorityType = iota // 尽头线
	AuthorityEndOfPath                           // 路径终点
	AuthorityEndOfAuthority                      // 许可终点（区段被预留、信号未开放、死锁保护等）
	AuthorityTrainAhead                          // 前方列车
	AuthorityReservedSwitch                      // 道岔被其他列车预留
	AuthorityLoop                                // 路径成环
	AuthorityNoPathReserved                      // 未能预留任何区段
	AuthorityMaxDistance                         // 达到最大检查距离
)

var authorityNames = [...]string{
	"EndOfTrack", "EndOfPath", "EndOfAuthority", "TrainAhead",
	"ReservedSwitch", "Loop", "NoPathReserved", "MaxDistance",
}

func (t AuthorityType) String() string {
	if t < 0 || int(t) >= len(authorityNames) {
		return fmt.Sprintf("AuthorityType(%d)", int32(t))
	}
	return authorityNames[t]
}

// Authority 行车许可
type Authority struct {
	Type                AuthorityType `bson:"type"`
	Distance            float64       `bson:"distance"`              // 车头到许可终点的距离（米）
	LastReservedSection int32         `bson:"last_reserved_section"` // 最后一个成功预留的区段
	Blocker             int32         `bson:"blocker"`               // TrainAhead时阻挡的列车，否则为-1
}

// IAuthorityClient 请求行车许可的列车
type IAuthorityClient interface {
	Number() int32
	ValidRoute() Route
	FrontPosition() (routeIndex int, offset float64)
	// 过滤上报的死锁冲突，返回仍然有效的冲突列车
	VerifyDeadlock(conflicts []int32) []int32
}

// SignalAspect 信号显示
type SignalAspect int32

const (
	SignalStop        SignalAspect = iota // 停车
	SignalRestricting                     // 引导（允许进入占用区段）
	SignalClear                           // 开放
)

func (a SignalAspect) String() string {
	switch a {
	case SignalStop:
		return "Stop"
	case SignalRestricting:
		return "Restricting"
	case SignalClear:
		return "Clear"
	}
	return fmt.Sprintf("SignalAspect(%d)", int32(a))
}

// entity/signal/signal.go的依赖倒置
type ISignal interface {
	ID() int32
	Section() int32
	Direction() Direction
	Aspect() SignalAspect
	ClearedFor() int32 // 为哪趟列车开放，-1表示未开放
	IsHeld() bool      // 是否被扣停
}
