package entity

import (
	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/input"
)

// Manager依赖倒置

// entity/section/manager.go的依赖倒置
type ISectionManager interface {
	Init(sections []input.Section, platforms []input.Platform, signals []input.Signal) // 初始化

	// 输入区段索引，查找区段，如果不存在则panic
	Get(index int32) ISection
	// 输入区段索引，查找区段，如果不存在则返回error
	GetOrError(index int32) (ISection, error)
	// 输入站台ID，查找站台
	Platform(id int32) (*Platform, error)
	// 按车站名查找站台
	PlatformsOfStation(station string) []*Platform

	// 放置列车：先预留全部区段，再全部占用；失败时不保留任何本次预留
	PlaceTrain(train int32, sections []int32) bool
	// 占用新进入的区段（预留-占用两阶段），permissive允许进入其他列车占用的区段
	OccupySections(train int32, sections []int32, permissive bool) bool
	// 释放区段的占用与预留
	ReleaseSections(train int32, sections []int32)
	// 释放列车的全部占用与预留
	ReleaseTrain(train int32)
	// 清除列车在未占用区段上的预留
	ClearReservations(train int32)
	// 计算行车许可，沿途预留区段
	RequestAuthority(client IAuthorityClient, maxDistance float64) Authority

	// 死锁登记
	RegisterDeadlock(entry int32, train, other int32, stretch []int32)
	// 查询进入entry时与train冲突的列车
	DeadlockConflicts(entry int32, train int32) []int32
	// 删除列车相关的全部死锁记录
	RemoveDeadlocks(train int32)
}

// entity/signal/manager.go的依赖倒置
type ISignalManager interface {
	Init(signals []input.Signal) // 初始化

	// 输入信号机ID，查找信号机，如果不存在则panic
	Get(id int32) ISignal
	// 输入信号机ID，查找信号机，如果不存在则返回error
	GetOrError(id int32) (ISignal, error)

	// 沿路径从from开始查找下一架信号机，返回信号机ID与其所在区段在路径中的索引，没有时返回-1
	NextSignal(route Route, from int) (int32, int)
	// 请求为列车开放信号，next为信号机后方的第一个区段
	RequestClear(id int32, train int32, next int32, permissive bool) bool
	AddHold(id int32)    // 扣停信号
	RemoveHold(id int32) // 解除扣停

	Prepare() // 准备阶段：列车通过后信号恢复停车
}

// entity/turntable/manager.go的依赖倒置
type ITurntableManager interface {
	Init(turntables []input.Turntable) // 初始化

	IsTurntable(section int32) bool           // 区段是否为转车台
	Begin(section int32, train int32) bool    // 列车开始转向
	Remaining(train int32) float64            // 剩余转向时间（秒）
	Done(train int32) bool                    // 是否转向完成
	Release(train int32)                      // 列车离开转车台

	Update(dt float64) // 更新阶段
}

// entity/train/manager.go的依赖倒置
type ITrainManager interface {
	Init(trains []input.Train) // 初始化
	Register(sidecar *syncer.Sidecar) // 注册到Sidecar

	Prepare()          // 准备阶段
	Update(dt float64) // 更新阶段
	ActiveCount() int  // 活动列车数
	Err() error        // 取出编组作业中的硬错误
}
