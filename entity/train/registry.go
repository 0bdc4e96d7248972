package train

// Registry 列车注册表
// 功能：按车次或车名解析列车，枚举未发车列车，供协调与编组逻辑使用
type Registry interface {
	ByNumber(number int32) (*Train, bool)
	ByName(name string) (*Train, bool)
	// 尚未上线的列车（按车次排序）
	NotStarted() []*Train
	// 正在运行的列车（按更新顺序）
	Active() []*Train
	// 列车加入活动集合（下一步生效）
	AddActive(t *Train)
	// 列车离开活动集合（下一步生效）
	RemoveActive(t *Train)
	// 被触发的列车排队上线
	Schedule(t *Train)
	// 上报编组作业中的硬错误
	Fail(err error)
}
