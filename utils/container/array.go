package container

// IIncrementalItem 支持增量更新的元素接口
// 功能：定义支持增量更新的元素必须实现的方法
// 说明：元素自己记录在数组中的位置，-1表示不在数组中
type IIncrementalItem interface {
	Index() int         // 获取元素的索引
	SetIndex(index int) // 设置元素的索引
}

// IncrementalItemBase 增量元素基类
// 功能：提供增量元素的基础实现，可作为嵌入字段快速实现IIncrementalItem接口
type IncrementalItemBase struct {
	index int // 元素在数组中的索引
}

// Index 获取元素的索引
func (b *IncrementalItemBase) Index() int {
	return b.index
}

// SetIndex 设置元素的索引
func (b *IncrementalItemBase) SetIndex(index int) {
	b.index = index
}

// IncrementalArray 增量数组，延迟到Prepare时统一增删的有序数组
// 功能：维护活动列车集合，更新阶段中产生的增删在下一步Prepare时生效
// 说明：删除保持剩余元素的相对顺序，保证逐车更新的顺序确定
type IncrementalArray[T IIncrementalItem] struct {
	data   []T // 主数据数组
	add    []T // 待添加的元素列表
	remove []T // 待删除的元素列表
}

// NewIncrementalArray 创建增量数组
func NewIncrementalArray[T IIncrementalItem]() *IncrementalArray[T] {
	return &IncrementalArray[T]{
		data:   make([]T, 0),
		add:    make([]T, 0),
		remove: make([]T, 0),
	}
}

// Len 获取当前数组长度
func (a *IncrementalArray[T]) Len() int {
	return len(a.data)
}

// Data 获取当前数据（已应用所有增量操作）
func (a *IncrementalArray[T]) Data() []T {
	return a.data
}

// Add 增加元素（等到Prepare时才会真正增加）
func (a *IncrementalArray[T]) Add(value T) {
	a.add = append(a.add, value)
}

// Remove 删除元素（等到Prepare时才会真正删除）
func (a *IncrementalArray[T]) Remove(value T) {
	a.remove = append(a.remove, value)
}

// Pending 是否还有未生效的增删操作
func (a *IncrementalArray[T]) Pending() bool {
	return len(a.add) > 0 || len(a.remove) > 0
}

// Prepare 执行增量操作
// 功能：统一执行所有待处理的删除与添加操作
// 算法说明：
// 1. 按索引标记待删除元素，重复删除与不在数组中的元素被忽略
// 2. 顺序压缩剩余元素并重写索引
// 3. 在末尾追加新元素，已在数组中的元素不会重复加入
func (a *IncrementalArray[T]) Prepare() {
	if len(a.remove) > 0 {
		drop := make(map[int]struct{}, len(a.remove))
		for _, x := range a.remove {
			if i := x.Index(); i >= 0 && i < len(a.data) && any(a.data[i]) == any(x) {
				drop[i] = struct{}{}
			}
		}
		kept := a.data[:0]
		for i, x := range a.data {
			if _, ok := drop[i]; ok {
				x.SetIndex(-1)
				continue
			}
			x.SetIndex(len(kept))
			kept = append(kept, x)
		}
		a.data = kept
	}
	for _, x := range a.add {
		if i := x.Index(); i >= 0 && i < len(a.data) && any(a.data[i]) == any(x) {
			continue
		}
		x.SetIndex(len(a.data))
		a.data = append(a.data, x)
	}
	a.add = a.add[:0]
	a.remove = a.remove[:0]
}
