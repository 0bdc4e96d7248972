// 随机数引擎，包装了golang.org/x/exp/rand，为列车重新起动延迟等提供可复现的随机数
package randengine

import (
	"flag"
	"sync"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：提供可注入、可复现的随机数，同一种子下结果序列完全一致
// 说明：基于golang.org/x/exp/rand库，带锁版本供RPC等并发读取方使用
type Engine struct {
	*rand.Rand            // 底层随机数生成器
	mtx        sync.Mutex // 互斥锁，用于线程安全操作
	seed       uint64     // 实际使用的种子（含偏移量）
}

// New 创建随机数引擎
// 功能：初始化一个新的随机数引擎实例
// 参数：seed-随机数种子
// 返回：随机数引擎指针
// 说明：种子偏移量允许在不修改配置的情况下调整随机数序列
func New(seed uint64) *Engine {
	s := seed + *seedOffset
	return &Engine{Rand: rand.New(rand.NewSource(s)), seed: s}
}

// Seed 获取实际使用的种子
func (e *Engine) Seed() uint64 {
	return e.seed
}

// PTrue 以指定概率返回true（非线程安全）
// 功能：根据给定概率返回布尔值
// 参数：p-返回true的概率（0.0到1.0之间）
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// Delay 生成延迟时间（非线程安全）
// 功能：返回 fixed + random * U[0,1) 秒
// 参数：fixed-固定部分，random-随机部分上限
// 说明：random<=0时不消耗随机数，保证无随机配置下序列不受影响
func (e *Engine) Delay(fixed, random float64) float64 {
	if random <= 0 {
		return fixed
	}
	return fixed + random*e.Float64()
}

// IntnSafe 随机生成整数（线程安全）
// 功能：在[0, n)范围内生成随机整数，支持多线程安全访问
func (e *Engine) IntnSafe(n int) int {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.Intn(n)
}

// Float64Safe 随机生成浮点数（线程安全）
// 功能：生成[0.0, 1.0)范围内的随机浮点数，支持多线程安全访问
func (e *Engine) Float64Safe() float64 {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.Float64()
}
