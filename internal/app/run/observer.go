package run

import (
	"time"

	"github.com/John-Robertt/gamefill/internal/config"
	"github.com/John-Robertt/gamefill/internal/domain"
)

// Observer 用于把“运行进度/状态/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）
// - 事件总是在调用 Run 的 goroutine 上同步发出
type Observer interface {
	// OnStart 在 Run 开始时调用。
	OnStart(runID string, eff config.EffectiveConfig)
	// OnState 在某件藏品进入新状态时调用。
	OnState(seq int, key string, st State)
	// OnItemDone 在某件藏品处理结束（任何终态）时调用。
	OnItemDone(res domain.ItemResult, dur time.Duration)
}

type nopObserver struct{}

func (nopObserver) OnStart(string, config.EffectiveConfig)      {}
func (nopObserver) OnState(int, string, State)                  {}
func (nopObserver) OnItemDone(domain.ItemResult, time.Duration) {}
