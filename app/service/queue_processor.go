package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"radio-stream/app/config"
	"radio-stream/app/logger"
	"radio-stream/app/model"

	"github.com/robfig/cron/v3"
)

// maxAttempts 单个条目的最大处理次数，超过后进入终态不再重试
const maxAttempts = 3

// QueueSource 队列源（Trello 看板适配器实现该接口）
type QueueSource interface {
	ListEligible() ([]*model.QueueItem, error)
	ReportState(item *model.QueueItem, state model.ItemState) error
	Attachment(item *model.QueueItem) (*model.AttachmentRef, error)
}

// Acquirer 附件下载与校验
type Acquirer interface {
	Acquire(ctx context.Context, ref *model.AttachmentRef) (*model.MediaAsset, error)
}

// StreamSupervisor 转码监督器
type StreamSupervisor interface {
	Start(asset *model.MediaAsset, duration time.Duration) error
	Wait() error
	Stop() error
	CurrentMediaPath() string
	Status() model.SessionStatus
}

// StorageReclaimer 存储回收器
type StorageReclaimer interface {
	Reclaim() (int64, error)
}

// Processor 队列协调器。串行地把条目推过
// Queued → Acquiring → Streaming → Completed/Failed 状态机，
// 同一时刻只处理一个条目（切片服务器只有一个输出槽位）。
type Processor struct {
	cfg        *config.Config
	log        *logger.Logger
	source     QueueSource
	acquirer   Acquirer
	supervisor StreamSupervisor
	reclaimer  StorageReclaimer

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	stopCh   chan struct{}
	wg       sync.WaitGroup
	cron     *cron.Cron
	attempts map[string]int   // 条目 ID -> 已尝试次数，终态后删除
	current  *model.QueueItem // 正在处理的条目
}

// NewProcessor 创建队列协调器
func NewProcessor(
	cfg *config.Config,
	log *logger.Logger,
	source QueueSource,
	acquirer Acquirer,
	supervisor StreamSupervisor,
	reclaimer StorageReclaimer,
) *Processor {
	return &Processor{
		cfg:        cfg,
		log:        log,
		source:     source,
		acquirer:   acquirer,
		supervisor: supervisor,
		reclaimer:  reclaimer,
		attempts:   make(map[string]int),
	}
}

// Start 启动处理循环和定期清理任务
func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go p.run(ctx)

	// 清理周期是协调器自己的节奏，与单个条目的处理无关
	p.cron = cron.New()
	interval := p.cfg.Storage.CleanupInterval()
	if _, err := p.cron.AddFunc("@every "+interval.String(), p.runCleanup); err != nil {
		p.log.Errorf("注册清理任务失败: %v", err)
	}
	p.cron.Start()

	p.log.Info("队列处理器已启动")
}

// Stop 停止处理循环。会强制结束当前会话，并在限定时间内等待循环退出。
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	close(p.stopCh)
	if p.cron != nil {
		p.cron.Stop()
	}
	p.mu.Unlock()

	cancel()

	// 解除协调器对会话结束的等待
	if err := p.supervisor.Stop(); err != nil {
		p.log.Errorf("停止转码会话失败: %v", err)
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(p.cfg.Stream.StopGrace() + p.cfg.Stream.PollInterval()):
		p.log.Warn("等待处理循环退出超时")
	}

	p.log.Info("队列处理器已停止")
}

// run 主处理循环。单次迭代出错只做退避，循环本身永不退出（除非停止）。
func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		if err := p.iterate(ctx); err != nil {
			p.log.Errorf("队列处理出错: %v", err)
			if !p.sleep(p.cfg.Stream.ErrorBackoff()) {
				return
			}
			continue
		}

		if !p.sleep(p.cfg.Stream.PollInterval()) {
			return
		}
	}
}

// sleep 可中断的休眠，返回 false 表示收到了停止信号
func (p *Processor) sleep(d time.Duration) bool {
	select {
	case <-p.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

// iterate 单次迭代：刷新队列，处理队首条目
func (p *Processor) iterate(ctx context.Context) error {
	items, err := p.source.ListEligible()
	if err != nil {
		return fmt.Errorf("获取队列卡片失败: %w", err)
	}
	p.pruneAttempts(items)
	if len(items) == 0 {
		return nil
	}

	// 会话未结束时不开始新条目
	switch p.supervisor.Status() {
	case model.SessionIdle, model.SessionStopped:
	default:
		return nil
	}

	p.processItem(ctx, items[0])
	return nil
}

// processItem 处理单个条目：取附件 → 下载校验 → 转码播放 → 上报终态。
// 所有失败都在这里转换为重试或终态决定，不向上传播。
func (p *Processor) processItem(ctx context.Context, item *model.QueueItem) {
	p.setCurrent(item)
	defer p.setCurrent(nil)

	p.log.Infof("🔄 开始处理卡片: %s", item.Name)
	now := time.Now()
	item.LastAttemptAt = &now
	p.report(item, model.ItemStateAcquiring)

	ref, err := p.source.Attachment(item)
	if err != nil {
		p.fail(item, fmt.Errorf("获取附件失败: %w", err))
		return
	}
	if ref == nil {
		// 没有附件是数据问题而不是瞬时故障，直接失败不消耗重试次数
		p.log.Warnf("卡片没有附件: %s", item.Name)
		p.reportTerminal(item, model.ItemStateFailed)
		return
	}

	asset, err := p.acquirer.Acquire(ctx, ref)
	if err != nil {
		if ctx.Err() != nil {
			// 关停中止的下载不算条目的失败，回队列等待下次启动
			p.report(item, model.ItemStateQueued)
			return
		}
		p.fail(item, fmt.Errorf("下载附件失败: %w", err))
		return
	}

	// 下载可能跨过了关停时刻（校验工具不感知取消），
	// 关停之后绝不能再启动新的转码会话
	if ctx.Err() != nil {
		p.report(item, model.ItemStateQueued)
		return
	}

	duration := parseDuration(item.Description)
	p.report(item, model.ItemStateStreaming)

	if err := p.supervisor.Start(asset, duration); err != nil {
		p.fail(item, err)
		return
	}

	// 阻塞直到会话结束：时长到期、进程退出或外部停止
	if err := p.supervisor.Wait(); err != nil {
		p.fail(item, err)
		return
	}

	p.log.Infof("✅ 卡片播放完成: %s", item.Name)
	p.reportTerminal(item, model.ItemStateCompleted)
}

// fail 记一次失败。未达上限时条目回到队列等待重试，达到上限后进入终态。
func (p *Processor) fail(item *model.QueueItem, cause error) {
	p.mu.Lock()
	p.attempts[item.ID]++
	item.Attempts = p.attempts[item.ID]
	p.mu.Unlock()

	p.log.Warnf("❌ 卡片处理失败: %s (第 %d/%d 次), 错误: %v",
		item.Name, item.Attempts, maxAttempts, cause)

	if item.Attempts >= maxAttempts {
		p.log.Errorf("💀 卡片超过最大重试次数，不再重试: %s", item.Name)
		p.reportTerminal(item, model.ItemStateFailed)
		return
	}
	p.report(item, model.ItemStateQueued)
}

// report 把状态变更同步给队列源，失败只记录（看板展示是尽力而为的）
func (p *Processor) report(item *model.QueueItem, state model.ItemState) {
	item.State = state
	if err := p.source.ReportState(item, state); err != nil {
		p.log.Errorf("同步卡片状态失败: %s -> %s: %v", item.Name, state, err)
	}
}

// pruneAttempts 丢弃已不在队列上的条目的重试计数。卡片可能在到达
// 终态之前被手动删除或移走，对应的计数不清理会一直留在内存里。
func (p *Processor) pruneAttempts(items []*model.QueueItem) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.attempts) == 0 {
		return
	}
	present := make(map[string]struct{}, len(items))
	for _, it := range items {
		present[it.ID] = struct{}{}
	}
	if p.current != nil {
		present[p.current.ID] = struct{}{}
	}
	for id := range p.attempts {
		if _, ok := present[id]; !ok {
			delete(p.attempts, id)
		}
	}
}

// reportTerminal 上报终态并丢弃该条目的重试计数，终态只上报一次
func (p *Processor) reportTerminal(item *model.QueueItem, state model.ItemState) {
	p.report(item, state)
	p.mu.Lock()
	delete(p.attempts, item.ID)
	p.mu.Unlock()
}

// runCleanup 执行一次存储回收
func (p *Processor) runCleanup() {
	p.log.Info("开始存储清理")
	freed, err := p.reclaimer.Reclaim()
	if err != nil {
		p.log.Warnf("存储清理未完全达标: %v", err)
		return
	}
	if freed > 0 {
		p.log.Infof("存储清理完成，释放 %d 字节", freed)
	}
}

// Cleanup 手动触发一次存储回收（供管理接口调用）
func (p *Processor) Cleanup() (int64, error) {
	return p.reclaimer.Reclaim()
}

// StopStream 停止当前转码会话（供管理接口调用）。
// 处理循环中等待会话结束的调用会随之返回，当前条目按完成处理。
func (p *Processor) StopStream() error {
	return p.supervisor.Stop()
}

func (p *Processor) setCurrent(item *model.QueueItem) {
	p.mu.Lock()
	p.current = item
	p.mu.Unlock()
}

// Status 协调器状态快照，供状态接口展示
type Status struct {
	Running       bool                `json:"running"`
	CurrentItem   string              `json:"current_item"`
	CurrentItemID string              `json:"current_item_id"`
	MediaPath     string              `json:"media_path"`
	Session       model.SessionStatus `json:"session"`
}

// Status 返回当前处理状态的快照
func (p *Processor) Status() Status {
	p.mu.Lock()
	st := Status{Running: p.running}
	if p.current != nil {
		st.CurrentItem = p.current.Name
		st.CurrentItemID = p.current.ID
	}
	p.mu.Unlock()

	st.MediaPath = p.supervisor.CurrentMediaPath()
	st.Session = p.supervisor.Status()
	return st
}

// parseDuration 从卡片描述解析播放时长（秒）。非纯数字视为不限时长。
func parseDuration(desc string) time.Duration {
	trimmed := strings.TrimSpace(desc)
	if trimmed == "" {
		return 0
	}
	seconds, err := strconv.Atoi(trimmed)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
