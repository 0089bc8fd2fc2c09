package model

import (
	"time"
)

// ItemState 队列条目状态
type ItemState string

const (
	ItemStateQueued    ItemState = "queued"
	ItemStateAcquiring ItemState = "acquiring"
	ItemStateStreaming ItemState = "streaming"
	ItemStateCompleted ItemState = "completed"
	ItemStateFailed    ItemState = "failed"
)

// QueueItem 队列条目模型，对应看板上的一张卡片。
// 卡片的归属由队列源（看板）决定，处理中的内存状态由协调器维护。
type QueueItem struct {
	ID            string
	Name          string
	Description   string // 可选的播放时长（秒），非数字则忽略
	State         ItemState
	Attempts      int
	LastAttemptAt *time.Time
}

// AttachmentRef 卡片附件引用
type AttachmentRef struct {
	ID   string
	Name string
	URL  string
}
