package model

// SessionStatus 转码会话状态。全局最多只存在一个会话。
type SessionStatus string

const (
	SessionIdle      SessionStatus = "idle" // 监督器空闲，没有会话
	SessionStarting  SessionStatus = "starting"
	SessionVerifying SessionStatus = "verifying"
	SessionActive    SessionStatus = "active"
	SessionStopping  SessionStatus = "stopping"
	SessionStopped   SessionStatus = "stopped"
)
