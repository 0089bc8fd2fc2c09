package model

// MediaKind 媒体种类
type MediaKind string

const (
	MediaKindVideo MediaKind = "video"
	MediaKindAudio MediaKind = "audio"
)

// MediaAsset 本地媒体资源。下载并校验成功后创建，此后不再修改；
// 仅由存储回收器删除（正在播放的资源除外）。
type MediaAsset struct {
	Path string    // 本地文件路径
	Kind MediaKind // video 或 audio
	MIME string    // 探测到的 MIME 类型
	Size int64     // 字节大小
}
