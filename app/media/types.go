package media

import (
	"radio-stream/app/model"
)

// supportedFormats 支持的媒体格式及其 MIME 类型
var supportedFormats = map[model.MediaKind][]string{
	model.MediaKindVideo: {
		"video/mp4", "video/mpeg", "video/avi", "video/x-msvideo",
		"video/x-matroska", "video/webm", "video/quicktime", "video/x-flv",
	},
	model.MediaKindAudio: {
		"audio/mpeg", "audio/wav", "audio/x-wav", "audio/aac", "audio/ogg",
		"audio/flac", "audio/x-m4a", "audio/mp4",
	},
}

// KindForMIME 根据 MIME 类型判断媒体种类，不支持的类型返回 false
func KindForMIME(mime string) (model.MediaKind, bool) {
	for kind, formats := range supportedFormats {
		for _, f := range formats {
			if f == mime {
				return kind, true
			}
		}
	}
	return "", false
}

// IsSupported 判断 MIME 类型是否在支持列表中
func IsSupported(mime string) bool {
	_, ok := KindForMIME(mime)
	return ok
}
