package streamer

import (
	"path/filepath"
	"strings"
	"testing"

	"radio-stream/app/config"
	"radio-stream/app/model"
)

func testStreamConfig() config.StreamConfig {
	return config.StreamConfig{
		FFmpegPath:      "ffmpeg",
		PollIntervalSec: 1,
		ErrorBackoffSec: 1,
		VerifyDelaySec:  1,
		StopGraceSec:    1,
		SegmentTimeSec:  6,
		PlaylistSize:    15,
	}
}

func argsContain(args []string, sub ...string) bool {
	joined := " " + strings.Join(args, " ") + " "
	for _, s := range sub {
		if !strings.Contains(joined, " "+s+" ") {
			return false
		}
	}
	return true
}

func TestBuildArgsVideo(t *testing.T) {
	asset := &model.MediaAsset{Path: "/media/movie.mp4", Kind: model.MediaKindVideo, MIME: "video/mp4"}
	args := buildArgs(testStreamConfig(), asset, "/segments")

	if !argsContain(args, "-c:v", "libx264", "-preset", "veryfast", "-crf", "23") {
		t.Fatalf("视频转码参数缺失: %v", args)
	}
	if argsContain(args, "-analyzeduration") {
		t.Fatalf("视频输入不应带 MP3 探测参数: %v", args)
	}
	if !argsContain(args, "-hls_time", "6", "-hls_list_size", "15") {
		t.Fatalf("HLS 参数缺失: %v", args)
	}
	if args[len(args)-1] != filepath.Join("/segments", playlistName) {
		t.Fatalf("最后一个参数应是播放列表路径: %v", args)
	}
}

func TestBuildArgsMP3(t *testing.T) {
	asset := &model.MediaAsset{Path: "/media/song.mp3", Kind: model.MediaKindAudio, MIME: "audio/mpeg"}
	args := buildArgs(testStreamConfig(), asset, "/segments")

	// MP3 时长元数据不可靠，输入输出两侧都要有补救参数
	if !argsContain(args, "-analyzeduration", "10M", "-probesize", "10M") {
		t.Fatalf("MP3 输入侧探测参数缺失: %v", args)
	}
	if !argsContain(args, "-af", "aresample=async=1000") {
		t.Fatalf("MP3 输出侧重采样参数缺失: %v", args)
	}
	if argsContain(args, "libx264") {
		t.Fatalf("音频转码不应带视频编码器: %v", args)
	}
}

func TestBuildArgsGenericAudio(t *testing.T) {
	asset := &model.MediaAsset{Path: "/media/song.ogg", Kind: model.MediaKindAudio, MIME: "audio/ogg"}
	args := buildArgs(testStreamConfig(), asset, "/segments")

	if argsContain(args, "-analyzeduration") || argsContain(args, "aresample=async=1000") {
		t.Fatalf("非 MP3 音频不应带 MP3 补救参数: %v", args)
	}
	if !argsContain(args, "-c:a", "aac", "-b:a", "192k") {
		t.Fatalf("音频编码参数缺失: %v", args)
	}
}
