package streamer

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"radio-stream/app/config"
	"radio-stream/app/logger"
	"radio-stream/app/model"
)

const (
	playlistName   = "playlist.m3u8"
	segmentPattern = "segment_%03d.ts"
)

// buildArgs 根据媒体种类和格式构建 ffmpeg 参数。
// 视频和音频使用不同的码率与编码设置；MP3 的时长元数据不可靠，
// 输入侧加大探测窗口，输出侧用 aresample 防止音画不同步。
func buildArgs(cfg config.StreamConfig, asset *model.MediaAsset, segmentDir string) []string {
	args := []string{"-y"}

	// MP3 输入侧特殊处理
	if asset.Kind == model.MediaKindAudio && asset.MIME == "audio/mpeg" {
		args = append(args,
			"-analyzeduration", "10M",
			"-probesize", "10M",
		)
	}

	args = append(args, "-i", asset.Path)

	switch asset.Kind {
	case model.MediaKindVideo:
		args = append(args,
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-tune", "zerolatency",
			"-profile:v", "main",
			"-level", "3.1",
			"-crf", "23",
			"-bufsize", "8192k",
			"-maxrate", "4096k",
			"-c:a", "aac",
			"-b:a", "128k",
			"-ar", "44100",
		)
	default: // 音频
		if asset.MIME == "audio/mpeg" {
			args = append(args,
				"-c:a", "aac",
				"-b:a", "192k",
				"-ar", "44100",
				"-af", "aresample=async=1000",
				"-ac", "2",
				"-map", "0:a",
			)
		} else {
			args = append(args,
				"-c:a", "aac",
				"-b:a", "192k",
				"-ar", "44100",
			)
		}
	}

	// HLS 输出设置
	args = append(args,
		"-f", "hls",
		"-hls_time", strconv.Itoa(cfg.SegmentTimeSec),
		"-hls_list_size", strconv.Itoa(cfg.PlaylistSize),
		"-hls_flags", "delete_segments+independent_segments+append_list",
		"-hls_segment_type", "mpegts",
		"-hls_init_time", "4",
		"-hls_playlist_type", "event",
		"-hls_segment_filename", filepath.Join(segmentDir, segmentPattern),
		filepath.Join(segmentDir, playlistName),
	)

	return args
}

// CheckFFmpeg 确认 ffmpeg 可用并检查必需的编码器，启动时调用一次
func CheckFFmpeg(log *logger.Logger, ffmpegPath string) error {
	out, err := exec.Command(ffmpegPath, "-version").Output()
	if err != nil {
		return fmt.Errorf("ffmpeg 不可用: %w", err)
	}
	if lines := strings.SplitN(string(out), "\n", 2); len(lines) > 0 {
		log.Infof("使用 %s", strings.TrimSpace(lines[0]))
	}

	codecs, err := exec.Command(ffmpegPath, "-codecs").Output()
	if err != nil {
		return fmt.Errorf("查询 ffmpeg 编码器失败: %w", err)
	}
	for _, codec := range []string{"aac", "libx264"} {
		if !strings.Contains(string(codecs), codec) {
			log.Warnf("编码器 %s 可能不可用", codec)
		}
	}
	return nil
}
