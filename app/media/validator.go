package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"radio-stream/app/logger"
)

// AudioValidator 音频文件校验接口
type AudioValidator interface {
	ValidateAudio(ctx context.Context, path, mime string) error
}

// FFprobeValidator 使用 ffprobe 对音频文件做深度校验
type FFprobeValidator struct {
	log        *logger.Logger
	ffprobe    string
	ffmpegPath string
}

// NewValidator 创建 ffprobe 校验器。ffmpegPath 用于 MP3 损坏检测。
func NewValidator(log *logger.Logger, ffmpegPath string) *FFprobeValidator {
	return &FFprobeValidator{
		log:        log,
		ffprobe:    "ffprobe",
		ffmpegPath: ffmpegPath,
	}
}

// probeResult ffprobe 的 JSON 输出
type probeResult struct {
	Streams []struct {
		CodecName  string `json:"codec_name"`
		Channels   int    `json:"channels"`
		SampleRate string `json:"sample_rate"`
	} `json:"streams"`
}

// ValidateAudio 用 ffprobe 检查音频流是否存在；MP3 再做一次解码检测，
// 因为 VBR 文件常带着损坏的帧却能通过 MIME 探测。
// 校验可能耗时较长，关停时随 ctx 取消。
func (v *FFprobeValidator) ValidateAudio(ctx context.Context, path, mime string) error {
	out, err := exec.CommandContext(ctx, v.ffprobe,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_name,channels,sample_rate",
		"-of", "json",
		path,
	).Output()
	if err != nil {
		return fmt.Errorf("ffprobe 校验失败: %w", err)
	}

	var result probeResult
	if err := json.Unmarshal(out, &result); err != nil {
		return fmt.Errorf("解析 ffprobe 输出失败: %w", err)
	}
	if len(result.Streams) == 0 {
		return fmt.Errorf("文件中没有音频流")
	}

	// MP3 额外检查常见的损坏特征
	if mime == "audio/mpeg" {
		check := exec.CommandContext(ctx, v.ffmpegPath, "-v", "error", "-i", path, "-f", "null", "-")
		output, _ := check.CombinedOutput()
		if strings.Contains(string(output), "Invalid data found when processing input") {
			return fmt.Errorf("MP3 文件已损坏")
		}
	}

	v.log.Debugf("音频文件校验通过: %s (codec=%s)", path, result.Streams[0].CodecName)
	return nil
}
