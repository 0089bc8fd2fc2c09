package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"radio-stream/app/config"
	"radio-stream/app/logger"
	"radio-stream/app/model"

	"github.com/gabriel-vasile/mimetype"
)

// Downloader 负责下载并校验卡片附件，产出本地媒体资源
type Downloader struct {
	cfg       *config.Config
	log       *logger.Logger
	client    *http.Client
	validator AudioValidator
}

// NewDownloader 创建附件下载器
func NewDownloader(cfg *config.Config, log *logger.Logger, validator AudioValidator) *Downloader {
	client := &http.Client{
		Timeout: 30 * time.Minute,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// 允许最多 10 次重定向
			if len(via) >= 10 {
				return fmt.Errorf("重定向次数过多")
			}
			return nil
		},
	}

	return &Downloader{
		cfg:       cfg,
		log:       log,
		client:    client,
		validator: validator,
	}
}

// sanitizeFilename 清理附件文件名，主干和扩展名都只保留安全字符
func sanitizeFilename(name string) string {
	ext := filepath.Ext(name)
	stem := sanitizeChars(strings.TrimSuffix(filepath.Base(name), ext))
	if stem == "" {
		stem = "attachment"
	}
	return stem + sanitizeChars(ext)
}

func sanitizeChars(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
			strings.ContainsRune("._- ", r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Acquire 下载附件到媒体目录并校验格式，失败时清理残留文件
func (d *Downloader) Acquire(ctx context.Context, ref *model.AttachmentRef) (*model.MediaAsset, error) {
	filename := sanitizeFilename(ref.Name)
	target := filepath.Join(d.cfg.Storage.MediaDir, filename)

	d.log.Infof("开始下载附件: %s", ref.Name)
	if err := d.download(ctx, ref.URL, target); err != nil {
		return nil, fmt.Errorf("下载附件失败: %w", err)
	}

	asset, err := d.validate(ctx, target)
	if err != nil {
		// 校验失败的文件不保留
		if rmErr := os.Remove(target); rmErr != nil {
			d.log.Warnf("删除无效文件失败: %v", rmErr)
		}
		return nil, err
	}

	d.log.Infof("附件下载并校验成功: %s (%s, %d 字节)", asset.Path, asset.MIME, asset.Size)
	return asset, nil
}

// download 把附件 URL 的内容写入目标路径，先写临时文件再改名
func (d *Downloader) download(ctx context.Context, url, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}

	// Trello 附件下载需要 OAuth 请求头
	req.Header.Set("Authorization", fmt.Sprintf(
		`OAuth oauth_consumer_key="%s", oauth_token="%s"`,
		d.cfg.Trello.APIKey, d.cfg.Trello.Token))
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "identity") // 禁用压缩，避免 Content-Length 不匹配

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("认证失败，请检查 Trello API key 和 token")
		}
		return fmt.Errorf("下载返回状态码 %d", resp.StatusCode)
	}

	tmp := target + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}

	written, err := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("写入文件失败: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("关闭文件失败: %w", closeErr)
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("重命名文件失败: %w", err)
	}

	d.log.Debugf("下载完成: %s (%d 字节)", target, written)
	return nil
}

// validate 探测媒体类型并做格式校验，成功后返回资源描述
func (d *Downloader) validate(ctx context.Context, path string) (*model.MediaAsset, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("探测媒体类型失败: %w", err)
	}

	mime := mtype.String()
	// mimetype 会带上参数（如 charset），只取主类型
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}

	kind, ok := KindForMIME(mime)
	if !ok {
		return nil, fmt.Errorf("不支持的媒体类型: %s", mime)
	}

	// 音频文件做深度校验
	if kind == model.MediaKindAudio && d.validator != nil {
		if err := d.validator.ValidateAudio(ctx, path, mime); err != nil {
			return nil, fmt.Errorf("音频校验失败: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("读取文件信息失败: %w", err)
	}

	return &model.MediaAsset{
		Path: path,
		Kind: kind,
		MIME: mime,
		Size: info.Size(),
	}, nil
}
