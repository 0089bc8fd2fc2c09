package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"radio-stream/app/logger"
)

// ErrOverBudget 清理结束后仍超出存储预算（受保护文件无法删除时出现）。
// 调用方只记录，等待下一个清理周期，不立即重试。
var ErrOverBudget = errors.New("清理后仍超出存储预算")

// Reclaimer 存储回收器，把媒体目录的总字节数控制在预算之内。
// 正在播放的文件通过 protected 回调实时查询，绝不删除。
type Reclaimer struct {
	log       *logger.Logger
	dir       string
	budget    int64
	protected func() string // 返回当前会话占用的文件路径，可为 nil
}

// New 创建存储回收器
func New(log *logger.Logger, dir string, budget int64, protected func() string) *Reclaimer {
	return &Reclaimer{
		log:       log,
		dir:       dir,
		budget:    budget,
		protected: protected,
	}
}

// entry 枚举时捕获的文件信息。大小在枚举时固定下来，
// 删除过程中不重新读取，避免与并发下载竞争。
type entry struct {
	path    string
	size    int64
	modTime time.Time
}

// Reclaim 执行一次回收。总量不超预算时为空操作；超出时按修改时间
// 从旧到新删除，跳过受保护文件，单个文件删除失败只记录并继续。
// 返回释放的字节数。
func (r *Reclaimer) Reclaim() (int64, error) {
	entries, total, err := r.enumerate()
	if err != nil {
		return 0, err
	}

	if total <= r.budget {
		return 0, nil
	}

	r.log.Infof("媒体目录占用 %d 字节，超出预算 %d 字节，开始清理", total, r.budget)

	// 从最旧的文件开始删除
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].modTime.Before(entries[j].modTime)
	})

	var freed int64
	for _, e := range entries {
		if total <= r.budget {
			break
		}
		// 实时查询当前播放的文件，窗口期内选中的资源同样受保护
		if r.protected != nil && e.path == r.protected() {
			r.log.Debugf("跳过正在播放的文件: %s", e.path)
			continue
		}
		if err := os.Remove(e.path); err != nil {
			r.log.Warnf("删除 %s 失败: %v", e.path, err)
			continue
		}
		total -= e.size
		freed += e.size
		r.log.Infof("已删除旧文件: %s (%d 字节)", e.path, e.size)
	}

	if total > r.budget {
		r.log.Warnf("清理结束后仍超出预算: 占用 %d 字节, 预算 %d 字节", total, r.budget)
		return freed, ErrOverBudget
	}
	return freed, nil
}

// enumerate 枚举媒体目录下的普通文件，捕获大小和修改时间
func (r *Reclaimer) enumerate() ([]entry, int64, error) {
	dirEntries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, 0, err
	}

	entries := make([]entry, 0, len(dirEntries))
	var total int64
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			r.log.Warnf("读取 %s 的文件信息失败: %v", de.Name(), err)
			continue
		}
		e := entry{
			path:    filepath.Join(r.dir, de.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		}
		entries = append(entries, e)
		total += e.size
	}
	return entries, total, nil
}
