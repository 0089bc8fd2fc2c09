package streamer

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"radio-stream/app/config"
	"radio-stream/app/logger"
	"radio-stream/app/model"

	"github.com/fsnotify/fsnotify"
)

// errStopRequested 校验期间收到外部停止请求
var errStopRequested = errors.New("会话已被外部停止")

// Supervisor 转码监督器。同一时刻最多拥有一个外部转码进程，
// 负责启动、校验、监控和停止它。
type Supervisor struct {
	cfg      *config.Config
	log      *logger.Logger
	launcher Launcher

	opMu sync.Mutex // 串行化 Start/Stop
	mu   sync.Mutex // 保护会话指针与状态
	sess *session
}

// session 一次转码会话
type session struct {
	asset     *model.MediaAsset
	proc      Process
	status    model.SessionStatus
	startedAt time.Time

	stop     chan struct{} // 外部停止信号
	stopOnce sync.Once
	exited   chan struct{} // 进程已退出
	exitErr  error
	done     chan struct{} // 会话完全结束，目录已清理
	result   error
}

func (sess *session) requestStop() {
	sess.stopOnce.Do(func() { close(sess.stop) })
}

// New 创建转码监督器
func New(cfg *config.Config, log *logger.Logger, launcher Launcher) *Supervisor {
	return &Supervisor{
		cfg:      cfg,
		log:      log,
		launcher: launcher,
	}
}

// Start 启动一次新的转码会话。已有会话会先被停止（新任务抢占旧任务，
// 输出槽位只有一个）。返回时会话已通过切片校验并处于 Active 状态；
// 校验失败时会话被完整清理并返回错误。
func (s *Supervisor) Start(asset *model.MediaAsset, duration time.Duration) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	// 抢占旧会话
	if err := s.stopLocked(); err != nil {
		return err
	}

	// 上一个会话的切片绝不能被新会话继续提供
	if err := s.cleanSegments(); err != nil {
		return fmt.Errorf("清理切片目录失败: %w", err)
	}

	// 在启动进程之前开始监控切片目录，避免漏掉首个切片的事件
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.Warnf("创建切片目录监控失败，退化为定时检查: %v", err)
		watcher = nil
	} else if err := watcher.Add(s.cfg.Storage.SegmentDir); err != nil {
		s.log.Warnf("监控切片目录失败，退化为定时检查: %v", err)
		watcher.Close()
		watcher = nil
	}

	args := buildArgs(s.cfg.Stream, asset, s.cfg.Storage.SegmentDir)
	s.log.Infof("准备转码 %s 文件: %s", asset.Kind, asset.Path)
	s.log.Debugf("ffmpeg 命令: %s %s", s.cfg.Stream.FFmpegPath, strings.Join(args, " "))

	proc, err := s.launcher.Launch(s.cfg.Stream.FFmpegPath, args)
	if err != nil {
		if watcher != nil {
			watcher.Close()
		}
		return fmt.Errorf("创建转码进程失败: %w", err)
	}
	if err := proc.Start(); err != nil {
		if watcher != nil {
			watcher.Close()
		}
		return fmt.Errorf("启动转码进程失败: %w", err)
	}

	sess := &session{
		asset:     asset,
		proc:      proc,
		status:    model.SessionStarting,
		startedAt: time.Now(),
		stop:      make(chan struct{}),
		exited:    make(chan struct{}),
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.sess = sess
	s.mu.Unlock()

	go s.watchStderr(sess)
	go func() {
		sess.exitErr = proc.Wait()
		close(sess.exited)
	}()

	verified := make(chan error, 1)
	go s.run(sess, duration, watcher, verified)

	if err := <-verified; err != nil {
		<-sess.done
		return err
	}
	return nil
}

// run 驱动会话从校验到结束的完整生命周期
func (s *Supervisor) run(sess *session, duration time.Duration, watcher *fsnotify.Watcher, verified chan<- error) {
	s.setStatus(sess, model.SessionVerifying)
	verr := s.verify(sess, watcher)
	if watcher != nil {
		watcher.Close()
	}

	if verr != nil {
		if errors.Is(verr, errStopRequested) {
			// 校验期间被外部停止，不算启动失败
			s.finish(sess, false, nil)
			verified <- nil
			return
		}
		s.log.Errorf("切片校验失败: %v", verr)
		s.finish(sess, false, fmt.Errorf("转码启动失败: %w", verr))
		verified <- sess.result
		return
	}

	s.setStatus(sess, model.SessionActive)
	verified <- nil

	var timer <-chan time.Time
	if duration > 0 {
		s.log.Infof("本次播放限时 %s", duration)
		t := time.NewTimer(duration)
		defer t.Stop()
		timer = t.C
	}

	procExited := false
	select {
	case <-timer:
		s.log.Infof("播放时长已到，停止会话")
	case <-sess.exited:
		s.log.Infof("转码进程已退出")
		procExited = true
	case <-sess.stop:
		s.log.Infof("收到外部停止请求")
	}

	s.finish(sess, procExited, nil)
}

// verify 等待首个切片出现并校验播放列表，等待时间以配置的上限为界。
// 播放列表可能比首个切片晚出现，所以事件到达后检查失败时继续等待。
func (s *Supervisor) verify(sess *session, watcher *fsnotify.Watcher) error {
	deadline := time.NewTimer(s.cfg.Stream.VerifyDelay())
	defer deadline.Stop()

	var events chan fsnotify.Event
	var watchErrs chan error
	if watcher != nil {
		events = watcher.Events
		watchErrs = watcher.Errors
	}

	for {
		select {
		case ev := <-events:
			if ev.Op&fsnotify.Create != 0 && strings.HasSuffix(ev.Name, ".ts") {
				if err := s.checkSegments(); err == nil {
					return nil
				}
			}
		case err := <-watchErrs:
			s.log.Warnf("切片目录监控出错: %v", err)
		case <-deadline.C:
			return s.checkSegments()
		case <-sess.stop:
			return errStopRequested
		case <-sess.exited:
			return fmt.Errorf("转码进程在校验完成前退出: %v", sess.exitErr)
		}
	}
}

// checkSegments 校验播放列表头和切片文件是否存在
func (s *Supervisor) checkSegments() error {
	playlist := filepath.Join(s.cfg.Storage.SegmentDir, playlistName)
	data, err := os.ReadFile(playlist)
	if err != nil {
		return fmt.Errorf("播放列表不存在: %w", err)
	}
	if !strings.HasPrefix(string(data), "#EXTM3U") {
		return fmt.Errorf("播放列表格式无效")
	}

	segments, err := filepath.Glob(filepath.Join(s.cfg.Storage.SegmentDir, "*.ts"))
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("未生成任何切片")
	}
	return nil
}

// finish 终止进程（如果还活着）、清理切片目录并结束会话。
// procExited 表示进程已自行退出；override 非空时作为会话结果。
func (s *Supervisor) finish(sess *session, procExited bool, override error) {
	s.setStatus(sess, model.SessionStopping)

	var result error
	if procExited {
		// 进程自行退出：异常退出码视为失败
		if sess.exitErr != nil {
			result = fmt.Errorf("转码进程异常退出: %w", sess.exitErr)
		}
	} else {
		// 主动终止：先优雅后强制，退出码不算失败
		if err := sess.proc.Signal(syscall.SIGTERM); err != nil {
			s.log.Warnf("发送终止信号失败: %v", err)
		}
		select {
		case <-sess.exited:
		case <-time.After(s.cfg.Stream.StopGrace()):
			s.log.Warnf("转码进程未在宽限期内退出，强制终止")
			if err := sess.proc.Kill(); err != nil {
				s.log.Errorf("强制终止转码进程失败: %v", err)
			}
			<-sess.exited
		}
	}
	if override != nil {
		result = override
	}
	sess.result = result

	// 不让残留切片漏到下一个会话
	if err := s.cleanSegments(); err != nil {
		s.log.Errorf("清理切片目录失败: %v", err)
	}

	s.setStatus(sess, model.SessionStopped)
	close(sess.done)
}

// watchStderr 逐行读取转码进程的诊断输出。错误行只记告警，
// 不会终止会话——只有进程退出或外部停止才会结束会话。
func (s *Supervisor) watchStderr(sess *session) {
	scanner := bufio.NewScanner(sess.proc.Stderr())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.Contains(strings.ToLower(line), "error") {
			s.log.Warnf("ffmpeg 错误输出: %s", line)
		} else {
			s.log.Debugf("ffmpeg: %s", line)
		}
	}
}

// Wait 阻塞直到当前会话结束，返回会话结果。没有会话时立即返回。
func (s *Supervisor) Wait() error {
	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()

	if sess == nil {
		return nil
	}
	<-sess.done
	return sess.result
}

// Stop 停止当前会话。幂等，没有会话时是空操作。
// 返回后保证进程已退出且切片目录没有残留文件。
func (s *Supervisor) Stop() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.stopLocked()
}

func (s *Supervisor) stopLocked() error {
	s.mu.Lock()
	sess := s.sess
	s.mu.Unlock()

	if sess == nil {
		return nil
	}
	select {
	case <-sess.done:
		return nil
	default:
	}

	sess.requestStop()
	<-sess.done
	return nil
}

// CurrentMediaPath 返回当前会话占用的媒体文件路径，供存储回收器排除。
// 没有活跃会话时返回空字符串。
func (s *Supervisor) CurrentMediaPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil || s.sess.status == model.SessionStopped {
		return ""
	}
	return s.sess.asset.Path
}

// Status 返回当前会话状态，空闲时返回 SessionIdle
func (s *Supervisor) Status() model.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return model.SessionIdle
	}
	return s.sess.status
}

func (s *Supervisor) setStatus(sess *session, status model.SessionStatus) {
	s.mu.Lock()
	sess.status = status
	s.mu.Unlock()
}

// cleanSegments 删除切片目录里的切片和播放列表文件
func (s *Supervisor) cleanSegments() error {
	patterns := []string{"*.ts", "*.m3u8"}
	count := 0
	for _, p := range patterns {
		matches, err := filepath.Glob(filepath.Join(s.cfg.Storage.SegmentDir, p))
		if err != nil {
			return err
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil {
				s.log.Warnf("删除 %s 失败: %v", m, err)
				continue
			}
			count++
		}
	}
	if count > 0 {
		s.log.Debugf("已清理切片目录，删除 %d 个文件", count)
	}
	return nil
}
