package streamer

import (
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Process 外部转码进程的句柄，抽象出来便于对监督器做测试
type Process interface {
	Start() error
	Signal(sig os.Signal) error
	Kill() error
	Wait() error
	Stderr() io.Reader
}

// Launcher 创建转码进程
type Launcher interface {
	Launch(name string, args []string) (Process, error)
}

// execLauncher 基于 os/exec 的默认实现
type execLauncher struct{}

// NewExecLauncher 创建基于 os/exec 的进程启动器
func NewExecLauncher() Launcher {
	return &execLauncher{}
}

func (execLauncher) Launch(name string, args []string) (Process, error) {
	cmd := exec.Command(name, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("创建 stderr 管道失败: %w", err)
	}
	return &execProcess{cmd: cmd, stderr: stderr}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stderr io.ReadCloser
}

func (p *execProcess) Start() error {
	return p.cmd.Start()
}

func (p *execProcess) Signal(sig os.Signal) error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Signal(sig)
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Stderr() io.Reader {
	return p.stderr
}
