package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"radio-stream/app/config"
	"radio-stream/app/logger"
	"radio-stream/app/media"
	"radio-stream/app/server"
	"radio-stream/app/service"
	"radio-stream/app/storage"
	"radio-stream/app/streamer"
	"radio-stream/app/trello"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动流媒体服务",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		// 创建日志器
		log := logger.New(cfg.Log)
		defer log.Sync()

		// 确认 ffmpeg 可用
		if err := streamer.CheckFFmpeg(log, cfg.Stream.FFmpegPath); err != nil {
			log.Fatalf("ffmpeg 检查失败: %v", err)
		}

		// 准备媒体目录和切片目录
		for _, dir := range []string{cfg.Storage.MediaDir, cfg.Storage.SegmentDir} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				log.Fatalf("创建目录 %s 失败: %v", dir, err)
			}
		}

		// 初始化队列源（Trello 看板）
		trelloClient := trello.New(cfg, log)
		if err := trelloClient.Bootstrap(); err != nil {
			log.Fatalf("初始化 Trello 失败: %v", err)
		}

		// 组装各组件
		validator := media.NewValidator(log, cfg.Stream.FFmpegPath)
		downloader := media.NewDownloader(cfg, log, validator)
		supervisor := streamer.New(cfg, log, streamer.NewExecLauncher())
		reclaimer := storage.New(log, cfg.Storage.MediaDir,
			cfg.Storage.MaxStorageBytes(), supervisor.CurrentMediaPath)
		processor := service.NewProcessor(cfg, log, trelloClient, downloader, supervisor, reclaimer)

		srv := server.New(cfg, log, processor)

		// 启动队列处理
		processor.Start()

		// 在协程中启动服务器
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("启动服务器失败: %v", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("收到关闭信号，正在关闭服务器...")

		// 先停队列处理（会强制结束当前会话），再关 HTTP 服务
		processor.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorf("服务器关闭失败: %v", err)
		}
		log.Info("服务器已退出")
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
