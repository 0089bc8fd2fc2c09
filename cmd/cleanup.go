package cmd

import (
	"radio-stream/app/config"
	"radio-stream/app/logger"
	"radio-stream/app/storage"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "手动执行一次存储清理",
	Long:  "按配置的存储预算清理媒体目录，服务未运行时没有文件受保护",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		log := logger.New(cfg.Log)
		defer log.Sync()

		reclaimer := storage.New(log, cfg.Storage.MediaDir,
			cfg.Storage.MaxStorageBytes(), nil)

		freed, err := reclaimer.Reclaim()
		if err != nil {
			log.Fatalf("存储清理失败: %v", err)
		}
		log.Infof("存储清理完成，释放 %d 字节", freed)
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}
