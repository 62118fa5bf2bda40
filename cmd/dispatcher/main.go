package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"gitee.com/flycash/notification-dispatch/internal/ioc"
	"github.com/gotomicro/ego/core/econf"
	"github.com/gotomicro/ego/core/elog"
	"gopkg.in/yaml.v2"
)

func main() {
	cfgPath := flag.String("config", "config/config.yaml", "配置文件路径")
	flag.Parse()

	f, err := os.Open(*cfgPath)
	if err != nil {
		elog.Panic("打开配置文件失败", elog.String("path", *cfgPath), elog.FieldErr(err))
	}
	if err := econf.LoadFromReader(f, yaml.Unmarshal); err != nil {
		elog.Panic("加载配置失败", elog.FieldErr(err))
	}
	_ = f.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := ioc.InitApp()
	app.Start(ctx)
	elog.Info("调度服务已启动")

	<-ctx.Done()
	elog.Info("收到退出信号，停止调度服务")
}
