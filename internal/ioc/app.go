package ioc

import (
	"context"

	notificationevt "gitee.com/flycash/notification-dispatch/internal/event/notification"
	"gitee.com/flycash/notification-dispatch/internal/pkg/timeutil"
	"gitee.com/flycash/notification-dispatch/internal/repository"
	"gitee.com/flycash/notification-dispatch/internal/repository/dao"
	"gitee.com/flycash/notification-dispatch/internal/service/channel"
	"gitee.com/flycash/notification-dispatch/internal/service/condition"
	"gitee.com/flycash/notification-dispatch/internal/service/contact"
	"gitee.com/flycash/notification-dispatch/internal/service/dispatch"
	"gitee.com/flycash/notification-dispatch/internal/service/keyword"
	"gitee.com/flycash/notification-dispatch/internal/service/publisher"
	"gitee.com/flycash/notification-dispatch/internal/service/schedule"
	"github.com/gotomicro/ego/core/econf"
	"github.com/prometheus/client_golang/prometheus"
)

// App 聚合全部后台组件
type App struct {
	Tasks []Task
	Queue *publisher.PublishQueue
}

// Start 启动投递队列和全部后台任务，立即返回
func (a *App) Start(ctx context.Context) {
	a.Queue.Start(ctx)
	for i := range a.Tasks {
		go a.Tasks[i].Start(ctx)
	}
}

type dispatchConfig struct {
	DefaultCountryCode string          `yaml:"defaultCountryCode"`
	EmailBatchSize     int             `yaml:"emailBatchSize"`
	SmsBatchSize       int             `yaml:"smsBatchSize"`
	SendWindow         schedule.Config `yaml:"sendWindow"`
}

// InitApp 按配置装配整个调度流水线
func InitApp() *App {
	var cfg dispatchConfig
	if err := econf.UnmarshalKey("dispatch", &cfg); err != nil {
		panic(err)
	}

	db := InitDB()
	redisClient := InitRedisClient()
	dclient := InitDistributedLock(redisClient)
	kafkaProducer := InitKafkaProducer()
	nextSeq := InitSeqGenerator()

	clock := timeutil.NewSystemClock()
	idGen := timeutil.NewUUIDGenerator()

	orderRepo := repository.NewOrderRepository(dao.NewOrderDAO(db, nextSeq))
	emailRepo := repository.NewEmailNotificationRepository(dao.NewEmailNotificationDAO(db, nextSeq))
	smsRepo := repository.NewSmsNotificationRepository(dao.NewSmsNotificationDAO(db, nextSeq))

	profileClient := InitProfileClient()
	resolver := contact.NewResolver(profileClient, InitAuthorizationClient(), cfg.DefaultCountryCode)
	engine := keyword.NewEngine(profileClient)
	evaluator := condition.NewEvaluator(InitConditionClient())

	scheduler, err := schedule.NewSendWindowScheduler(cfg.SendWindow, clock)
	if err != nil {
		panic(err)
	}

	emailProducer, err := notificationevt.NewEmailNotificationEventProducer(kafkaProducer)
	if err != nil {
		panic(err)
	}
	smsProducer, err := notificationevt.NewSmsNotificationEventProducer(kafkaProducer)
	if err != nil {
		panic(err)
	}

	emailSvc := channel.NewEmailService(emailRepo, resolver, engine, emailProducer, clock, idGen, cfg.EmailBatchSize)
	smsSvc := channel.NewSmsService(smsRepo, resolver, engine, smsProducer, scheduler, clock, idGen, cfg.SmsBatchSize)
	composite := channel.NewCompositeProcessor(emailSvc, smsSvc, resolver, idGen)

	queue := publisher.NewPublishQueue(emailSvc, smsSvc, prometheus.DefaultRegisterer)
	orchestrator := dispatch.NewOrchestrator(evaluator, emailSvc, smsSvc, composite, orderRepo, queue)

	return &App{
		Tasks: InitTasks(
			dispatch.NewOrderScanTask(dclient, orderRepo, orchestrator, clock),
			dispatch.NewExpirySweepTask(dclient, emailSvc, smsSvc),
		),
		Queue: queue,
	}
}
