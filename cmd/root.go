package cmd

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	coreconfig "github.com/zapdigest/ingest/core/config"
	coreDB "github.com/zapdigest/ingest/core/database"
	domainAccount "github.com/zapdigest/ingest/domains/account"
	domainAlert "github.com/zapdigest/ingest/domains/alert"
	domainGroup "github.com/zapdigest/ingest/domains/group"
	domainInstance "github.com/zapdigest/ingest/domains/instance"
	domainManager "github.com/zapdigest/ingest/domains/manager"
	domainMessage "github.com/zapdigest/ingest/domains/message"
	domainSystem "github.com/zapdigest/ingest/domains/system"
	domainWebhook "github.com/zapdigest/ingest/domains/webhook"
	"github.com/zapdigest/ingest/infrastructure/evolution"
	"github.com/zapdigest/ingest/infrastructure/notify"
	"github.com/zapdigest/ingest/pkg/msgworker"
	"github.com/zapdigest/ingest/pkg/utils"
	"github.com/zapdigest/ingest/repository"
	"github.com/zapdigest/ingest/usecase"
)

var (
	// Repositories
	accountRepo  domainAccount.IAccountRepository
	instanceRepo domainInstance.IInstanceRepository
	groupRepo    domainGroup.IGroupRepository
	messageRepo  domainMessage.IMessageRepository
	systemRepo   domainSystem.ISystemRepository

	// Usecases
	webhookUsecase domainWebhook.IWebhookUsecase
	managerUsecase domainManager.IManagerUsecase
	alertUsecase   domainAlert.IAlertUsecase

	// Infrastructure
	providerClient *evolution.Client
	eventPool      *msgworker.EventWorkerPool
	poolCancel     context.CancelFunc

	// Flag overrides, applied on top of the environment.
	flagPort          string
	flagDebug         bool
	flagWebhookSecret string
	flagWorkers       int
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "WhatsApp group message ingestion service",
	Long: `Receives provider webhook events, admits group messages under
tenant plan quotas, persists them and fans out keyword alerts.`,
}

func init() {
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()

	cobra.OnInitialize(initApp)
}

func initFlags() {
	rootCmd.PersistentFlags().StringVarP(
		&flagPort,
		"port", "p",
		"",
		"change port number with --port <number> | example: --port=8080",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&flagDebug,
		"debug", "d",
		false,
		"displaying debug log with --debug <true/false> | example: --debug=true",
	)
	rootCmd.PersistentFlags().StringVarP(
		&flagWebhookSecret,
		"webhook-secret", "",
		"",
		`shared secret the provider must present --webhook-secret <string> | example: --webhook-secret="super-secret-key"`,
	)
	rootCmd.PersistentFlags().IntVarP(
		&flagWorkers,
		"workers", "",
		0,
		"event worker pool size --workers <number> | example: --workers=40",
	)
}

// initApp resolves configuration, opens the database and wires every layer.
func initApp() {
	cfg, err := coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	applyFlagOverrides(cfg)

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	db, err := coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect database: %v", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}

	accountRepo = repository.NewAccountGormRepository(db)
	instanceRepo = repository.NewInstanceGormRepository(db)
	groupRepo = repository.NewGroupGormRepository(db)
	messageRepo = repository.NewMessageGormRepository(db)
	systemRepo = repository.NewSystemGormRepository(db)
	keywordRepo := repository.NewKeywordGormRepository(db)

	providerClient = evolution.NewClient(cfg.Provider)

	alertUsecase = usecase.NewAlertService(
		keywordRepo,
		accountRepo,
		messageRepo,
		notify.NewEmailNotifier(cfg.Notify),
		notify.NewSMSNotifier(cfg.Notify),
	)
	webhookUsecase = usecase.NewWebhookService(
		cfg,
		accountRepo,
		instanceRepo,
		groupRepo,
		messageRepo,
		systemRepo,
		alertUsecase,
	)
	managerUsecase = usecase.NewManagerService(
		cfg,
		providerClient,
		instanceRepo,
		groupRepo,
		webhookUsecase,
	)

	var poolCtx context.Context
	poolCtx, poolCancel = context.WithCancel(context.Background())
	eventPool = msgworker.NewEventWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
	eventPool.Start(poolCtx)
}

// applyFlagOverrides layers CLI flags and viper env keys over the loaded
// config. Flags win over environment.
func applyFlagOverrides(cfg *coreconfig.Config) {
	if v := viper.GetString("app_port"); v != "" {
		cfg.App.Port = v
	}
	if flagPort != "" {
		cfg.App.Port = flagPort
	}
	if viper.GetBool("app_debug") {
		cfg.App.Debug = true
	}
	if flagDebug {
		cfg.App.Debug = true
	}
	if flagWebhookSecret != "" {
		cfg.Webhook.AuthToken = flagWebhookSecret
	}
	if flagWorkers > 0 {
		cfg.WorkerPool.Size = flagWorkers
	}
}

// StopApp releases long-lived resources during shutdown.
func StopApp() {
	if eventPool != nil {
		eventPool.Stop()
	}
	if poolCancel != nil {
		poolCancel()
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalf("Command execution failed: %v", err)
	}
}
