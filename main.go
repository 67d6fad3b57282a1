package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegramsupportbot/pkg/bot"
	"telegramsupportbot/pkg/bot/telegramadapter"
	"telegramsupportbot/pkg/config"
	"telegramsupportbot/pkg/filestore"
	"telegramsupportbot/pkg/fsm"
	"telegramsupportbot/pkg/fsm/steps"
	"telegramsupportbot/pkg/mailer"
	"telegramsupportbot/pkg/ops"
	"telegramsupportbot/pkg/state"
	"telegramsupportbot/pkg/storage"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, relying on process environment")
	}

	cfgPath := "support_config.yaml"
	if err := config.LoadConfig(cfgPath); err != nil {
		log.Panicf("Failed to load configuration: %v", err)
	}
	loadedConfig := config.GetConfig()

	secrets, err := config.LoadSecretsFromEnv()
	if err != nil {
		log.Panicf("Failed to read secrets: %v", err)
	}

	botClient, err := bot.NewClient(secrets.BotToken)
	if err != nil {
		log.Panicf("Failed to initialize bot client: %v", err)
	}
	log.Printf("Authorized on account %s", botClient.Self.UserName)

	botPort, err := telegramadapter.New(botClient, log.Default())
	if err != nil {
		log.Panicf("Failed to create telegram adapter: %v", err)
	}

	requestStore, err := storage.Open(secrets.Postgres.DSN())
	if err != nil {
		log.Panicf("Failed to open database: %v", err)
	}

	var mailSender fsm.MailSender
	if loadedConfig.Email.Host != "" {
		m, err := mailer.New(mailer.Config{
			Host:       loadedConfig.Email.Host,
			Port:       loadedConfig.Email.Port,
			User:       loadedConfig.Email.User,
			Password:   secrets.EmailPassword,
			Recipients: loadedConfig.Email.Recipients,
		})
		if err != nil {
			log.Panicf("Failed to configure mailer: %v", err)
		}
		mailSender = m
	} else {
		log.Println("Email delivery disabled: no SMTP host configured.")
	}

	files, err := filestore.New(botPort, loadedConfig.Files.TempDir)
	if err != nil {
		log.Panicf("Failed to prepare attachment storage: %v", err)
	}

	steps.RegisterBuiltins(steps.Deps{
		Files:            files,
		ConsentPolicyURL: loadedConfig.Consent.PolicyURL,
	})

	fsmCreator := fsm.NewFSMCreator(loadedConfig.Consent.Enabled)
	stateStore := state.NewStore(fsmCreator)
	engine := fsm.NewEngine(botPort, loadedConfig, stateStore, requestStore, mailSender)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Println("Shutdown signal received...")
		cancel()
	}()

	if loadedConfig.Ops.Addr != "" {
		go func() {
			log.Printf("Ops endpoints listening on %s", loadedConfig.Ops.Addr)
			if err := ops.Serve(ctx, loadedConfig.Ops.Addr, requestStore); err != nil {
				log.Printf("Ops server stopped: %v", err)
			}
		}()
	}

	engine.BroadcastToAdmins(ctx, "Бот запущен")

	updates := botClient.GetUpdatesChan(60)
	log.Println("Starting update processing...")

	for {
		select {
		case update := <-updates:
			if update.UpdateID == 0 {
				continue
			}
			go engine.HandleUpdate(ctx, update)
		case <-ctx.Done():
			log.Println("Stopping update processing loop...")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			engine.BroadcastToAdmins(shutdownCtx, "Бот остановлен")
			shutdownCancel()
			return
		}
	}
}
