package main

import (
	"context"
	"emoai/app/client/nvidia"
	"emoai/app/config"
	"emoai/app/server"
	"emoai/app/service/chat"
	"emoai/app/service/emolog"
	"emoai/app/service/emotion"
	"emoai/app/service/followup"
	"emoai/app/service/meta"
	"emoai/app/service/persona"
	"emoai/app/service/rag"
	"emoai/app/service/state"
	"emoai/app/util/mylog"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, nvidia.NewClient)
	do.Provide(di, state.New)
	do.Provide(di, emotion.New)
	do.Provide(di, meta.New)
	do.Provide(di, persona.New)
	do.Provide(di, rag.New)
	do.Provide(di, emolog.New)
	do.Provide(di, followup.New)
	do.Provide(di, chat.New)
	do.Provide(di, server.New)

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	go do.MustInvoke[*followup.Service](di).Run(appCtx)

	go do.MustInvoke[*server.Service](di).Run(appCtx)

	<-appCtx.Done()
}
