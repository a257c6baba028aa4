package main

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/mottyeytan/HeadToHead/internal/config"
	"github.com/mottyeytan/HeadToHead/internal/engine"
	"github.com/mottyeytan/HeadToHead/internal/game"
	"github.com/mottyeytan/HeadToHead/internal/httpapi"
	"github.com/mottyeytan/HeadToHead/internal/question"
	"github.com/mottyeytan/HeadToHead/internal/room"
	"github.com/mottyeytan/HeadToHead/internal/ws"
)

func main() {
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	questions, err := question.NewService()
	if err != nil {
		log.Fatal("loading question banks", zap.Error(err))
	}

	ctx := context.Background()
	registry := room.NewRegistry()
	hub := ws.NewHub()
	rules := engine.Rules{QuestionSec: cfg.QuestionSec, AnswerSec: cfg.AnswerSec}

	store := game.NewStore(ctx, hub, clockwork.NewRealClock(), rules, log, func(roomID string) {
		registry.SetStatus(roomID, room.StatusFinished)
	})

	gateway := ws.NewGateway(hub, registry, store, questions, cfg.QuestionCount, log)
	handler := httpapi.SetupRoutes(gateway, registry, questions, cfg.AllowedOrigins)

	log.Info("listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
