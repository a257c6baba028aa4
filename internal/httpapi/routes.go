package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/mottyeytan/HeadToHead/internal/question"
	"github.com/mottyeytan/HeadToHead/internal/room"
	"github.com/mottyeytan/HeadToHead/internal/ws"
)

func SetupRoutes(gw *ws.Gateway, registry *room.Registry, questions *question.Service, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler)

	r.Post("/rooms", CreateRoom(registry))
	r.Get("/categories", Categories(questions))
	r.Get("/healthz", Healthz)
	r.Get("/ws", gw.Handler())
	return r
}
