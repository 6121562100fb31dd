package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.AllowAll().Handler)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		r.Route("/rooms", func(r chi.Router) {
			r.Use(httprate.LimitByIP(c.httpRate, time.Minute))
			r.Use(middleware.Timeout(c.requestTimeout))
			r.Post("/", c.createRoom)
			r.Route("/{room-id}", func(r chi.Router) {
				r.Post("/join", c.joinRoom)
				r.Group(func(r chi.Router) {
					r.Use(c.authMw)
					r.Get("/", c.getRoom)
					r.Post("/start", c.startRoom)
					r.Post("/end", c.endRoom)
					r.Put("/playback", c.updatePlayback)
					r.Put("/video", c.changeVideo)
					r.Post("/messages", c.sendMessage)
				})
			})
		})
		r.Route("/ws", func(r chi.Router) {
			r.Route("/room", func(r chi.Router) {
				r.Get("/{room-id}", c.connectRoom)
			})
		})
	})

	return r
}
