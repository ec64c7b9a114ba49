package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.AllowAll().Handler)
	r.Use(c.camelizeResponseMw)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Route("/rooms", func(r chi.Router) {
			r.Post("/", c.createRoom)
			r.Route("/{room-id}", func(r chi.Router) {
				r.Get("/", c.getRoom)
				r.Post("/leave", c.leaveRoom)
				r.Get("/jam", c.getJamState)
				r.Route("/queue", func(r chi.Router) {
					r.Get("/", c.getQueue)
					r.Post("/", c.addTrack)
					r.Delete("/", c.removeTrack)
					r.Put("/", c.replaceQueue)
					r.Post("/next", c.insertNextTrack)
					r.Post("/reorder", c.reorderQueue)
					r.Post("/clear", c.clearQueue)
					r.Put("/status", c.updateTrackStatus)
					r.Get("/current", c.getCurrentIndex)
					r.Put("/current", c.setCurrentIndex)
				})
			})
		})

		r.Route("/tracks", func(r chi.Router) {
			r.Get("/", c.getAllTrackData)
			r.Route("/{track-id}", func(r chi.Router) {
				r.Get("/", c.getTrackData)
				r.Get("/delay", c.getTrackDelay)
				r.Put("/delay", c.setTrackDelay)
			})
		})

		r.Get("/ws", c.serveWs)
	})

	return r
}
