package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(c.requestIdMw)
	r.Use(c.corsMw)

	r.HandleFunc("/sync", c.sync)
	r.Get("/api/videos", c.listVideos)
	r.Get("/videos/{name}", c.serveVideo)

	return r
}
