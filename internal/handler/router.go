package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	askHandler "github.com/sqltavern/askdb/internal/handler/ask"
	chatsHandler "github.com/sqltavern/askdb/internal/handler/chats"
	sourcesHandler "github.com/sqltavern/askdb/internal/handler/sources"
	middlewarePkg "github.com/sqltavern/askdb/internal/middleware"
	askService "github.com/sqltavern/askdb/internal/service/ask"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(askSvc *askService.Service, dataRoot string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		askHandler.New(askSvc).RegisterRoutes(api)
		chatsHandler.New(askSvc).RegisterRoutes(api)
		sourcesHandler.New(dataRoot).RegisterRoutes(api)
	})

	return r
}
