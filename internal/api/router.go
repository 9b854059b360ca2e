package api

import (
	"fmt"
	"net/http"

	_ "github.com/rohits-web03/lockbox/docs"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/rohits-web03/lockbox/internal/api/handlers"
	"github.com/rohits-web03/lockbox/internal/api/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

func SetupRouter(files *handlers.FileHandler, corsOptions cors.Options, log zerolog.Logger) http.Handler {
	mainMux := http.NewServeMux()
	c := cors.New(corsOptions)

	mainMux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	mainMux.HandleFunc("/docs/", httpSwagger.WrapHandler)

	mainMux.HandleFunc("POST /upload", files.Upload)
	mainMux.HandleFunc("POST /lock", files.Lock)
	mainMux.HandleFunc("POST /unlock", files.Unlock)
	mainMux.HandleFunc("POST /overwrite", files.Overwrite)
	mainMux.HandleFunc("GET /reconcile", files.Reconcile)

	log.Debug().Msg("router initialized")
	handler := c.Handler(mainMux)
	handler = middleware.Logger(log)(handler)
	return handler
}
