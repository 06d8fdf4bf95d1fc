package web

import (
	"net/http"

	"github.com/kozaktomas/face-sorter/internal/classifier"
	"github.com/kozaktomas/face-sorter/internal/sorter"
	"github.com/kozaktomas/face-sorter/internal/web/handlers"
	"github.com/kozaktomas/face-sorter/internal/workspace"
)

func (s *Server) setupRoutes(ws *workspace.Manager, detector sorter.FaceDetector, cls *classifier.Classifier) {
	homeHandler := handlers.NewHomeHandler(s.config)
	sortHandler := handlers.NewSortHandler(s.config, ws, detector, cls)
	downloadHandler := handlers.NewDownloadHandler(ws)

	s.router.Get("/", homeHandler.Get)
	s.router.Post("/sort", sortHandler.Sort)
	s.router.Get("/download/{runID}/{bucket}", downloadHandler.Get)

	// Serve bucket contents for previews: /runs/{run_id}/{bucket}/{filename}
	fileServer := http.StripPrefix("/runs/", http.FileServer(http.Dir(ws.Root())))
	s.router.Get("/runs/*", func(w http.ResponseWriter, r *http.Request) {
		fileServer.ServeHTTP(w, r)
	})
}
