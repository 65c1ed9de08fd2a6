package main

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/seanblong/reposearch/internal/ingest"
)

// upgrader mirrors the teacher-adjacent hive project's permissive dev-mode
// CheckOrigin; the API sits behind its own auth middleware so the socket
// itself doesn't need origin checks beyond that.
var progressUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// registerProgressRoute exposes a websocket stream of ProgressEvent frames
// for one ingest job, identified by the job id the /index handler returns.
// One frame per {phase,current,total,percentage} emitted by the
// orchestrator; the socket closes once the job finishes or the broker has
// no more events to deliver.
func registerProgressRoute(mux *http.ServeMux, broker *ingest.Broker, logger zerolog.Logger) {
	mux.HandleFunc("/index/progress", func(w http.ResponseWriter, r *http.Request) {
		jobID := r.URL.Query().Get("job")
		if jobID == "" {
			http.Error(w, "missing job parameter", http.StatusBadRequest)
			return
		}

		conn, err := progressUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("progress websocket upgrade failed")
			return
		}
		defer conn.Close()

		events, unsubscribe := broker.Subscribe(jobID)
		defer unsubscribe()

		for evt := range events {
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(evt); err != nil {
				logger.Warn().Err(err).Str("job", jobID).Msg("progress websocket write failed, closing")
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job complete"))
	})
}
