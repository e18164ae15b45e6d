// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/pdiddy/deep-research/internal/fetchweb"
	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/pipeline"
	"github.com/pdiddy/deep-research/internal/websearch"
	"github.com/pdiddy/deep-research/pkg/types"
)

const wsWriteWait = 10 * time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the research pipeline over WebSocket",
	Long: `Serve listens for WebSocket connections on /research. Each connection
carries one run: the client sends a single JSON research request, the server
streams back every pipeline event as a JSON message, and the connection
closes after the terminal event. Closing the connection cancels the run.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	cfg := buildConfig()
	if cfg.LLM.APIKey == "" || cfg.Search.APIKey == "" {
		return fmt.Errorf("serve requires both completion and search API keys (see .secrets/)")
	}

	deps := pipeline.Deps{
		LLM:     llm.NewOpenAI(cfg.LLM),
		Search:  websearch.NewTavily(cfg.Search),
		Fetcher: fetchweb.NewHTTP(cfg.Fetch),
		Log:     os.Stderr,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/research", func(w http.ResponseWriter, r *http.Request) {
		handleResearch(w, r, cfg, deps)
	})

	fmt.Fprintf(os.Stderr, "listening on %s\n", addr)
	return http.ListenAndServe(addr, mux)
}

// handleResearch runs one pipeline execution per connection. The producer
// side of the event channel never sees the socket; closing the connection
// cancels the run's context and the channel drains.
func handleResearch(w http.ResponseWriter, r *http.Request, cfg types.PipelineConfig, deps pipeline.Deps) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var req types.ResearchRequest
	if err := conn.ReadJSON(&req); err != nil {
		return
	}
	if req.Question == "" {
		writeEvent(conn, types.ErrorEv(types.ErrInternal, "empty research question", "", false))
		return
	}

	// A client that goes away mid-run must cancel the pipeline; reads fail
	// as soon as the peer closes.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events, _ := pipeline.Execute(ctx, req, cfg, deps)
	for ev := range events {
		if err := writeEvent(conn, ev); err != nil {
			cancel()
			// Keep draining so the producer can finish and close.
			for range events {
			}
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev types.PipelineEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}
