// Command server runs the automation engine's HTTP API.
package main

import (
	"log"

	"github.com/mbflow/automation-engine/pkg/server"
)

func main() {
	srv, err := server.New()
	if err != nil {
		log.Fatalf("failed to initialize server: %v", err)
	}

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
