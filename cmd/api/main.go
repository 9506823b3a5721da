package main

import (
	"log"
	"os"

	"github.com/taskmaster/gtd/cmd/api/commands"
)

// @title GTD Work Items API
// @version 1.0
// @description Work items sorted into GTD categories, with per-user task contexts.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
