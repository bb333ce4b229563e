package models

import (
	"github.com/piiscan/analyzer/config"
)

// AppState is a struct that holds the state of the application
// Use cmd.NewAppState to create a new instance
type AppState struct {
	Engine Engine
	Config *config.Config
}
