package main

import (
	cmd "github.com/piiscan/analyzer/cmd/analyzer"
	"github.com/piiscan/analyzer/internal"
)

var log = internal.GetLogger()

func main() {
	log.Info("Starting analyzer")
	cmd.Execute()
}
