package main

import (
	"argus/cmd/cmd"
	"argus/internal/logger"
)

func main() {
	logger.Init()
	cmd.Execute()
}
