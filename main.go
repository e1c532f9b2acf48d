package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/aqez/undaunted/cmd"
	"github.com/aqez/undaunted/internal/utils"
	"gopkg.in/natefinch/lumberjack.v2"
)

var version = "0.0.1"

func main() {
	home, err := utils.Home()
	if err != nil {
		log.Fatalf("Failed to get undaunted home directory: %v", err)
	}
	logPath := filepath.Join(home, "undaunted.log")
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(&lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    1, // megabytes
		MaxBackups: 3,
		MaxAge:     28,    //days
		Compress:   false, // disabled by default
	})

	if err := cmd.Execute(version); err != nil {
		os.Exit(1)
	}
}
