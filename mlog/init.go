// Package mlog configures the project-wide logger and its handlers
package mlog

import (
	"sync"

	"github.com/go-playground/log"
	"github.com/go-playground/log/handlers/console"
)

// DefaultTimeFormat is the timestamp format of all log handlers
const DefaultTimeFormat = "2006-01-02 15:04:05"

var (
	// Daemonized disables colored console output, when the process runs
	// detached from a terminal
	Daemonized bool

	// Ensure the console handler is only added once
	once sync.Once

	cLog *console.Console
)

// Init attaches the console handler to the logger
func Init() {
	once.Do(func() {
		cLog = console.New(true)
		cLog.SetTimestampFormat(DefaultTimeFormat)
		cLog.SetDisplayColor(!Daemonized)
		log.AddHandler(cLog, log.AllLevels...)
	})
}
