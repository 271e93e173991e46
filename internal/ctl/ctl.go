package ctl

import (
	"fmt"
	"os"
	"time"
)

// Config carries the connection settings shared by every subcommand.
type Config struct {
	Host    string
	Timeout time.Duration
	LogLvl  string
}

func defaultConfig() *Config {
	return &Config{
		Host:    envStr("INFERD_HOST", "http://127.0.0.1:8000"),
		Timeout: 5 * time.Minute,
		LogLvl:  envStr("INFERCTL_LOG_LEVEL", "info"),
	}
}

// MainWithArgs is a testable variant of Main that accepts args explicitly.
// It returns an exit code (0 for success, non-zero on error).
func MainWithArgs(args []string) int {
	root := buildRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	return 0
}

// Main returns an exit code for use by cmd/inferctl.
func Main() int { return MainWithArgs(os.Args[1:]) }
