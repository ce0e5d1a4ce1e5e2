// Package term detects whether stdout/stderr are attached to a terminal and,
// if so, how many colors it supports, so the CLI layer can downgrade ANSI
// escapes on redirected output. Uses github.com/mattn/go-isatty for the
// terminal check.
package term

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type Level int

const (
	LevelNone Level = iota
	Level256
	Level16M
)

var (
	StderrLevel Level
	StdoutLevel Level
)

func detectLevel() Level {
	if os.Getenv("NO_COLOR") != "" {
		return LevelNone
	}
	colorTerm := os.Getenv("COLORTERM")
	termEnv := os.Getenv("TERM")
	if strings.Contains(colorTerm, "truecolor") || strings.Contains(colorTerm, "24bit") {
		return Level16M
	}
	if strings.Contains(termEnv, "256color") {
		return Level256
	}
	return LevelNone
}

func init() {
	level := detectLevel()
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		StderrLevel = level
	}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		StdoutLevel = level
	}
}
