package main

import (
	"fmt"
	"io"
	"strings"

	izerolog "github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/rs/zerolog"
)

func newLogger(format string, level logiface.Level, w io.Writer) (*logiface.Logger[logiface.Event], error) {
	switch format {
	case "stumpy":
		return stumpy.L.New(
			stumpy.L.WithStumpy(stumpy.WithWriter(w)),
			stumpy.L.WithLevel(level),
		).Logger(), nil
	case "zerolog":
		return izerolog.L.New(
			izerolog.L.WithZerolog(zerolog.New(w).With().Timestamp().Logger()),
			izerolog.L.WithLevel(level),
		).Logger(), nil
	default:
		return nil, fmt.Errorf("unknown log format: %q", format)
	}
}

func parseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(s) {
	case "disabled", "off", "none":
		return logiface.LevelDisabled, nil
	case "emerg", "emergency":
		return logiface.LevelEmergency, nil
	case "alert":
		return logiface.LevelAlert, nil
	case "crit", "critical":
		return logiface.LevelCritical, nil
	case "err", "error":
		return logiface.LevelError, nil
	case "warning", "warn":
		return logiface.LevelWarning, nil
	case "notice":
		return logiface.LevelNotice, nil
	case "info", "informational":
		return logiface.LevelInformational, nil
	case "debug":
		return logiface.LevelDebug, nil
	case "trace":
		return logiface.LevelTrace, nil
	default:
		return logiface.LevelDisabled, fmt.Errorf("unknown log level: %q", s)
	}
}
