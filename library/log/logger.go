// Package log holds the shared cms-admin logger.
package log

import (
	"strings"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
)

// Name prefixes every entry of the shared logger.
const Name = "cms-admin"

var Logger logSDK.Logger

func init() {
	var err error
	if Logger, err = logSDK.NewConsoleWithName(Name, logSDK.LevelInfo); err != nil {
		logSDK.Shared.Panic("new logger", zap.Error(err))
	}
}

// SetLevel changes the level of the shared logger. An empty level keeps info.
func SetLevel(level string) error {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}
	if err := Logger.ChangeLevel(logSDK.Level(level)); err != nil {
		return errors.Wrapf(err, "change log level to %q", level)
	}
	return nil
}

// Quiet keeps only errors, for screens that console output would tear.
func Quiet() error {
	return SetLevel("error")
}
