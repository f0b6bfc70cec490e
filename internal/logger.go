package internal

import (
	"fmt"
	"io"
	"os"
	"time"

	rotatelogs "github.com/iproj/file-rotatelogs"
	"github.com/sirupsen/logrus"
)

// NewLogger builds the diagnostic logger. Stdout is reserved for the status
// line, so logs go to stderr or, when path is set, to a daily rotated file
// with path kept as a symlink to the current one.
func NewLogger(level string, path string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{})

	lvl := logrus.InfoLevel
	if level != "" {
		var err error
		lvl, err = logrus.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	logger.SetLevel(lvl)

	var out io.Writer = os.Stderr
	if path != "" {
		rl, err := rotatelogs.New(
			path+".%Y%m%d",
			rotatelogs.WithLinkName(path),
			rotatelogs.WithMaxAge(7*24*time.Hour),
			rotatelogs.WithRotationTime(24*time.Hour),
		)
		if err != nil {
			return nil, fmt.Errorf("log file %s: %w", path, err)
		}
		out = rl
	}
	logger.SetOutput(out)

	return logger, nil
}
