package internal

import (
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

type ErrorFormat struct {
	Target   string       `json:"target,omitempty"`
	Message  string       `json:"message,omitempty"`
	Error    string       `json:"error,omitempty"`
	Function string       `json:"function,omitempty"`
	Level    logrus.Level `json:"level,omitempty"`
	Package  string       `json:"package,omitempty"`
}

func (e ErrorFormat) String() string {
	marshal, err := json.Marshal(e)
	if err != nil {
		return ""
	}

	return string(marshal)
}

func (e ErrorFormat) Print(logger *logrus.Logger) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	switch e.Level {
	case logrus.WarnLevel:
		logger.Warn(e.String())
	case logrus.ErrorLevel:
		logger.Error(e.String())
	case logrus.DebugLevel:
		logger.Debug(e.String())
	default:
		logger.Info(e.String())
	}
}

// Describe returns the human-readable message for err. Server command errors
// carry their own message; everything else falls back to err.Error().
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Message != "" {
		return cmdErr.Message
	}

	return err.Error()
}
