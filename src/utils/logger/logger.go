package logger

import (
	"os"

	"github.com/mysomeid/sponsor/src/utils/config"

	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger

func init() {
	logger = logrus.New()
}

func Init(config *config.Config) (err error) {
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		return
	}
	logger.SetLevel(level)
	logger.SetOutput(os.Stdout)

	formatter := &logrus.TextFormatter{
		FullTimestamp: true,
	}
	if !config.IsDevelopment {
		formatter.DisableColors = true
	}
	logger.SetFormatter(formatter)

	return nil
}

func L() *logrus.Logger {
	return logger
}

func NewSublogger(tag string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{"module": "sponsor." + tag})
}
