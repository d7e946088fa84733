// Package applogger provides the process-wide logrus logger.
package applogger

import (
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once   sync.Once
	logger *logrus.Logger
)

// Get returns the shared logger, configuring it on first use from APP_ENV
// (JSON output in prod) and LOG_LEVEL (info by default).
func Get() *logrus.Logger {
	once.Do(func() {
		logger = New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	})
	return logger
}

// New builds a logger for the given environment and level name.
func New(env, level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	if strings.EqualFold(env, "prod") || strings.EqualFold(env, "production") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}
