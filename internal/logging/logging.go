package logging

import (
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup configures the standard logrus logger.
// level may be any logrus level name (default "info").
// format may be "json" or "text" (default "text").
func Setup(out io.Writer, level, format string) {
	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = log.InfoLevel
	}

	var formatter log.Formatter
	if strings.EqualFold(format, "json") {
		formatter = &log.JSONFormatter{}
	} else {
		formatter = &log.TextFormatter{FullTimestamp: true}
	}

	log.SetOutput(out)
	log.SetLevel(lvl)
	log.SetFormatter(formatter)
}
