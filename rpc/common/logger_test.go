package common

import (
	"testing"

	"github.com/lni/dragonboat/v4/logger"
)

func TestInitLoggersTwice(t *testing.T) {
	InitLoggers("error")
	InitLoggers("debug")
	InitLoggers("bogus")

	logger.GetLogger("store").Infof("loggers usable after repeated init")
}
