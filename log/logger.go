// logger

package log

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var slogger *zap.SugaredLogger
var spanlogger *zap.Logger
var debugLevel uint64
var mux sync.Mutex

func init() {
	logger, _ := zap.NewDevelopment(zap.AddCallerSkip(1))
	defer logger.Sync()
	slogger = logger.Sugar()

	cfg := zap.NewDevelopmentConfig()
	cfg.DisableCaller = true
	spanlogger, _ = cfg.Build()
}

func DebugLog(lvl uint64, msg string, keysAndValues ...interface{}) {
	if debugLevel&lvl == 0 {
		return
	}
	slogger.Infow(msg, keysAndValues...)
}

func InfoLog(msg string, keysAndValues ...interface{}) {
	slogger.Infow(msg, keysAndValues...)
}

func WarnLog(msg string, keysAndValues ...interface{}) {
	slogger.Warnw(msg, keysAndValues...)
}

func FatalLog(msg string, keysAndValues ...interface{}) {
	slogger.Fatalw(msg, keysAndValues...)
}

func SetDebugLevel(lvl uint64) {
	mux.Lock()
	defer mux.Unlock()
	debugLevel |= lvl
}

func ClearDebugLevel(lvl uint64) {
	mux.Lock()
	defer mux.Unlock()
	debugLevel &= ^lvl
}

func GetDebugLevel() uint64 {
	return debugLevel
}

// SetDebugLevelStrs enables the comma separated list of level names.
// Unknown names are ignored.
func SetDebugLevelStrs(list string) {
	strs := strings.Split(list, ",")
	for _, str := range strs {
		val, ok := DebugLevelValues[strings.TrimSpace(str)]
		if ok {
			SetDebugLevel(val)
		}
	}
}

// GetDebugLevelStrs returns the names of the enabled levels.
func GetDebugLevelStrs() []string {
	names := []string{}
	for name, val := range DebugLevelValues {
		if debugLevel&val != 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
