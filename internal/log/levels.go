package log

import (
	"os"
	"strings"

	"github.com/iancoleman/strcase"
	"go.uber.org/zap/zapcore"
)

const levelEnv = "LOG_LEVEL"

// lookupEnv treats blank values as unset.
var lookupEnv = func(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func levelFromEnv(key string) (zapcore.Level, bool) {
	v, ok := lookupEnv(key)
	if !ok {
		return zapcore.InfoLevel, false
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(v))
	if err != nil {
		return zapcore.InfoLevel, false
	}
	return lvl, true
}

// moduleLevel resolves the level of a module path, most specific first:
// LOG_LEVEL__SIGNAL__CONN_MGR, then LOG_LEVEL__SIGNAL, then LOG_LEVEL.
// Module names are converted to screaming snake case.
func moduleLevel(path []string) zapcore.Level {
	parts := make([]string, len(path))
	for i, name := range path {
		parts[i] = strcase.ToScreamingSnake(name)
	}
	for i := len(parts); i > 0; i-- {
		if lvl, ok := levelFromEnv(levelEnv + "__" + strings.Join(parts[:i], "__")); ok {
			return lvl
		}
	}
	if lvl, ok := levelFromEnv(levelEnv); ok {
		return lvl
	}
	return zapcore.InfoLevel
}
