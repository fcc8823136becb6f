package log

import (
	"encoding/json"
	//nolint:depguard
	stdlog "log"
	"os"
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Fatal reports a startup failure before any Logger exists.
func Fatal(v ...any) {
	stdlog.Fatal(v...)
}

// Logger is a zap logger that derives named module loggers. Each module
// resolves its own level from the environment, see moduleLevel.
type Logger struct {
	*zap.Logger
	path  []string
	child func(path []string) *zap.Logger
}

func (l *Logger) Module(name string) *Logger {
	path := append(slices.Clone(l.path), name)
	return &Logger{
		Logger: l.child(path),
		path:   path,
		child:  l.child,
	}
}

// With returns a logger carrying fields, modules derived from it keep them.
func (l *Logger) With(fields ...Field) *Logger {
	parent := l.child
	return &Logger{
		Logger: l.Logger.With(fields...),
		path:   l.path,
		child: func(path []string) *zap.Logger {
			return parent(path).With(fields...)
		},
	}
}

// NewLogger logs to stdout with the console encoder, or builds the zap JSON
// config in configFile when set.
func NewLogger(configFile string) (*Logger, error) {
	if configFile == "" {
		return newConsole(zapcore.Lock(os.Stdout)), nil
	}

	bs, err := os.ReadFile(configFile)
	if err != nil {
		return nil, err
	}
	var cfg zap.Config
	if err := json.Unmarshal(bs, &cfg); err != nil {
		return nil, err
	}
	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return byName(base.Named("main"), base), nil
}

func consoleEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.LevelKey = "level"
	cfg.NameKey = "logger"
	cfg.MessageKey = "msg"
	cfg.CallerKey = zapcore.OmitKey
	cfg.FunctionKey = zapcore.OmitKey
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	cfg.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("[" + name + "]")
	}
	return zapcore.NewConsoleEncoder(cfg)
}

func newConsole(out zapcore.WriteSyncer) *Logger {
	enc := consoleEncoder()
	build := func(lvl zapcore.Level) *zap.Logger {
		return zap.New(zapcore.NewCore(enc, out, lvl), zap.AddStacktrace(zapcore.FatalLevel))
	}

	root := zapcore.InfoLevel
	if lvl, ok := levelFromEnv(levelEnv); ok {
		root = lvl
	}
	return &Logger{
		Logger: build(root).Named("main"),
		child: func(path []string) *zap.Logger {
			return build(moduleLevel(path)).Named(strings.Join(path, "."))
		},
	}
}

// byName derives modules by name only, every module shares base's level.
func byName(root, base *zap.Logger) *Logger {
	return &Logger{
		Logger: root,
		child: func(path []string) *zap.Logger {
			return base.Named(strings.Join(path, "."))
		},
	}
}

// NewTest writes through t.Log at debug level.
func NewTest(t testing.TB) *Logger {
	base := zaptest.NewLogger(t)
	return byName(base, base)
}

func NewNop() *Logger {
	base := zap.NewNop()
	return byName(base, base)
}
