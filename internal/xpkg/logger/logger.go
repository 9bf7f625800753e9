package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// masked keys never reach the log sink in clear text
var maskedKeys = map[string]bool{
	"customer_phone": true,
	"token":          true,
	"password":       true,
}

// Logger is an action-tagged structured logger.
//
//	mylog.Action("db_connected").Info("Successful database connection")
type Logger interface {
	Action(action string) Logger
	With(kv ...any) Logger
	WithGroup(name string) Logger
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, err error, kv ...any)
	Sync() error
}

type zapLogger struct {
	z *zap.SugaredLogger
}

// New builds a JSON logger writing to stdout for the given service.
func New(service, level string) Logger {
	return NewWithWriter(service, level, os.Stdout)
}

// NewWithWriter builds a JSON logger writing to w.
func NewWithWriter(service, level string, w io.Writer) Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		parseLevel(level),
	)

	hostname, _ := os.Hostname()
	z := zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service", service), zap.String("hostname", hostname)),
	)
	return &zapLogger{z: z.Sugar()}
}

// Nop discards everything. Handy in tests.
func Nop() Logger {
	return &zapLogger{z: zap.NewNop().Sugar()}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *zapLogger) Action(action string) Logger {
	return &zapLogger{z: l.z.With("action", action)}
}

func (l *zapLogger) With(kv ...any) Logger {
	return &zapLogger{z: l.z.With(mask(kv)...)}
}

func (l *zapLogger) WithGroup(name string) Logger {
	return &zapLogger{z: l.z.Desugar().With(zap.Namespace(name)).Sugar()}
}

func (l *zapLogger) Debug(msg string, kv ...any) { l.z.Debugw(msg, mask(kv)...) }
func (l *zapLogger) Info(msg string, kv ...any)  { l.z.Infow(msg, mask(kv)...) }
func (l *zapLogger) Warn(msg string, kv ...any)  { l.z.Warnw(msg, mask(kv)...) }

func (l *zapLogger) Error(msg string, err error, kv ...any) {
	if err != nil {
		kv = append(kv, "error", err.Error())
	}
	l.z.Errorw(msg, mask(kv)...)
}

func (l *zapLogger) Sync() error {
	return l.z.Sync()
}

func mask(kv []any) []any {
	if len(kv) == 0 {
		return kv
	}
	out := make([]any, len(kv))
	copy(out, kv)
	for i := 0; i+1 < len(out); i += 2 {
		key, ok := out[i].(string)
		if ok && maskedKeys[key] {
			out[i+1] = "****"
		}
	}
	return out
}
