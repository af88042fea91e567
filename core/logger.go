package core

// Logger is the app-wide logging contract. Implementations live in
// services/logger.
//
// expected args: error, map[string]interface{}, Identity
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
