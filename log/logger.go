package log

import "context"

// Logger is the structured logger handed to services and servers.
// Fields are merged into the entry in the order they are given.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	Fatal(ctx context.Context, msg string, err error, fields ...map[string]interface{}) // Exits the process
	With(fields map[string]interface{}) Logger                                         // Returns a new logger with added structured fields
}
