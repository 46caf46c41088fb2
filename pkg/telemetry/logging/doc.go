// Package logging builds the process logger on top of log/slog.
//
// # Usage
//
//	logger, err := logging.Setup(cfg.Telemetry.Logging, os.Stdout)
//	if err != nil {
//		return err
//	}
//
//	ctx = logging.WithConnID(ctx, uuid.NewString())
//	logger.InfoContext(ctx, "request classified", "path", logging.RedactPath(path))
//	// {"msg":"request classified","path":"...","conn_id":"..."}
//
// Records logged through a *Context method pick up the connection id,
// admin request id, route and active trace/span ids automatically.
//
// Request paths from the game client carry account credentials as query
// parameters. RedactPath masks them before a path is logged.
package logging
