package transport

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Logged logs every request with its outcome and duration
func Logged(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, req *Request) (*Response, error) {
			start := time.Now()
			resp, err := next.Do(ctx, req)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("url", req.URL),
				zap.Duration("duration", time.Since(start)),
			}
			if resp != nil {
				fields = append(fields, zap.Int("status", resp.StatusCode), zap.Int("bytes", len(resp.Body)))
			}

			switch {
			case err == nil:
				logger.Debug("request", fields...)
			case IsRemote(err):
				logger.Warn("request rejected", append(fields, zap.Error(err))...)
			default:
				logger.Error("request failed", append(fields, zap.Error(err))...)
			}
			return resp, err
		})
	}
}
