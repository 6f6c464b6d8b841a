package app

import (
	"strconv"

	"github.com/rollbar/rollbar-go"
	"go.uber.org/zap"
)

// Reporter forwards server errors to Rollbar and mirrors them in the log.
// With an empty token it only logs.
type Reporter struct {
	logger  *zap.Logger
	enabled bool
}

// NewReporter configures the global rollbar client.
func NewReporter(token, env, host string, logger *zap.Logger) *Reporter {
	enabled := token != ""
	rollbar.SetToken(token)
	rollbar.SetEnvironment(env)
	rollbar.SetServerHost(host)
	rollbar.SetEnabled(enabled)
	return &Reporter{logger: logger, enabled: enabled}
}

// Error reports err with the request context. userID may be zero for
// anonymous requests (webhooks).
func (r *Reporter) Error(err error, userID uint64, extras map[string]interface{}) {
	fields := []zap.Field{zap.Error(err)}
	for k, v := range extras {
		fields = append(fields, zap.Any(k, v))
	}
	if userID != 0 {
		fields = append(fields, zap.Uint64("user_id", userID))
	}
	r.logger.Error("server error", fields...)

	if !r.enabled {
		return
	}
	if userID != 0 {
		rollbar.SetPerson(strconv.FormatUint(userID, 10), "", "")
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Error(err, extras)
}

// Close flushes queued reports.
func (r *Reporter) Close() {
	if r.enabled {
		rollbar.Close()
	}
}
