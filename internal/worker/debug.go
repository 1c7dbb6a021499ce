package worker

import (
	"os"

	"go.uber.org/zap"
)

var workerDebugEnabled = os.Getenv("FABRICGUIDE_WORKER_DEBUG") == "1"

func debugLog(logger *zap.Logger, msg string, fields ...zap.Field) {
	if workerDebugEnabled && logger != nil {
		logger.Info("[worker] "+msg, fields...)
	}
}
