//go:build yottadb

package runtime

import (
	"go.uber.org/zap"

	ydbbridge "github.com/wippyai/ydb-bridge"
	"github.com/wippyai/ydb-bridge/engine"
)

func newYottaDB(log *zap.Logger) (ydbbridge.Engine, error) {
	return engine.NewYottaDB(log), nil
}
