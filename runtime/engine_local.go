//go:build !yottadb

package runtime

import (
	"go.uber.org/zap"

	ydbbridge "github.com/wippyai/ydb-bridge"
	"github.com/wippyai/ydb-bridge/errors"
)

func newYottaDB(*zap.Logger) (ydbbridge.Engine, error) {
	return nil, errors.New(errors.PhaseConfig, errors.KindUnsupported).
		Path("engine").
		Detail("this binary was built without the yottadb tag").
		Build()
}
