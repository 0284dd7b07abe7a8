//go:build yottadb

package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"lang.yottadb.com/go/yottadb"

	ydbbridge "github.com/wippyai/ydb-bridge"
	"github.com/wippyai/ydb-bridge/transcoder"
)

// maxLockWait stands in for "wait forever", which the simple API cannot express.
const maxLockWait = uint64(2147483647) * uint64(time.Millisecond)

// YottaDB drives a real YottaDB engine through its Go wrapper. Data routines map
// onto the simple API; merge, function, procedure and the directory listings go
// through call-in table entries named after the routine. The call-in table is
// located through the ydb_ci environment variable.
type YottaDB struct {
	tptoken uint64
	log     *zap.Logger
	down    bool
}

func NewYottaDB(log *zap.Logger) *YottaDB {
	if log == nil {
		log = Logger()
	}
	return &YottaDB{tptoken: yottadb.NOTTP, log: log}
}

// Initialize forces the wrapper's lazy engine initialization.
func (y *YottaDB) Initialize() error {
	if y.down {
		return fmt.Errorf("engine cannot be reinitialized after shutdown")
	}
	release, err := yottadb.ValE(y.tptoken, nil, "$ZYRELEASE", nil)
	if err != nil {
		return err
	}
	y.log.Debug("yottadb initialized", zap.String("release", release))
	return nil
}

func (y *YottaDB) Shutdown() error {
	if y.down {
		return nil
	}
	y.down = true
	return yottadb.Exit()
}

func (y *YottaDB) Invoke(c *ydbbridge.Call) int {
	out, err := y.route(c)
	if err != nil {
		return status(c, err)
	}
	if !c.SetResult(out) {
		return fail(c, codeResultTooLarge, "%%YDB-E-INVSTRLEN, Invalid string length %d: max %d", len(out), cap(c.Result))
	}
	return ydbbridge.StatusOK
}

func (y *YottaDB) Transact(c *ydbbridge.Call, body func() error) int {
	outer := y.tptoken
	var bodyErr error
	err := yottadb.TpE(y.tptoken, nil, func(tpt uint64, _ *yottadb.BufferT) int32 {
		y.tptoken = tpt
		defer func() { y.tptoken = outer }()
		if bodyErr = body(); bodyErr != nil {
			return int32(yottadb.YDB_TP_ROLLBACK)
		}
		return int32(yottadb.YDB_OK)
	}, "", nil)
	if bodyErr != nil {
		fail(c, codeTPRollback, "%%YDB-E-TPROLLBACK, transaction rolled back: %v", bodyErr)
		return ydbbridge.StatusTPRollback
	}
	if err != nil {
		return status(c, err)
	}
	return ydbbridge.StatusOK
}

func (y *YottaDB) route(c *ydbbridge.Call) ([]byte, error) {
	tp := y.tptoken
	switch c.Routine {
	case ydbbridge.RoutineVersion:
		v, err := yottadb.ValE(tp, nil, "$ZYRELEASE", nil)
		return []byte(v), err
	case ydbbridge.RoutineMerge, ydbbridge.RoutineFunction, ydbbridge.RoutineProcedure,
		ydbbridge.RoutineGlobalDirectory, ydbbridge.RoutineLocalDirectory:
		args := make([]interface{}, len(c.Args))
		for i, a := range c.Args {
			args[i] = a
		}
		v, err := yottadb.CallMT(tp, nil, uint32(cap(c.Result)), string(c.Routine), args...)
		return []byte(v), err
	case ydbbridge.RoutineUnlock:
		if arg(c, 0) == "" {
			return nil, yottadb.LockE(tp, nil, 0)
		}
	case ydbbridge.RoutineKill:
		if arg(c, 0) == "" {
			return nil, yottadb.DeleteExclE(tp, nil, nil)
		}
	}

	name := arg(c, 0)
	subs, err := wireSubscripts(arg(c, 1))
	if err != nil {
		return nil, err
	}

	switch c.Routine {
	case ydbbridge.RoutineData:
		d, err := yottadb.DataE(tp, nil, name, subs)
		return definedJSON(int(d)), err
	case ydbbridge.RoutineGet:
		v, err := yottadb.ValE(tp, nil, name, subs)
		return []byte(v), err
	case ydbbridge.RoutineSet:
		value, ok := scalarArg(arg(c, 2))
		if !ok {
			return nil, fmt.Errorf("%%YDB-E-INVARG, invalid data for %s", name)
		}
		return nil, yottadb.SetValE(tp, nil, value, name, subs)
	case ydbbridge.RoutineKill:
		kind := yottadb.YDB_DEL_TREE
		if arg(c, 2) == "1" {
			kind = yottadb.YDB_DEL_NODE
		}
		return nil, yottadb.DeleteE(tp, nil, kind, name, subs)
	case ydbbridge.RoutineOrder:
		v, err := yottadb.SubNextE(tp, nil, name, subs)
		return []byte(v), err
	case ydbbridge.RoutinePrevious:
		v, err := yottadb.SubPrevE(tp, nil, name, subs)
		return []byte(v), err
	case ydbbridge.RoutineNextNode, ydbbridge.RoutinePreviousNode:
		var next []string
		if c.Routine == ydbbridge.RoutineNextNode {
			next, err = yottadb.NodeNextE(tp, nil, name, subs)
		} else {
			next, err = yottadb.NodePrevE(tp, nil, name, subs)
		}
		if err != nil {
			return nil, err
		}
		v, err := yottadb.ValE(tp, nil, name, next)
		if err != nil {
			return nil, err
		}
		out := make([]subscript, len(next))
		for i, s := range next {
			out[i] = subscript{text: s}
		}
		return nodeJSON(out, []byte(v)), nil
	case ydbbridge.RoutineIncrement:
		by := "1"
		if raw := arg(c, 2); raw != "" {
			if text, ok := scalarArg(raw); ok {
				by = text
			}
		}
		v, err := yottadb.IncrE(tp, nil, by, name, subs)
		return []byte(v), err
	case ydbbridge.RoutineLock:
		wait := maxLockWait
		if raw := arg(c, 2); raw != "" {
			secs, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%%YDB-E-INVARG, invalid lock timeout %q", raw)
			}
			if secs >= 0 {
				wait = uint64(secs * float64(time.Second))
			}
		}
		if err := yottadb.LockIncrE(tp, nil, wait, name, subs); err != nil {
			return []byte("0"), err
		}
		return []byte("1"), nil
	case ydbbridge.RoutineUnlock:
		return nil, yottadb.LockDecrE(tp, nil, name, subs)
	}
	return nil, fmt.Errorf("%%YDB-E-INVARG, unknown routine %q", c.Routine)
}

func wireSubscripts(wire string) ([]string, error) {
	toks, err := transcoder.DecodeTokens(wire)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(toks))
	for i, tok := range toks {
		out[i] = tok.Text
	}
	return out, nil
}

// status converts a wrapper error into a status and diagnostic.
func status(c *ydbbridge.Call, err error) int {
	code := yottadb.ErrorCode(err)
	if code == 0 {
		return fail(c, codeInvalidArgument, "%s", strings.TrimSpace(err.Error()))
	}
	if code == yottadb.YDB_LOCK_TIMEOUT {
		return ydbbridge.StatusLockTimeout
	}
	abs := code
	if abs < 0 {
		abs = -abs
	}
	c.SetDiagnostic(abs, "%s", err.Error())
	return code
}
