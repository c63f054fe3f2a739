package uringrt

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// newDefaultLogger builds the logger used when a Runtime is constructed
// without WithLogger: JSON lines on os.Stderr at informational level,
// via the same logiface+stumpy pairing the teacher's own sql/export
// package uses.
func newDefaultLogger() *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(),
		stumpy.L.WithLevel(logiface.LevelInformational),
	).Logger()
}

// logSpawn, logWake, etc. are small helpers keeping the call sites in
// driver.go/runtime.go/task.go free of repeated field boilerplate.
// Every call is nil-safe: a disabled/nil logger's Builder calls are no-ops
// (see logiface's own nil-safety contract).

func logOpSubmit(l *logiface.Logger[logiface.Event], key uint32, opcode uint8) {
	l.Debug().Uint64(`op_key`, uint64(key)).Uint64(`opcode`, uint64(opcode)).Log(`op submitted`)
}

func logOpComplete(l *logiface.Logger[logiface.Event], key uint32, res int32) {
	l.Debug().Uint64(`op_key`, uint64(key)).Int64(`res`, int64(res)).Log(`op completed`)
}

func logOpCancel(l *logiface.Logger[logiface.Event], key uint32) {
	l.Debug().Uint64(`op_key`, uint64(key)).Log(`op cancelled`)
}

func logOpLeaked(l *logiface.Logger[logiface.Event], key uint32) {
	l.Warning().Uint64(`op_key`, uint64(key)).Log(`pending op garbage collected without Await or Cancel`)
}

func logSpawn(l *logiface.Logger[logiface.Event], key uint32) {
	l.Trace().Uint64(`task_key`, uint64(key)).Log(`task spawned`)
}

func logWake(l *logiface.Logger[logiface.Event], key uint32) {
	l.Trace().Uint64(`task_key`, uint64(key)).Log(`task woken`)
}

func logPark(l *logiface.Logger[logiface.Event]) {
	l.Trace().Log(`worker parked`)
}

func logTaskPanic(l *logiface.Logger[logiface.Event], key uint32, v any) {
	l.Err().Uint64(`task_key`, uint64(key)).Interface(`panic`, v).Log(`task panicked`)
}
