package reactor

import "github.com/rs/zerolog"

// Error taxonomy, per spec.md §7:
//
//   - fatal: failures during thread_init (multiplexer, nudge, SPSC,
//     barrier, thread, event array) abort the process.
//   - connection-scoped: destroy just this connection.
//   - recoverable: logged and the event loop continues.
//   - benign: not logged at all (empty SPSC pop, nudge with no fds).
//
// logRecoverable and logConnScoped centralize the leveled logging so
// every call site agrees on field names (worker, fd).
func logRecoverable(log zerolog.Logger, workerID int, msg string, err error) {
	log.Warn().Int("worker", workerID).Err(err).Msg(msg)
}

func logConnScoped(log zerolog.Logger, workerID, fd int, msg string, err error) {
	if err != nil {
		log.Warn().Int("worker", workerID).Int("fd", fd).Err(err).Msg(msg)
		return
	}
	log.Debug().Int("worker", workerID).Int("fd", fd).Msg(msg)
}
