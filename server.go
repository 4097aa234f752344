package reactor

import (
	"fmt"
	"time"

	"github.com/emberhttp/reactor/connio"
	"github.com/rs/zerolog"
)

// ServerConfig is the server-scoped configuration visible to, but not
// owned by, the core (spec.md §3 "Server-scoped state").
type ServerConfig struct {
	KeepAliveTimeout time.Duration
	Expires          time.Duration
	ProxyProtocol    bool
	AllowCORS        bool
	MaxFD            int
	ThreadCount      int

	// RespBufInitialSize is how large a freshly activated connection's
	// response buffer starts; RespBufBudget bounds total response-buffer
	// bytes in flight across the server (0 = unbounded).
	RespBufInitialSize int
	RespBufBudget      int64
}

// Server owns the process-wide connection table, the start barrier, the
// worker pool, and configuration (spec.md §3). It is the entry point an
// external acceptor and launcher use (spec.md §6 "To the server control
// plane").
type Server struct {
	cfg     ServerConfig
	table   *Table
	workers []*Worker
	barrier *barrier
	log     zerolog.Logger
	proc    *connio.Processor
	bufs    *respBufPool
}

// NewServer allocates server-scoped state without starting any
// workers; call ThreadInit to do that.
func NewServer(cfg ServerConfig, log zerolog.Logger, proc *connio.Processor) *Server {
	if cfg.MaxFD <= 0 {
		cfg.MaxFD = 1 << 16
	}
	if cfg.ThreadCount <= 0 {
		cfg.ThreadCount = 1
	}
	if proc == nil {
		proc = connio.NewProcessor(nil)
	}
	if cfg.RespBufInitialSize <= 0 {
		cfg.RespBufInitialSize = 4096
	}
	return &Server{
		cfg:   cfg,
		table: NewTable(cfg.MaxFD),
		log:   log,
		proc:  proc,
		bufs:  newRespBufPool(cfg.RespBufBudget),
	}
}

// Table exposes the process-wide connection table, e.g. for an acceptor
// that must initialize table[fd] before pushing.
func (s *Server) Table() *Table { return s.table }

// ThreadInit creates the barrier and every worker, and blocks until all
// of them have rendezvoused (spec.md §6, §4.7). Any failure here is
// fatal per spec.md §7: the caller should abort the process.
func (s *Server) ThreadInit() error {
	s.barrier = newBarrier(s.cfg.ThreadCount + 1)
	s.workers = make([]*Worker, 0, s.cfg.ThreadCount)

	for i := 0; i < s.cfg.ThreadCount; i++ {
		w, err := newWorker(i, s)
		if err != nil {
			s.shutdownStarted(s.workers)
			return fmt.Errorf("reactor: create worker %d: %w", i, err)
		}
		s.workers = append(s.workers, w)
		go w.run()
	}

	s.barrier.wait() // rendezvous with every worker's post-init arrival
	return nil
}

// shutdownStarted is used only if worker creation fails partway through
// ThreadInit, to avoid leaking the workers already started.
func (s *Server) shutdownStarted(workers []*Worker) {
	for _, w := range workers {
		w.closeMultiplexer()
		w.nudgeChan.write()
	}
	for _, w := range workers {
		<-w.exited
	}
}

// AddClient is thread_add_client (spec.md §6): it initializes
// table[fd] for worker ownership and pushes fd onto that worker's SPSC
// queue. The caller (acceptor) must have already placed any connection
// state it wants visible into the slot before calling this, since the
// SPSC push is the publish point (spec.md §5). The only error returned
// is a full queue; a failed nudge after a successful push is logged,
// since fd is already queued for the worker.
func (s *Server) AddClient(workerIdx, fd int) error {
	w := s.workers[workerIdx]
	conn := s.table.At(fd)
	conn.thread = w
	if !w.fdq.push(fd) {
		return fmt.Errorf("reactor: worker %d SPSC queue full, dropping fd %d", workerIdx, fd)
	}
	if err := w.nudgeChan.write(); err != nil {
		logRecoverable(s.log, w.id, "nudge after add client failed", err)
	}
	return nil
}

// WorkerCount reports how many workers were started.
func (s *Server) WorkerCount() int { return len(s.workers) }

// ThreadShutdown tears down every worker per spec.md §4.7: close each
// multiplexer (forcing Wait to fail), nudge each worker so it is not
// stuck on the nudge fd itself, rendezvous on the shared barrier, then
// join.
func (s *Server) ThreadShutdown() {
	for _, w := range s.workers {
		w.closeMultiplexer()
	}
	for _, w := range s.workers {
		if err := w.nudgeChan.write(); err != nil {
			logRecoverable(s.log, w.id, "nudge during shutdown failed", err)
		}
	}

	s.barrier.wait() // rendezvous with every worker's shutdown arrival

	for _, w := range s.workers {
		<-w.exited
	}
	for _, w := range s.workers {
		if err := w.nudgeChan.close(); err != nil {
			logRecoverable(s.log, w.id, "closing nudge channel failed", err)
		}
	}
}
