// Command reactord is the launcher binary: it parses flags/env into a
// reactor.ServerConfig, starts the worker pool, accepts TCP connections,
// and hands each one off to a worker via reactor.Server.AddClient.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/emberhttp/reactor"
	"github.com/emberhttp/reactor/connio"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "reactord",
		Short: "per-worker I/O reactor HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}

	flags := cmd.Flags()
	flags.String("listen", ":8080", "address to accept connections on")
	flags.Duration("keepalive-timeout", 5*time.Second, "idle connection lifetime")
	flags.Duration("expires", time.Hour, "Expires header horizon")
	flags.Bool("proxy-protocol", false, "accept PROXY protocol v1 headers")
	flags.Bool("allow-cors", false, "inject permissive CORS headers")
	flags.Int("max-fd", 1<<16, "connection table size (highest fd + 1)")
	flags.Int("threads", 1, "worker count")
	flags.Int("resp-buf-initial-size", 4096, "initial per-connection response buffer size")
	flags.Int64("resp-buf-budget", 0, "server-wide response buffer byte budget (0 = unbounded)")
	flags.String("log-level", "info", "zerolog level (debug, info, warn, error)")

	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}
	v.SetEnvPrefix("REACTORD")
	v.AutomaticEnv()

	return cmd
}

func run(v *viper.Viper) error {
	level, err := zerolog.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("reactord: parse log level: %w", err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	cfg := reactor.ServerConfig{
		KeepAliveTimeout:   v.GetDuration("keepalive-timeout"),
		Expires:            v.GetDuration("expires"),
		ProxyProtocol:      v.GetBool("proxy-protocol"),
		AllowCORS:          v.GetBool("allow-cors"),
		MaxFD:              v.GetInt("max-fd"),
		ThreadCount:        v.GetInt("threads"),
		RespBufInitialSize: v.GetInt("resp-buf-initial-size"),
		RespBufBudget:      v.GetInt64("resp-buf-budget"),
	}

	srv := reactor.NewServer(cfg, log, connio.NewProcessor(nil))
	if err := srv.ThreadInit(); err != nil {
		return fmt.Errorf("reactord: thread_init: %w", err)
	}
	log.Info().Int("threads", srv.WorkerCount()).Msg("worker pool started")

	ln, err := net.Listen("tcp", v.GetString("listen"))
	if err != nil {
		srv.ThreadShutdown()
		return fmt.Errorf("reactord: listen: %w", err)
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("accepting connections")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	shutdown := make(chan struct{})
	go func() {
		<-sig
		close(shutdown)
		ln.Close()
	}()

	acceptLoop(log, srv, ln)

	<-shutdown
	log.Info().Msg("shutting down worker pool")
	srv.ThreadShutdown()
	return nil
}

// acceptLoop is the external acceptor spec.md §1 treats as out of scope:
// it round-robins freshly accepted sockets across workers via AddClient,
// after duplicating each connection's fd and setting it non-blocking so
// the worker's multiplexer — not the Go runtime netpoller — owns it,
// the same dup-then-watch handoff gaio's watcher uses when it takes
// ownership of a net.Conn.
func acceptLoop(log zerolog.Logger, srv *reactor.Server, ln net.Listener) {
	var next uint64
	for {
		conn, err := ln.Accept()
		if err != nil {
			return // listener closed: shutdown in progress
		}

		fd, err := dupFD(conn)
		conn.Close()
		if err != nil {
			log.Warn().Err(err).Msg("duplicate accepted fd failed")
			continue
		}

		worker := int(atomic.AddUint64(&next, 1)-1) % srv.WorkerCount()
		if err := srv.AddClient(worker, fd); err != nil {
			log.Warn().Int("worker", worker).Err(err).Msg("add client failed")
			unix.Close(fd)
		}
	}
}

// dupFD extracts conn's underlying file descriptor, duplicates it so it
// outlives conn.Close, and arms it for non-blocking I/O.
func dupFD(conn net.Conn) (int, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1, fmt.Errorf("reactord: connection does not expose a raw fd")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1, err
	}

	var dupfd int
	var dupErr error
	ctlErr := raw.Control(func(fd uintptr) {
		dupfd, dupErr = unix.Dup(int(fd))
	})
	if ctlErr != nil {
		return -1, ctlErr
	}
	if dupErr != nil {
		return -1, dupErr
	}
	if err := unix.SetNonblock(dupfd, true); err != nil {
		unix.Close(dupfd)
		return -1, err
	}
	return dupfd, nil
}
