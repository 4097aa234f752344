// Package reactor implements the per-worker I/O reactor of an HTTP
// server: a fixed pool of event loops, each multiplexing thousands of
// TCP connections and driving one coroutine per connection.
//
// A Server owns a process-wide connection Table and a pool of Workers.
// An external acceptor hands off freshly accepted file descriptors to a
// worker via Server.AddClient; everything past that point — readiness
// multiplexing, coroutine resumption, and idle-timeout eviction — is
// handled in-band by the owning worker's event loop.
package reactor
