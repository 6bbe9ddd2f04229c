// Package ingest implements Component F: the log-push TCP listener.
// Grounded on the teacher's accept/dispatch shape (its worker-pool job
// submission API) generalized from job-queue consumption to
// per-connection network sessions.
package ingest

import (
	"bufio"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/seungwoo7050/logcrafter/internal/admission"
	"github.com/seungwoo7050/logcrafter/internal/logbuffer"
	"github.com/seungwoo7050/logcrafter/internal/logging"
	"github.com/seungwoo7050/logcrafter/internal/persistence"
	"github.com/seungwoo7050/logcrafter/internal/workerpool"
	"github.com/seungwoo7050/logcrafter/pkg/logentry"
)

const maxLineBytes = logentry.MaxMessageBytes

// IRCPublisher is the narrow surface IngestServer needs from the IRC
// gateway; satisfied by *irc.Server, kept as an interface here to
// avoid an ingest->irc import cycle.
type IRCPublisher interface {
	PublishLog(message string, timestamp time.Time)
}

// Config configures the ingest listener per spec.md §6.
type Config struct {
	Port          int
	SelectTimeout time.Duration
}

// Server is Component F.
type Server struct {
	cfg     Config
	buffer  *logbuffer.Buffer
	pool    *workerpool.Pool
	persist *persistence.Manager
	ircPub  IRCPublisher
	log     logging.Logger

	listener net.Listener
	running  atomic.Bool

	activeClients   atomic.Int64
	rejectedClients atomic.Uint64
}

// NewServer builds an ingest server. persist and ircPub may be nil if
// those subsystems are disabled.
func NewServer(cfg Config, buffer *logbuffer.Buffer, pool *workerpool.Pool, persist *persistence.Manager, ircPub IRCPublisher, log logging.Logger) *Server {
	return &Server{cfg: cfg, buffer: buffer, pool: pool, persist: persist, ircPub: ircPub, log: log}
}

// Start binds the listener and launches the accept loop goroutine.
// gate is the admission counter shared with the query server so max_clients
// bounds their combined session count.
func (s *Server) Start(gate *admission.Counter) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("ingest: bind port %d: %w", s.cfg.Port, err)
	}
	s.listener = ln
	s.running.Store(true)
	go s.acceptLoop(gate)
	return nil
}

func (s *Server) acceptLoop(gate *admission.Counter) {
	for s.running.Load() {
		if tcpLn, ok := s.listener.(*net.TCPListener); ok {
			tcpLn.SetDeadline(time.Now().Add(s.cfg.SelectTimeout))
		}
		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if !s.running.Load() {
				return
			}
			continue
		}

		if !gate.TryAcquire() {
			s.rejectedClients.Add(1)
			conn.Close()
			continue
		}

		s.activeClients.Add(1)
		conn := conn
		err = s.pool.Submit(func() {
			defer gate.Release()
			defer s.activeClients.Add(-1)
			s.handleSession(conn)
		})
		if err != nil {
			gate.Release()
			s.activeClients.Add(-1)
			conn.Close()
		}
	}
}

func (s *Server) handleSession(conn net.Conn) {
	defer conn.Close()
	fmt.Fprintf(conn, "LogCrafter ingest ready\n")

	reader := bufio.NewReaderSize(conn, maxLineBytes*2)
	for s.running.Load() {
		line, err := reader.ReadString('\n')
		if line != "" {
			s.handleLine(line)
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) handleLine(raw string) {
	timestamp := time.Now()
	entry := logentry.New(raw, timestamp)

	if err := s.buffer.Push(entry.Message, timestamp); err != nil && s.log != nil {
		s.log.Warn("ingest: buffer push failed: " + err.Error())
	}
	if s.persist != nil {
		s.persist.Enqueue(entry.Message, timestamp)
	}
	if s.ircPub != nil {
		s.ircPub.PublishLog(entry.Message, timestamp)
	}
}

// RejectedClients returns the count of connections closed immediately
// due to the max_clients admission gate.
func (s *Server) RejectedClients() uint64 {
	return s.rejectedClients.Load()
}

// ActiveClients returns the current number of in-flight ingest
// sessions.
func (s *Server) ActiveClients() int64 {
	return s.activeClients.Load()
}

// Shutdown stops accepting new connections and closes the listener.
// In-flight sessions end when their socket closes or the worker pool
// drains.
func (s *Server) Shutdown() {
	s.running.Store(false)
	if s.listener != nil {
		s.listener.Close()
	}
}
