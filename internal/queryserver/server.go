// Package queryserver implements Component G: the query/stats TCP
// listener. Each session is a single request/response exchange; the
// server retains no per-connection state, per spec.md §4.G.
package queryserver

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/seungwoo7050/logcrafter/internal/admission"
	"github.com/seungwoo7050/logcrafter/internal/logbuffer"
	"github.com/seungwoo7050/logcrafter/internal/logging"
	"github.com/seungwoo7050/logcrafter/internal/persistence"
	"github.com/seungwoo7050/logcrafter/internal/query"
	"github.com/seungwoo7050/logcrafter/internal/workerpool"
)

const maxRequestLineBytes = 512

const helpText = `Commands:
  HELP         - show this message
  COUNT        - current buffer size
  STATS        - buffer/persistence/session counters
  QUERY <k=v>  - run a filtered query, e.g. QUERY keyword=error
`

// IngestStatsProvider is the narrow surface STATS needs from the
// ingest listener; satisfied by *ingest.Server.
type IngestStatsProvider interface {
	ActiveClients() int64
}

// IRCStatsProvider is the narrow surface STATS needs from the IRC
// gateway; satisfied by *irc.Server.
type IRCStatsProvider interface {
	ActiveClients() int
	ChannelCount() int
}

// Config configures the query listener per spec.md §6.
type Config struct {
	Port          int
	SelectTimeout time.Duration
}

// Server is Component G.
type Server struct {
	cfg        Config
	buffer     *logbuffer.Buffer
	pool       *workerpool.Pool
	persist    *persistence.Manager
	ingestStat IngestStatsProvider
	ircStat    IRCStatsProvider
	log        logging.Logger

	listener net.Listener
	running  atomic.Bool

	activeClients atomic.Int64
}

// NewServer builds a query server. persist, ingestStat and ircStat may
// be nil if those subsystems are disabled.
func NewServer(cfg Config, buffer *logbuffer.Buffer, pool *workerpool.Pool, persist *persistence.Manager, ingestStat IngestStatsProvider, ircStat IRCStatsProvider, log logging.Logger) *Server {
	return &Server{cfg: cfg, buffer: buffer, pool: pool, persist: persist, ingestStat: ingestStat, ircStat: ircStat, log: log}
}

// Start binds the listener and launches the accept loop goroutine.
func (s *Server) Start(gate *admission.Counter) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("queryserver: bind port %d: %w", s.cfg.Port, err)
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
	fmt.Fprintf(conn, "LogCrafter query server. Type HELP for usage.\n")

	reader := bufio.NewReaderSize(conn, maxRequestLineBytes*2)
	line, err := reader.ReadString('\n')
	if line == "" && err != nil {
		return
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) > maxRequestLineBytes {
		line = line[:maxRequestLineBytes]
	}

	response := s.dispatch(line)
	conn.Write([]byte(response))
}

func (s *Server) dispatch(line string) string {
	verb, rest := splitVerb(line)
	switch strings.ToUpper(verb) {
	case "HELP":
		return helpText
	case "COUNT":
		return fmt.Sprintf("COUNT: %d\n", s.buffer.Count())
	case "STATS":
		return s.statsResponse()
	case "QUERY":
		return s.queryResponse(rest)
	default:
		return "ERROR: Unknown command. Use HELP for usage.\n"
	}
}

func splitVerb(line string) (verb, rest string) {
	idx := strings.IndexByte(line, ' ')
	if idx < 0 {
		return line, ""
	}
	return line[:idx], strings.TrimSpace(line[idx+1:])
}

func (s *Server) statsResponse() string {
	st := s.buffer.Stats()
	var sb strings.Builder
	fmt.Fprintf(&sb, "STATS: Total=%d, Dropped=%d, Current=%d", st.TotalLogs, st.DroppedLogs, st.Size)
	if s.persist != nil {
		ps := s.persist.Stats()
		fmt.Fprintf(&sb, ", Persisted=%d, PersistFailed=%d", ps.PersistedLogs, ps.FailedLogs)
	}
	if s.ingestStat != nil {
		fmt.Fprintf(&sb, ", ActiveLog=%d", s.ingestStat.ActiveClients())
	}
	fmt.Fprintf(&sb, ", ActiveQuery=%d", s.activeClients.Load())
	if s.ircStat != nil {
		fmt.Fprintf(&sb, ", ActiveIRC=%d, IRCChannels=%d", s.ircStat.ActiveClients(), s.ircStat.ChannelCount())
	}
	sb.WriteString("\n")
	return sb.String()
}

func (s *Server) queryResponse(args string) string {
	req, err := query.Parse(args)
	if err != nil {
		return err.Error() + "\n"
	}
	matches := s.buffer.Execute(req)

	var sb strings.Builder
	fmt.Fprintf(&sb, "FOUND: %d\n", len(matches))
	for _, m := range matches {
		sb.WriteString(m)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Shutdown stops accepting new connections and closes the listener.
func (s *Server) Shutdown() {
	s.running.Store(false)
	if s.listener != nil {
		s.listener.Close()
	}
}
