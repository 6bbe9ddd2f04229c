// Package server wires LogCrafter's components together: LogBuffer,
// PersistenceManager, WorkerPool, IngestServer, QueryServer and the
// optional IRC gateway, and implements the startup/shutdown sequence
// from spec.md §5.
//
// Grounded on the teacher's internal/app wiring shape: one struct
// owning every subsystem, a single Start/Shutdown pair, components
// constructed in dependency order and torn down in reverse.
package server

import (
	"fmt"
	"time"

	"github.com/seungwoo7050/logcrafter/internal/admission"
	"github.com/seungwoo7050/logcrafter/internal/config"
	"github.com/seungwoo7050/logcrafter/internal/ingest"
	"github.com/seungwoo7050/logcrafter/internal/irc"
	"github.com/seungwoo7050/logcrafter/internal/logbuffer"
	"github.com/seungwoo7050/logcrafter/internal/logging"
	"github.com/seungwoo7050/logcrafter/internal/persistence"
	"github.com/seungwoo7050/logcrafter/internal/queryserver"
	"github.com/seungwoo7050/logcrafter/internal/workerpool"
)

// Server owns every LogCrafter subsystem and coordinates their
// lifecycle.
type Server struct {
	cfg *config.Config
	log logging.Logger

	buffer  *logbuffer.Buffer
	pool    *workerpool.Pool
	persist *persistence.Manager
	gate    *admission.Counter

	ingestSrv *ingest.Server
	querySrv  *queryserver.Server
	ircSrv    *irc.Server
}

// New constructs every component but starts nothing.
func New(cfg *config.Config, log logging.Logger) (*Server, error) {
	buffer, err := logbuffer.New(cfg.BufferCapacity)
	if err != nil {
		return nil, fmt.Errorf("server: build log buffer: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		log:    log,
		buffer: buffer,
		pool:   workerpool.New(cfg.WorkerThreads),
		gate:   admission.NewCounter(cfg.MaxClients),
	}

	if cfg.Persistence.Enabled {
		persist, err := persistence.Init(persistence.Config{
			Directory:   cfg.Persistence.Directory,
			MaxFileSize: cfg.Persistence.MaxFileSize,
			MaxFiles:    cfg.Persistence.MaxFiles,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("server: init persistence: %w", err)
		}
		s.persist = persist
	}

	var ircPub ingest.IRCPublisher
	var ircStat queryserver.IRCStatsProvider
	if cfg.IRC.Enabled {
		s.ircSrv = irc.NewServer(irc.Config{
			Port:       cfg.IRC.Port,
			ServerName: cfg.IRC.ServerName,
			AutoJoin:   irc.SplitChannelList(cfg.IRC.AutoJoin),
		}, s.buffer, s.persist, log)
		ircPub = s.ircSrv
		ircStat = s.ircSrv
	}

	s.ingestSrv = ingest.NewServer(ingest.Config{
		Port:          cfg.LogPort,
		SelectTimeout: cfg.SelectTimeout,
	}, s.buffer, s.pool, s.persist, ircPub, log)

	s.querySrv = queryserver.NewServer(queryserver.Config{
		Port:          cfg.QueryPort,
		SelectTimeout: cfg.SelectTimeout,
	}, s.buffer, s.pool, s.persist, s.ingestSrv, ircStat, log)

	return s, nil
}

// Start replays persisted history (if enabled), brings up the IRC
// gateway, and finally opens the ingest/query listeners. Per spec.md
// §5, startup replay must complete before the ingest listener begins
// accepting connections.
func (s *Server) Start() error {
	if s.cfg.Persistence.Enabled {
		if err := persistence.ReplayExisting(s.cfg.Persistence.Directory, func(message string, timestamp time.Time) {
			s.buffer.Push(message, timestamp)
		}); err != nil {
			return fmt.Errorf("server: replay existing logs: %w", err)
		}
		if s.log != nil {
			s.log.Info(fmt.Sprintf("replayed existing logs from %s", s.cfg.Persistence.Directory))
		}
	}

	if s.ircSrv != nil {
		if err := s.ircSrv.Start(); err != nil {
			return fmt.Errorf("server: start irc gateway: %w", err)
		}
		if s.log != nil {
			s.log.Info(fmt.Sprintf("irc gateway listening on :%d", s.cfg.IRC.Port))
		}
	}

	if err := s.ingestSrv.Start(s.gate); err != nil {
		return fmt.Errorf("server: start ingest listener: %w", err)
	}
	if s.log != nil {
		s.log.Info(fmt.Sprintf("ingest listener listening on :%d", s.cfg.LogPort))
	}

	if err := s.querySrv.Start(s.gate); err != nil {
		return fmt.Errorf("server: start query listener: %w", err)
	}
	if s.log != nil {
		s.log.Info(fmt.Sprintf("query listener listening on :%d", s.cfg.QueryPort))
	}

	return nil
}

// Shutdown stops accepting new connections, drains the worker pool and
// the persistence writer, and closes IRC client sockets, in the order
// spec.md §5 describes: stop accepting -> close listeners -> stop
// worker pool (drain) -> stop persistence (drain) -> close IRC sockets.
func (s *Server) Shutdown() {
	s.ingestSrv.Shutdown()
	s.querySrv.Shutdown()

	s.pool.Shutdown()

	if s.persist != nil {
		s.persist.Shutdown()
	}

	if s.ircSrv != nil {
		s.ircSrv.Shutdown()
	}
}

// Buffer exposes the shared log buffer, primarily for tests.
func (s *Server) Buffer() *logbuffer.Buffer {
	return s.buffer
}
