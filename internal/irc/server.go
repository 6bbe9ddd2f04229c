package irc

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/seungwoo7050/logcrafter/internal/logbuffer"
	"github.com/seungwoo7050/logcrafter/internal/logging"
	"github.com/seungwoo7050/logcrafter/internal/persistence"
)

const maxPartialLineBytes = 512

// Config configures the IRC gateway per spec.md §6.
type Config struct {
	Port       int
	ServerName string
	AutoJoin   []string
}

type client struct {
	id         string
	conn       net.Conn
	writeMu    sync.Mutex
	nick       string
	user       string
	registered bool
}

func (c *client) send(line string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, _ = c.conn.Write([]byte(line + "\r\n"))
}

// Server is Component I: the IRC line-protocol gateway. It owns the
// client map; ChannelManager holds only non-owning client-ID
// references per spec.md §9's ownership note.
type Server struct {
	cfg      Config
	buffer   *logbuffer.Buffer
	channels *ChannelManager
	handler  *CommandHandler
	log      logging.Logger

	mu      sync.Mutex
	clients map[string]*client

	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup
}

// StatsFunc lets the server report a live StatsSnapshot to !logstats.
type StatsFunc func() StatsSnapshot

// NewServer builds an IRC gateway bound to buffer. persist may be nil
// if persistence is disabled.
func NewServer(cfg Config, buffer *logbuffer.Buffer, persist *persistence.Manager, log logging.Logger) *Server {
	if cfg.ServerName == "" {
		cfg.ServerName = "logcrafter"
	}
	s := &Server{
		cfg:      cfg,
		buffer:   buffer,
		channels: NewChannelManager(),
		log:      log,
		clients:  make(map[string]*client),
	}
	s.handler = NewCommandHandler(buffer, s.channels, func() StatsSnapshot {
		snap := StatsSnapshot{
			Buffer:       buffer.Stats(),
			ChannelStats: s.channels.Stats(),
		}
		if persist != nil {
			st := persist.Stats()
			snap.Persistence = &st
		}
		s.mu.Lock()
		snap.ActiveIRCClients = len(s.clients)
		s.mu.Unlock()
		return snap
	})
	return s
}

// Start binds the IRC listener and begins accepting connections in a
// background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("irc: bind port %d: %w", s.cfg.Port, err)
	}
	s.listener = ln
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			continue
		}
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	c := &client{id: uuid.NewString(), conn: conn}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, c.id)
		s.mu.Unlock()
		s.channels.RemoveClient(c.id)
	}()

	reader := bufio.NewReaderSize(conn, maxPartialLineBytes*2)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if len(line) > maxPartialLineBytes {
				line = line[:maxPartialLineBytes]
			}
			if quit := s.processLine(c, line); quit {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// processLine handles one complete line from c, returning true if the
// connection should close.
func (s *Server) processLine(c *client, raw string) bool {
	cmd, ok := ParseLine(raw)
	if !ok {
		return false
	}

	if !c.registered && cmd.Verb != "PING" && cmd.Verb != "QUIT" && cmd.Verb != "NICK" && cmd.Verb != "USER" {
		c.send(s.notice(c.nickOrStar(), "Register first using NICK and USER"))
		return false
	}

	switch cmd.Verb {
	case "NICK":
		s.handleNick(c, cmd)
	case "USER":
		s.handleUser(c, cmd)
	case "PING":
		token := ""
		if len(cmd.Params) > 0 {
			token = cmd.Params[0]
		}
		c.send(fmt.Sprintf("PONG %s :%s", s.cfg.ServerName, token))
	case "QUIT":
		c.send("ERROR :Closing link")
		return true
	case "JOIN":
		s.handleJoin(c, cmd)
	case "PART":
		s.handlePart(c, cmd)
	case "LIST":
		s.handleList(c)
	case "NAMES":
		s.handleNames(c, cmd)
	case "TOPIC":
		s.handleTopic(c, cmd)
	case "PRIVMSG":
		s.handlePrivmsg(c, cmd)
	case "WHO", "WHOIS", "MODE":
		c.send(s.notice(c.nickOrStar(), cmd.Verb+" is not implemented"))
	default:
		c.send(fmt.Sprintf(":%s 421 %s %s :Unknown command", s.cfg.ServerName, c.nickOrStar(), cmd.Verb))
	}
	return false
}

func (c *client) nickOrStar() string {
	if c.nick == "" {
		return "*"
	}
	return c.nick
}

func (s *Server) notice(target, text string) string {
	return fmt.Sprintf(":%s NOTICE %s :%s", s.cfg.ServerName, target, text)
}

func (s *Server) handleNick(c *client, cmd Command) {
	if len(cmd.Params) < 1 {
		return
	}
	c.nick = cmd.Params[0]
	s.maybeRegister(c)
}

func (s *Server) handleUser(c *client, cmd Command) {
	if len(cmd.Params) < 4 {
		return
	}
	c.user = cmd.Params[0]
	s.maybeRegister(c)
}

func (s *Server) maybeRegister(c *client) {
	if c.registered || c.nick == "" || c.user == "" {
		return
	}
	c.registered = true
	c.send(fmt.Sprintf(":%s 001 %s :Welcome to %s, %s", s.cfg.ServerName, c.nick, s.cfg.ServerName, c.nick))
	c.send(fmt.Sprintf(":%s 422 %s :No MOTD available", s.cfg.ServerName, c.nick))

	if len(s.cfg.AutoJoin) > 0 {
		s.joinChannels(c, s.cfg.AutoJoin)
	}
	c.send(s.notice(c.nick, "Send !help for a list of LogCrafter commands"))
}

func (s *Server) joinChannels(c *client, names []string) {
	joined := s.channels.Join(c.id, names)
	for _, name := range joined {
		c.send(fmt.Sprintf(":%s JOIN :%s", c.nick, name))
		topic, _ := s.channels.TopicFor(name)
		if topic == "" {
			c.send(fmt.Sprintf(":%s 331 %s %s :No topic is set", s.cfg.ServerName, c.nick, name))
		} else {
			c.send(fmt.Sprintf(":%s 332 %s %s :%s", s.cfg.ServerName, c.nick, name, topic))
		}
	}
}

func (s *Server) handleJoin(c *client, cmd Command) {
	if len(cmd.Params) < 1 {
		return
	}
	s.joinChannels(c, SplitChannelList(cmd.Params[0]))
}

func (s *Server) handlePart(c *client, cmd Command) {
	if len(cmd.Params) < 1 {
		return
	}
	names := SplitChannelList(cmd.Params[0])
	s.channels.Part(c.id, names)
	for _, name := range names {
		c.send(fmt.Sprintf(":%s PART %s", c.nick, NormalizeName(name)))
	}
}

func (s *Server) handleList(c *client) {
	c.send(fmt.Sprintf(":%s 321 %s Channel :Users Name", s.cfg.ServerName, c.nick))
	for _, st := range s.channels.Stats() {
		c.send(fmt.Sprintf(":%s 322 %s %s %d :%d broadcasts", s.cfg.ServerName, c.nick, st.Name, st.Members, st.Broadcasts))
	}
	c.send(fmt.Sprintf(":%s 323 %s :End of /LIST", s.cfg.ServerName, c.nick))
}

func (s *Server) handleNames(c *client, cmd Command) {
	names := cmd.Params
	if len(names) == 0 {
		all := s.channels.Stats()
		for _, st := range all {
			names = append(names, st.Name)
		}
	} else {
		names = SplitChannelList(names[0])
	}
	for _, name := range names {
		members := s.channels.MembersFor(name)
		c.send(fmt.Sprintf(":%s 353 %s = %s :%s", s.cfg.ServerName, c.nick, name, strings.Join(s.nicksFor(members), " ")))
		c.send(fmt.Sprintf(":%s 366 %s %s :End of /NAMES list", s.cfg.ServerName, c.nick, name))
	}
}

func (s *Server) nicksFor(ids []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	nicks := make([]string, 0, len(ids))
	for _, id := range ids {
		if cl, ok := s.clients[id]; ok {
			nicks = append(nicks, cl.nickOrStar())
		}
	}
	return nicks
}

func (s *Server) handleTopic(c *client, cmd Command) {
	if len(cmd.Params) < 1 {
		return
	}
	name := NormalizeName(cmd.Params[0])
	topic, ok := s.channels.TopicFor(name)
	if !ok || topic == "" {
		c.send(fmt.Sprintf(":%s 331 %s %s :No topic is set", s.cfg.ServerName, c.nick, name))
		return
	}
	c.send(fmt.Sprintf(":%s 332 %s %s :%s", s.cfg.ServerName, c.nick, name, topic))
}

func (s *Server) handlePrivmsg(c *client, cmd Command) {
	if len(cmd.Params) < 2 {
		return
	}
	text := cmd.Params[1]
	if !strings.HasPrefix(text, "!") {
		c.send(s.notice(c.nick, "Direct messaging is not supported; use a channel command like !help"))
		return
	}

	result := s.handler.Handle(c.nick, text)
	if len(result.JoinChannels) > 0 {
		s.joinChannels(c, result.JoinChannels)
	}
	if len(result.PartChannels) > 0 {
		s.channels.Part(c.id, result.PartChannels)
		for _, name := range result.PartChannels {
			c.send(fmt.Sprintf(":%s PART %s", c.nick, NormalizeName(name)))
		}
	}
	for _, reply := range result.Replies {
		c.send(s.notice(c.nick, reply))
	}
}

// PublishLog fans a newly stored entry out to every channel whose
// filter accepts it, per §4.I's synchronous-on-producer-thread rule.
func (s *Server) PublishLog(message string, timestamp time.Time) {
	deliveries := s.channels.PrepareLogDeliveries(message)
	if len(deliveries) == 0 {
		return
	}
	formatted := timestamp.Format("2006-01-02 15:04:05")

	s.mu.Lock()
	type target struct {
		client  *client
		channel string
	}
	targets := make([]target, 0, len(deliveries))
	for _, d := range deliveries {
		if cl, ok := s.clients[d.ClientID]; ok && cl.registered {
			targets = append(targets, target{client: cl, channel: d.Channel})
		}
	}
	s.mu.Unlock()

	for _, t := range targets {
		t.client.send(fmt.Sprintf(":%s PRIVMSG %s :[%s] %s", s.cfg.ServerName, t.channel, formatted, message))
	}
}

// ActiveClients returns the current IRC client count.
func (s *Server) ActiveClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ChannelCount returns the number of channels currently registered,
// reserved and ad-hoc alike.
func (s *Server) ChannelCount() int {
	return len(s.channels.Stats())
}

// Shutdown closes every client socket (best-effort "ERROR :Closing
// link" first) and stops accepting new connections.
func (s *Server) Shutdown() {
	s.running.Store(false)
	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.send("ERROR :Closing link")
		c.conn.Close()
	}
	s.wg.Wait()
}
