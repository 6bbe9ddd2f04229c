package irc

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/seungwoo7050/logcrafter/internal/logbuffer"
	"github.com/seungwoo7050/logcrafter/internal/persistence"
	"github.com/seungwoo7050/logcrafter/internal/query"
)

const maxQueryReplyLines = 5

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// StatsSnapshot is the combined counter view !logstats reports.
type StatsSnapshot struct {
	Buffer           logbuffer.Stats
	Persistence      *persistence.Stats
	ActiveIRCClients int
	ChannelStats     []ChannelStats
}

// CommandResult carries what the IRCServer must do after a !-command
// runs: channels to join/part on the sender's behalf, and lines to
// NOTICE back. The handler never touches sockets directly.
type CommandResult struct {
	JoinChannels []string
	PartChannels []string
	Replies      []string
}

// CommandHandler implements §4.J's !query/!logstream/!logfilter/
// !logstats/!help verbs against the shared LogBuffer and channel
// registry.
type CommandHandler struct {
	buffer   *logbuffer.Buffer
	channels *ChannelManager
	stats    func() StatsSnapshot
}

// NewCommandHandler builds a handler. statsFn supplies the live
// counters !logstats reports; it is called lazily, once per request.
func NewCommandHandler(buffer *logbuffer.Buffer, channels *ChannelManager, statsFn func() StatsSnapshot) *CommandHandler {
	return &CommandHandler{buffer: buffer, channels: channels, stats: statsFn}
}

// Handle dispatches a PRIVMSG body beginning with "!" from nick.
func (h *CommandHandler) Handle(nick, body string) CommandResult {
	body = strings.TrimSpace(body)
	body = strings.TrimPrefix(body, "!")
	verb, rest := splitVerb(body)

	switch strings.ToLower(verb) {
	case "query":
		return h.handleQuery(rest)
	case "logstream":
		return h.handleLogstream(rest)
	case "logfilter":
		return h.handleLogfilter(nick, rest)
	case "logstats":
		return h.handleLogstats()
	case "help":
		return h.handleHelp()
	default:
		return CommandResult{Replies: []string{"Unknown command. Try !help for usage."}}
	}
}

func splitVerb(body string) (verb, rest string) {
	idx := strings.IndexByte(body, ' ')
	if idx < 0 {
		return body, ""
	}
	return body[:idx], strings.TrimSpace(body[idx+1:])
}

func (h *CommandHandler) handleQuery(args string) CommandResult {
	req, err := query.Parse(args)
	if err != nil {
		return CommandResult{Replies: []string{err.Error()}}
	}

	matches := h.buffer.Execute(req)
	if len(matches) == 0 {
		return CommandResult{Replies: []string{"!query matched no entries"}}
	}

	noun := "entries"
	if len(matches) == 1 {
		noun = "entry"
	}
	summary := fmt.Sprintf("!query matched %d %s", len(matches), noun)

	shown := matches
	if len(shown) > maxQueryReplyLines {
		shown = shown[:maxQueryReplyLines]
		summary += fmt.Sprintf(" (showing %d)", maxQueryReplyLines)
	}

	replies := append([]string{summary}, shown...)
	return CommandResult{Replies: replies}
}

var logstreamLevels = []string{"all", "error", "warning", "info", "debug"}

func (h *CommandHandler) handleLogstream(arg string) CommandResult {
	level := strings.ToLower(strings.TrimSpace(arg))

	if level == "off" {
		return CommandResult{PartChannels: append([]string{}, ReservedChannels...)}
	}

	valid := false
	for _, l := range logstreamLevels {
		if l == level {
			valid = true
			break
		}
	}
	if !valid {
		return CommandResult{Replies: []string{
			"!logstream requires one of: all, error, warning, info, debug, off",
		}}
	}

	channel := "#logs-" + level
	if level == "all" {
		channel = "#logs-all"
	}
	return CommandResult{JoinChannels: []string{channel}}
}

func (h *CommandHandler) handleLogfilter(nick, arg string) CommandResult {
	slug := slugify(nick)
	channelName := "#logs-filter-" + slug

	if strings.ToLower(strings.TrimSpace(arg)) == "off" {
		return CommandResult{PartChannels: []string{channelName}}
	}

	keywords := strings.Split(arg, ",")
	var cleaned []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			cleaned = append(cleaned, kw)
		}
	}
	if len(cleaned) == 0 {
		return CommandResult{Replies: []string{"!logfilter requires at least one keyword"}}
	}

	predicate := func(message string) bool {
		lower := strings.ToLower(message)
		for _, kw := range cleaned {
			if !strings.Contains(lower, kw) {
				return false
			}
		}
		return true
	}

	h.channels.EnsureFilterChannel(channelName, strings.Join(cleaned, ","), predicate)
	return CommandResult{JoinChannels: []string{channelName}}
}

func slugify(nick string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(nick), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 12 {
		slug = slug[:12]
	}
	if slug == "" {
		slug = "anon"
	}
	return slug
}

func (h *CommandHandler) handleLogstats() CommandResult {
	snap := h.stats()
	line := fmt.Sprintf("STATS: Total=%d, Dropped=%d, Current=%d",
		snap.Buffer.TotalLogs, snap.Buffer.DroppedLogs, snap.Buffer.Size)
	if snap.Persistence != nil {
		line += fmt.Sprintf(", Persisted=%d, PersistFailed=%d", snap.Persistence.PersistedLogs, snap.Persistence.FailedLogs)
	}
	line += fmt.Sprintf(", ActiveIRC=%d", snap.ActiveIRCClients)

	replies := []string{line}
	top := make([]ChannelStats, len(snap.ChannelStats))
	copy(top, snap.ChannelStats)
	sort.Slice(top, func(i, j int) bool {
		if top[i].Members != top[j].Members {
			return top[i].Members > top[j].Members
		}
		return top[i].Name < top[j].Name
	})
	if len(top) > 3 {
		top = top[:3]
	}
	for _, ch := range top {
		replies = append(replies, fmt.Sprintf("  %s: %d members, %d broadcasts", ch.Name, ch.Members, ch.Broadcasts))
	}
	return CommandResult{Replies: replies}
}

func (h *CommandHandler) handleHelp() CommandResult {
	return CommandResult{Replies: []string{
		"!query <args> - run a buffer query, e.g. !query keyword=error",
		"!logstream <all|error|warning|info|debug|off> - join/leave a level channel",
		"!logfilter <kw>[,<kw>...]|off - join your personal filter channel",
		"!logstats - show buffer/persistence/IRC counters",
		"!help - show this message",
	}}
}
