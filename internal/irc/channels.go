// Package irc implements LogCrafter's IRC fan-out gateway (Components
// H, I, J): a channel registry with reserved log channels and
// per-user filter channels, a line-protocol server, and the !-command
// handler layered on top of PRIVMSG.
//
// Grounded on the teacher's map+mutex registries (internal/cache,
// internal/workers.WorkerPoolManager) for the "single owning type,
// internal lock, no raw handle escapes" shape spec.md §9 calls for.
package irc

import (
	"sort"
	"strings"
	"sync"
)

// ReservedChannels are always present and never garbage-collected.
var ReservedChannels = []string{"#logs-all", "#logs-error", "#logs-warning", "#logs-info", "#logs-debug"}

// Predicate decides whether a channel accepts a log message.
type Predicate func(message string) bool

func substringPredicate(needle string) Predicate {
	return func(message string) bool {
		return strings.Contains(strings.ToLower(message), needle)
	}
}

func noFilter(string) bool { return true }

// Channel is one IRC channel: a membership set, a broadcast filter,
// and the bookkeeping §4.H's stats() call reports.
type Channel struct {
	Name           string
	Topic          string
	BroadcastsLogs bool
	filter         Predicate
	members        map[string]struct{}
	broadcastCount uint64
	isLogChannel   bool
}

// ChannelStats is one row of the stats() summary.
type ChannelStats struct {
	Name           string
	Members        int
	Broadcasts     uint64
	BroadcastsLogs bool
}

// Delivery is one (client, channel) pair produced by
// PrepareLogDeliveries.
type Delivery struct {
	ClientID string
	Channel  string
}

// ChannelManager owns every channel. All operations are safe for
// concurrent use; the registry's internal lock is never exposed.
type ChannelManager struct {
	mu       sync.Mutex
	channels map[string]*Channel
}

// NewChannelManager builds a registry seeded with the five reserved
// log channels.
func NewChannelManager() *ChannelManager {
	m := &ChannelManager{channels: make(map[string]*Channel)}
	m.reset()
	return m
}

func (m *ChannelManager) reset() {
	levels := map[string]string{
		"#logs-all":     "",
		"#logs-error":   "error",
		"#logs-warning": "warn",
		"#logs-info":    "info",
		"#logs-debug":   "debug",
	}
	for _, name := range ReservedChannels {
		level := levels[name]
		filter := noFilter
		if level != "" {
			filter = substringPredicate(level)
		}
		m.channels[name] = &Channel{
			Name:           name,
			BroadcastsLogs: true,
			isLogChannel:   true,
			filter:         filter,
			members:        make(map[string]struct{}),
		}
	}
}

// NormalizeName trims whitespace, prepends '#' if missing, and
// lowercases — the canonical form every other operation keys on.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "#"
	}
	if name[0] != '#' {
		name = "#" + name
	}
	return strings.ToLower(name)
}

func isReserved(name string) bool {
	for _, r := range ReservedChannels {
		if r == name {
			return true
		}
	}
	return false
}

// Join ensures every named channel exists, adds clientID to each, and
// returns the names actually joined.
func (m *ChannelManager) Join(clientID string, names []string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	joined := make([]string, 0, len(names))
	for _, raw := range names {
		name := NormalizeName(raw)
		ch, ok := m.channels[name]
		if !ok {
			ch = &Channel{
				Name:         name,
				filter:       noFilter,
				members:      make(map[string]struct{}),
				isLogChannel: isReserved(name),
			}
			if ch.isLogChannel {
				ch.BroadcastsLogs = true
			}
			m.channels[name] = ch
		}
		ch.members[clientID] = struct{}{}
		joined = append(joined, name)
	}
	return joined
}

// Part removes clientID from the named channels, garbage-collecting
// any non-log channel left empty.
func (m *ChannelManager) Part(clientID string, names []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, raw := range names {
		name := NormalizeName(raw)
		m.removeFromChannelLocked(clientID, name)
	}
}

// RemoveClient removes clientID from every channel it belongs to.
func (m *ChannelManager) RemoveClient(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.channels {
		m.removeFromChannelLocked(clientID, name)
	}
}

func (m *ChannelManager) removeFromChannelLocked(clientID, name string) {
	ch, ok := m.channels[name]
	if !ok {
		return
	}
	delete(ch.members, clientID)
	if !ch.isLogChannel && len(ch.members) == 0 {
		delete(m.channels, name)
	}
}

// PrepareLogDeliveries returns one Delivery per (member, channel)
// pair across every broadcasting channel whose filter accepts
// message.
func (m *ChannelManager) PrepareLogDeliveries(message string) []Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deliveries []Delivery
	for _, ch := range m.channels {
		if !ch.BroadcastsLogs || !ch.filter(message) {
			continue
		}
		ch.broadcastCount++
		for clientID := range ch.members {
			deliveries = append(deliveries, Delivery{ClientID: clientID, Channel: ch.Name})
		}
	}
	return deliveries
}

// EnsureFilterChannel creates or replaces the named channel's filter
// and marks it a log channel, for !logfilter.
func (m *ChannelManager) EnsureFilterChannel(name, topic string, predicate Predicate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = NormalizeName(name)
	ch, ok := m.channels[name]
	if !ok {
		ch = &Channel{Name: name, members: make(map[string]struct{})}
		m.channels[name] = ch
	}
	ch.Topic = topic
	ch.filter = predicate
	ch.BroadcastsLogs = true
	ch.isLogChannel = true
}

// Stats returns a summary row per channel, log channels first then
// alphabetically.
func (m *ChannelManager) Stats() []ChannelStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]ChannelStats, 0, len(m.channels))
	for _, ch := range m.channels {
		stats = append(stats, ChannelStats{
			Name:           ch.Name,
			Members:        len(ch.members),
			Broadcasts:     ch.broadcastCount,
			BroadcastsLogs: ch.BroadcastsLogs,
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].BroadcastsLogs != stats[j].BroadcastsLogs {
			return stats[i].BroadcastsLogs
		}
		return stats[i].Name < stats[j].Name
	})
	return stats
}

// MembersFor returns the member IDs of a channel, or nil if it does
// not exist.
func (m *ChannelManager) MembersFor(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[NormalizeName(name)]
	if !ok {
		return nil
	}
	members := make([]string, 0, len(ch.members))
	for id := range ch.members {
		members = append(members, id)
	}
	sort.Strings(members)
	return members
}

// TopicFor returns a channel's topic and whether it exists.
func (m *ChannelManager) TopicFor(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[NormalizeName(name)]
	if !ok {
		return "", false
	}
	return ch.Topic, true
}

// Exists reports whether the named channel currently exists.
func (m *ChannelManager) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.channels[NormalizeName(name)]
	return ok
}
