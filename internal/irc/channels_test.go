package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChannelManagerSeedsReservedChannels(t *testing.T) {
	m := NewChannelManager()
	for _, name := range ReservedChannels {
		assert.True(t, m.Exists(name))
	}
}

func TestJoinCreatesNonLogChannelOnDemand(t *testing.T) {
	m := NewChannelManager()
	joined := m.Join("client-1", []string{"random"})
	assert.Equal(t, []string{"#random"}, joined)
	assert.Equal(t, []string{"client-1"}, m.MembersFor("#random"))
}

func TestPartGarbageCollectsEmptyNonLogChannel(t *testing.T) {
	m := NewChannelManager()
	m.Join("client-1", []string{"#random"})
	m.Part("client-1", []string{"#random"})
	assert.False(t, m.Exists("#random"))
}

func TestPartKeepsReservedChannelWhenEmpty(t *testing.T) {
	m := NewChannelManager()
	m.Join("client-1", []string{"#logs-all"})
	m.Part("client-1", []string{"#logs-all"})
	assert.True(t, m.Exists("#logs-all"))
}

func TestRemoveClientClearsEveryMembership(t *testing.T) {
	m := NewChannelManager()
	m.Join("client-1", []string{"#logs-all", "#logs-error", "#custom"})
	m.RemoveClient("client-1")
	assert.Empty(t, m.MembersFor("#logs-all"))
	assert.False(t, m.Exists("#custom"))
}

func TestPrepareLogDeliveriesFilterScenarioS5(t *testing.T) {
	m := NewChannelManager()
	m.Join("A", []string{"#logs-error"})
	m.Join("B", []string{"#logs-all"})

	deliveries := m.PrepareLogDeliveries("system ERROR: disk full")
	seen := map[string]bool{}
	for _, d := range deliveries {
		seen[d.ClientID+"|"+d.Channel] = true
	}
	assert.True(t, seen["A|#logs-error"])
	assert.True(t, seen["B|#logs-all"])
	assert.Len(t, deliveries, 2)

	deliveries = m.PrepareLogDeliveries("heartbeat OK")
	require.Len(t, deliveries, 1)
	assert.Equal(t, "B", deliveries[0].ClientID)
	assert.Equal(t, "#logs-all", deliveries[0].Channel)
}

func TestEnsureFilterChannelScenarioS6(t *testing.T) {
	m := NewChannelManager()
	predicate := func(message string) bool {
		return substringPredicate("disk")(message) && substringPredicate("error")(message)
	}
	m.EnsureFilterChannel("#logs-filter-ops-lead", "disk,error", predicate)
	m.Join("ops-lead", []string{"#logs-filter-ops-lead"})

	deliveries := m.PrepareLogDeliveries("disk error on sda")
	found := false
	for _, d := range deliveries {
		if d.ClientID == "ops-lead" && d.Channel == "#logs-filter-ops-lead" {
			found = true
		}
	}
	assert.True(t, found)

	deliveries = m.PrepareLogDeliveries("disk ok")
	for _, d := range deliveries {
		assert.False(t, d.ClientID == "ops-lead" && d.Channel == "#logs-filter-ops-lead")
	}
}

func TestStatsOrdersLogChannelsFirstThenByName(t *testing.T) {
	m := NewChannelManager()
	m.Join("c1", []string{"#zzz-custom"})

	stats := m.Stats()
	require.NotEmpty(t, stats)
	assert.True(t, stats[0].BroadcastsLogs)
	assert.Equal(t, "#zzz-custom", stats[len(stats)-1].Name)
}

func TestNormalizeNameTrimsPrependsAndLowercases(t *testing.T) {
	assert.Equal(t, "#logs-all", NormalizeName("  Logs-All  "))
	assert.Equal(t, "#logs-all", NormalizeName("#LOGS-ALL"))
}
