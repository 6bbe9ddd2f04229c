package logbuffer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(sec int64) time.Time { return time.Unix(sec, 0) }

func TestNewRejectsZeroCapacity(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
}

func TestPushSequenceAccounting(t *testing.T) {
	b, err := New(3)
	require.NoError(t, err)

	require.NoError(t, b.Push("a", ts(100)))
	require.NoError(t, b.Push("b", ts(101)))
	require.NoError(t, b.Push("c", ts(102)))

	stats := b.Stats()
	assert.Equal(t, 3, stats.Size)
	assert.EqualValues(t, 3, stats.TotalLogs)
	assert.EqualValues(t, 0, stats.DroppedLogs)

	require.NoError(t, b.Push("d", ts(103)))
	require.NoError(t, b.Push("e", ts(104)))

	stats = b.Stats()
	assert.Equal(t, 3, stats.Size)
	assert.EqualValues(t, 5, stats.TotalLogs)
	assert.EqualValues(t, 2, stats.DroppedLogs)
	assert.Equal(t, []string{"c", "d", "e"}, b.Snapshot())
}

func TestCapacityOneDropsEveryPushAfterFirst(t *testing.T) {
	b, err := New(1)
	require.NoError(t, err)

	for i, msg := range []string{"m1", "m2", "m3"} {
		require.NoError(t, b.Push(msg, ts(int64(i))))
	}
	stats := b.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.EqualValues(t, 3, stats.TotalLogs)
	assert.EqualValues(t, 2, stats.DroppedLogs)
	assert.Equal(t, []string{"m3"}, b.Snapshot())
}

func TestSearchKeywordOldestFirst(t *testing.T) {
	b, err := New(10)
	require.NoError(t, err)
	require.NoError(t, b.Push("a hello", ts(100)))
	require.NoError(t, b.Push("b world", ts(101)))
	require.NoError(t, b.Push("c hello world", ts(102)))

	got := b.SearchKeyword("hello")
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "a hello")
	assert.Contains(t, got[1], "c hello world")
}

type keywordMatcher struct{ kw string }

func (k keywordMatcher) Match(message string, _ time.Time) bool {
	return len(k.kw) == 0 || (len(message) >= len(k.kw) && contains(message, k.kw))
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestExecuteBasicIngestQueryScenario(t *testing.T) {
	b, err := New(3)
	require.NoError(t, err)
	require.NoError(t, b.Push("a hello", ts(100)))
	require.NoError(t, b.Push("b world", ts(101)))
	require.NoError(t, b.Push("c hello world", ts(102)))

	got := b.Execute(keywordMatcher{kw: "hello"})
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "a hello")
	assert.Contains(t, got[1], "c hello world")
}

func TestConcurrentPushersAndStatsReaderInvariants(t *testing.T) {
	b, err := New(50)
	require.NoError(t, err)

	var pushers sync.WaitGroup
	stop := make(chan struct{})
	reader := make(chan struct{})

	for p := 0; p < 8; p++ {
		pushers.Add(1)
		go func(p int) {
			defer pushers.Done()
			for i := 0; i < 200; i++ {
				_ = b.Push("x", ts(int64(p*1000+i)))
			}
		}(p)
	}

	go func() {
		defer close(reader)
		for {
			select {
			case <-stop:
				return
			default:
				s := b.Stats()
				assert.LessOrEqual(t, s.Size, 50)
				assert.LessOrEqual(t, int(s.DroppedLogs)+s.Size, int(s.TotalLogs))
			}
		}
	}()

	pushers.Wait()
	close(stop)
	<-reader

	final := b.Stats()
	assert.Equal(t, 50, final.Size)
	assert.EqualValues(t, 1600, final.TotalLogs)
	assert.EqualValues(t, 1550, final.DroppedLogs)
}
