package queryserver

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seungwoo7050/logcrafter/internal/admission"
	"github.com/seungwoo7050/logcrafter/internal/logbuffer"
	"github.com/seungwoo7050/logcrafter/internal/logging"
	"github.com/seungwoo7050/logcrafter/internal/workerpool"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func newTestServer(t *testing.T) (*Server, *logbuffer.Buffer, int) {
	t.Helper()
	buf, err := logbuffer.New(3)
	require.NoError(t, err)
	pool := workerpool.New(4)
	t.Cleanup(pool.Shutdown)

	port := freePort(t)
	s := NewServer(Config{Port: port, SelectTimeout: 50 * time.Millisecond}, buf, pool, nil, nil, nil, logging.Noop())
	gate := admission.NewCounter(10)
	require.NoError(t, s.Start(gate))
	t.Cleanup(s.Shutdown)
	return s, buf, port
}

func dial(t *testing.T, port int) net.Conn {
	t.Helper()
	var conn net.Conn
	var err error
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		conn, err = net.Dial("tcp", net.JoinHostPort("127.0.0.1", itoa(port)))
		if err == nil {
			return conn
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, err)
	return conn
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func queryOnce(t *testing.T, port int, line string) string {
	t.Helper()
	conn := dial(t, port)
	defer conn.Close()

	reader := bufio.NewReader(conn)
	_, err := reader.ReadString('\n') // banner
	require.NoError(t, err)

	conn.Write([]byte(line + "\n"))
	conn.(*net.TCPConn).CloseWrite()

	out, err := io.ReadAll(reader)
	require.NoError(t, err)
	return string(out)
}

func TestScenarioS1BasicIngestQuery(t *testing.T) {
	_, buf, port := newTestServer(t)
	base := time.Unix(100, 0)
	require.NoError(t, buf.Push("a hello", base))
	require.NoError(t, buf.Push("b world", base.Add(time.Second)))
	require.NoError(t, buf.Push("c hello world", base.Add(2*time.Second)))

	resp := queryOnce(t, port, "QUERY keyword=hello")
	assert.Contains(t, resp, "FOUND: 2")
	assert.Contains(t, resp, "a hello")
	assert.Contains(t, resp, "c hello world")
}

func TestCountCommand(t *testing.T) {
	_, buf, port := newTestServer(t)
	require.NoError(t, buf.PushNow("x"))
	require.NoError(t, buf.PushNow("y"))

	resp := queryOnce(t, port, "COUNT")
	assert.Equal(t, "COUNT: 2\n", resp)
}

func TestScenarioS2OverflowStats(t *testing.T) {
	buf, err := logbuffer.New(2)
	require.NoError(t, err)
	pool := workerpool.New(4)
	t.Cleanup(pool.Shutdown)

	port := freePort(t)
	s := NewServer(Config{Port: port, SelectTimeout: 50 * time.Millisecond}, buf, pool, nil, nil, nil, logging.Noop())
	require.NoError(t, s.Start(admission.NewCounter(10)))
	t.Cleanup(s.Shutdown)

	for i := 0; i < 5; i++ {
		require.NoError(t, buf.PushNow("m"))
	}
	resp := queryOnce(t, port, "STATS")
	assert.Contains(t, resp, "STATS: Total=5, Dropped=3, Current=2")
}

type fakeIngestStats struct{ n int64 }

func (f fakeIngestStats) ActiveClients() int64 { return f.n }

type fakeIRCStats struct{ clients, channels int }

func (f fakeIRCStats) ActiveClients() int { return f.clients }
func (f fakeIRCStats) ChannelCount() int  { return f.channels }

func TestStatsIncludesIngestAndIRCBracketPairs(t *testing.T) {
	buf, err := logbuffer.New(10)
	require.NoError(t, err)
	pool := workerpool.New(4)
	t.Cleanup(pool.Shutdown)

	port := freePort(t)
	s := NewServer(Config{Port: port, SelectTimeout: 50 * time.Millisecond}, buf, pool, nil, fakeIngestStats{n: 2}, fakeIRCStats{clients: 3, channels: 5}, logging.Noop())
	gate := admission.NewCounter(10)
	require.NoError(t, s.Start(gate))
	t.Cleanup(s.Shutdown)

	resp := queryOnce(t, port, "STATS")
	assert.Contains(t, resp, "ActiveLog=2")
	assert.Contains(t, resp, "ActiveQuery=")
	assert.Contains(t, resp, "ActiveIRC=3")
	assert.Contains(t, resp, "IRCChannels=5")
}

func TestUnknownVerbReturnsError(t *testing.T) {
	_, _, port := newTestServer(t)
	resp := queryOnce(t, port, "BOGUS")
	assert.Equal(t, "ERROR: Unknown command. Use HELP for usage.\n", resp)
}

func TestHelpCommand(t *testing.T) {
	_, _, port := newTestServer(t)
	resp := queryOnce(t, port, "HELP")
	assert.Contains(t, resp, "Commands:")
}
