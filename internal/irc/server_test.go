package irc

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seungwoo7050/logcrafter/internal/logbuffer"
	"github.com/seungwoo7050/logcrafter/internal/logging"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

type ircTestClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dialIRC(t *testing.T, port int) *ircTestClient {
	t.Helper()
	var conn net.Conn
	var err error
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		conn, err = net.Dial("tcp", net.JoinHostPort("127.0.0.1", itoa(port)))
		if err == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, err)
	return &ircTestClient{conn: conn, reader: bufio.NewReader(conn)}
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

func (c *ircTestClient) send(line string) {
	c.conn.Write([]byte(line + "\r\n"))
}

func (c *ircTestClient) readLine(t *testing.T) string {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.reader.ReadString('\n')
	require.NoError(t, err)
	return line
}

func (c *ircTestClient) register(t *testing.T, nick string) {
	c.send("NICK " + nick)
	c.send("USER " + nick + " 0 * :Real Name")
	// 001, 422, auto-JOIN, its 331 topic reply, and the !help NOTICE.
	for i := 0; i < 5; i++ {
		c.readLine(t)
	}
}

func newTestServer(t *testing.T) (*Server, int) {
	t.Helper()
	buf, err := logbuffer.New(100)
	require.NoError(t, err)
	port := freePort(t)
	s := NewServer(Config{Port: port, ServerName: "logcrafter", AutoJoin: []string{"#logs-all"}}, buf, nil, logging.Noop())
	require.NoError(t, s.Start())
	t.Cleanup(s.Shutdown)
	return s, port
}

func TestRegistrationSendsWelcomeAndAutoJoin(t *testing.T) {
	_, port := newTestServer(t)
	c := dialIRC(t, port)
	defer c.conn.Close()

	c.send("NICK alice")
	c.send("USER alice 0 * :Alice")

	welcome := c.readLine(t)
	require.Contains(t, welcome, "001")
	motd := c.readLine(t)
	require.Contains(t, motd, "422")
	join := c.readLine(t)
	require.Contains(t, join, "JOIN :#logs-all")
}

func TestPingPong(t *testing.T) {
	_, port := newTestServer(t)
	c := dialIRC(t, port)
	defer c.conn.Close()
	c.register(t, "bob")

	c.send("PING abc123")
	line := c.readLine(t)
	require.Contains(t, line, "PONG")
	require.Contains(t, line, "abc123")
}

func TestFanOutScenarioS5(t *testing.T) {
	s, port := newTestServer(t)

	a := dialIRC(t, port)
	defer a.conn.Close()
	a.send("NICK a")
	a.send("USER a 0 * :A")
	for i := 0; i < 5; i++ {
		a.readLine(t)
	}
	a.send("JOIN #logs-error")
	a.readLine(t)
	a.readLine(t)

	b := dialIRC(t, port)
	defer b.conn.Close()
	b.register(t, "b")

	time.Sleep(20 * time.Millisecond)
	s.PublishLog("system ERROR: disk full", time.Now())

	aLine := a.readLine(t)
	require.Contains(t, aLine, "system ERROR: disk full")
	bLine := b.readLine(t)
	require.Contains(t, bLine, "system ERROR: disk full")
}

func TestUnknownCommandGets421(t *testing.T) {
	_, port := newTestServer(t)
	c := dialIRC(t, port)
	defer c.conn.Close()
	c.register(t, "carol")

	c.send("BOGUS")
	line := c.readLine(t)
	require.Contains(t, line, "421")
}

func TestUnregisteredClientGetsNotice(t *testing.T) {
	_, port := newTestServer(t)
	c := dialIRC(t, port)
	defer c.conn.Close()

	c.send("JOIN #logs-all")
	line := c.readLine(t)
	require.Contains(t, line, "Register first")
}
