package irc

import "strings"

// Command is one parsed IRC line: an uppercased verb and its
// parameters, with the standard trailing ":"-marked parameter
// unescaped into a single final element.
type Command struct {
	Verb   string
	Params []string
}

// ParseLine parses one CRLF-stripped IRC line, tolerating an optional
// leading ":prefix" per §4.I.
func ParseLine(line string) (Command, bool) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return Command{}, false
	}
	if line[0] == ':' {
		if idx := strings.IndexByte(line, ' '); idx >= 0 {
			line = line[idx+1:]
		} else {
			return Command{}, false
		}
	}
	line = strings.TrimLeft(line, " ")
	if line == "" {
		return Command{}, false
	}

	var trailing string
	hasTrailing := false
	if idx := strings.Index(line, " :"); idx >= 0 {
		trailing = line[idx+2:]
		hasTrailing = true
		line = line[:idx]
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		if !hasTrailing {
			return Command{}, false
		}
		return Command{}, false
	}

	cmd := Command{Verb: strings.ToUpper(fields[0])}
	if len(fields) > 1 {
		cmd.Params = append(cmd.Params, fields[1:]...)
	}
	if hasTrailing {
		cmd.Params = append(cmd.Params, trailing)
	}
	return cmd, true
}

// SplitChannelList splits a JOIN/PART comma-separated channel list.
func SplitChannelList(arg string) []string {
	parts := strings.Split(arg, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
