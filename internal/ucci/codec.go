package ucci

import (
	"fmt"
	"strconv"
	"strings"
)

// GUI-to-engine commands with no parameters.
const (
	CmdUCCI    = "ucci"
	CmdIsReady = "isready"
	CmdStop    = "stop"
	CmdQuit    = "quit"
)

// ParseLine tokenizes one engine output line and returns the structured
// message. Unknown first tokens come back as Unknown, never as an error.
// A recognized token with malformed parameters returns an error; whether
// that is fatal depends on the session state and is the caller's call.
func ParseLine(line string) (Message, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Unknown{Raw: line}, nil
	}

	switch fields[0] {
	case "ucciok":
		return UCCIOk{}, nil
	case "readyok":
		return ReadyOk{}, nil
	case "bye":
		return Bye{}, nil
	case "id":
		if len(fields) < 3 {
			return nil, fmt.Errorf("id line needs a field and a value: %q", line)
		}
		return ID{Field: fields[1], Value: strings.Join(fields[2:], " ")}, nil
	case "option":
		opt, err := parseOption(fields[1:])
		if err != nil {
			return nil, fmt.Errorf("option line %q: %w", line, err)
		}
		return Option{Opt: opt}, nil
	case "info":
		info, err := parseInfo(fields[1:])
		if err != nil {
			return nil, fmt.Errorf("info line %q: %w", line, err)
		}
		return Info{Line: info}, nil
	case "bestmove":
		best, err := parseBestMove(fields[1:])
		if err != nil {
			return nil, fmt.Errorf("bestmove line %q: %w", line, err)
		}
		return Best{Move: best}, nil
	case "nobestmove":
		return Best{Move: BestMove{None: true}}, nil
	default:
		return Unknown{Raw: line}, nil
	}
}

// parseOption handles the UCCI form: the option name precedes the "type"
// keyword and may contain spaces.
func parseOption(fields []string) (EngineOption, error) {
	var opt EngineOption

	typeIdx := -1
	for i, f := range fields {
		if f == "type" {
			typeIdx = i
			break
		}
	}
	if typeIdx < 1 || typeIdx+1 >= len(fields) {
		return opt, fmt.Errorf("missing name or type")
	}
	opt.Name = strings.Join(fields[:typeIdx], " ")

	switch t := OptionType(fields[typeIdx+1]); t {
	case OptionCheck, OptionSpin, OptionCombo, OptionString, OptionButton:
		opt.Type = t
	default:
		return opt, fmt.Errorf("unknown option type %q", fields[typeIdx+1])
	}

	rest := fields[typeIdx+2:]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "default":
			if i+1 < len(rest) {
				opt.Default = rest[i+1]
				i++
			}
		case "min":
			if i+1 >= len(rest) {
				return opt, fmt.Errorf("min without a value")
			}
			n, err := strconv.Atoi(rest[i+1])
			if err != nil {
				return opt, fmt.Errorf("min is not a number: %q", rest[i+1])
			}
			opt.Min = n
			i++
		case "max":
			if i+1 >= len(rest) {
				return opt, fmt.Errorf("max without a value")
			}
			n, err := strconv.Atoi(rest[i+1])
			if err != nil {
				return opt, fmt.Errorf("max is not a number: %q", rest[i+1])
			}
			opt.Max = n
			i++
		case "var":
			if i+1 < len(rest) {
				opt.Vars = append(opt.Vars, rest[i+1])
				i++
			}
		}
	}
	return opt, nil
}

// parseInfo scans key/value pairs. The pv key consumes the remaining
// tokens, matching how UCCI engines place it last on the line. Score
// accepts both the keyworded form ("score cp 23", "score mate 4") and the
// bare form ("score 23") some engines emit.
func parseInfo(fields []string) (InfoLine, error) {
	var info InfoLine

	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			n, err := intAfter(fields, i)
			if err != nil {
				return info, err
			}
			info.Depth = &n
			i++
		case "multipv":
			n, err := intAfter(fields, i)
			if err != nil {
				return info, err
			}
			info.MultiPV = &n
			i++
		case "nodes":
			n, err := int64After(fields, i)
			if err != nil {
				return info, err
			}
			info.Nodes = &n
			i++
		case "nps":
			n, err := int64After(fields, i)
			if err != nil {
				return info, err
			}
			info.NPS = &n
			i++
		case "time":
			n, err := int64After(fields, i)
			if err != nil {
				return info, err
			}
			info.TimeMs = &n
			i++
		case "score":
			if i+1 >= len(fields) {
				return info, fmt.Errorf("score without a value")
			}
			switch fields[i+1] {
			case "cp":
				n, err := intAfter(fields, i+1)
				if err != nil {
					return info, err
				}
				info.Score = &n
				i += 2
			case "mate":
				n, err := intAfter(fields, i+1)
				if err != nil {
					return info, err
				}
				info.Mate = &n
				i += 2
			default:
				n, err := strconv.Atoi(fields[i+1])
				if err != nil {
					return info, fmt.Errorf("score is not a number: %q", fields[i+1])
				}
				info.Score = &n
				i++
			}
		case "pv":
			info.PV = append([]string{}, fields[i+1:]...)
			i = len(fields)
		}
	}
	return info, nil
}

func parseBestMove(fields []string) (BestMove, error) {
	var best BestMove
	if len(fields) == 0 {
		return best, fmt.Errorf("missing move token")
	}
	best.Move = fields[0]
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "ponder":
			if i+1 < len(fields) {
				best.Ponder = fields[i+1]
				i++
			}
		case "draw":
			best.Draw = true
		case "resign":
			best.Resign = true
		}
	}
	return best, nil
}

func intAfter(fields []string, i int) (int, error) {
	if i+1 >= len(fields) {
		return 0, fmt.Errorf("%s without a value", fields[i])
	}
	n, err := strconv.Atoi(fields[i+1])
	if err != nil {
		return 0, fmt.Errorf("%s is not a number: %q", fields[i], fields[i+1])
	}
	return n, nil
}

func int64After(fields []string, i int) (int64, error) {
	if i+1 >= len(fields) {
		return 0, fmt.Errorf("%s without a value", fields[i])
	}
	n, err := strconv.ParseInt(fields[i+1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s is not a number: %q", fields[i], fields[i+1])
	}
	return n, nil
}

// MarshalPosition serializes a position-set command. All user-supplied
// text is checked for embedded line breaks: the wire format is strictly
// line-oriented and a split command would desynchronize the engine.
func MarshalPosition(p Position) (string, error) {
	var sb strings.Builder
	if p.FEN == "" {
		sb.WriteString("position startpos")
	} else {
		if err := checkLineSafe(p.FEN); err != nil {
			return "", fmt.Errorf("fen: %w", err)
		}
		sb.WriteString("position fen ")
		sb.WriteString(p.FEN)
	}
	if len(p.Moves) > 0 {
		sb.WriteString(" moves")
		for _, m := range p.Moves {
			if err := checkMoveToken(m); err != nil {
				return "", err
			}
			sb.WriteByte(' ')
			sb.WriteString(m)
		}
	}
	return sb.String(), nil
}

// MarshalGo serializes a go command. Exactly one time-control strategy
// must be selected.
func MarshalGo(p SearchParams) (string, error) {
	selected := 0
	if p.Depth > 0 {
		selected++
	}
	if p.MoveTimeMs > 0 {
		selected++
	}
	if p.Nodes > 0 {
		selected++
	}
	if p.Infinite {
		selected++
	}
	if selected == 0 {
		return "", fmt.Errorf("search parameters select no time control")
	}
	if selected > 1 {
		return "", fmt.Errorf("search parameters select more than one time control")
	}

	switch {
	case p.Depth > 0:
		return fmt.Sprintf("go depth %d", p.Depth), nil
	case p.MoveTimeMs > 0:
		return fmt.Sprintf("go time %d", p.MoveTimeMs), nil
	case p.Nodes > 0:
		return fmt.Sprintf("go nodes %d", p.Nodes), nil
	default:
		return "go infinite", nil
	}
}

// ParseGo decodes a go command line back into SearchParams. Used by the
// engine doubles in tests and as the codec's own reference decoder.
func ParseGo(line string) (SearchParams, error) {
	var p SearchParams
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "go" {
		return p, fmt.Errorf("not a go command: %q", line)
	}
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			n, err := intAfter(fields, i)
			if err != nil {
				return p, err
			}
			p.Depth = n
			i++
		case "time":
			n, err := intAfter(fields, i)
			if err != nil {
				return p, err
			}
			p.MoveTimeMs = n
			i++
		case "nodes":
			n, err := int64After(fields, i)
			if err != nil {
				return p, err
			}
			p.Nodes = n
			i++
		case "infinite":
			p.Infinite = true
		}
	}
	return p, nil
}

// MarshalSetOption serializes an option override. UCCI sends the name and
// value directly, without the UCI "name"/"value" keywords.
func MarshalSetOption(name, value string) (string, error) {
	if err := checkLineSafe(name); err != nil {
		return "", fmt.Errorf("option name: %w", err)
	}
	if err := checkLineSafe(value); err != nil {
		return "", fmt.Errorf("option value: %w", err)
	}
	if name == "" {
		return "", fmt.Errorf("option name is empty")
	}
	if value == "" {
		return "setoption " + name, nil
	}
	return "setoption " + name + " " + value, nil
}

func checkLineSafe(s string) error {
	if strings.ContainsAny(s, "\r\n") {
		return fmt.Errorf("embedded line break in %q", s)
	}
	return nil
}

func checkMoveToken(m string) error {
	if m == "" {
		return fmt.Errorf("empty move token")
	}
	if strings.ContainsAny(m, " \t\r\n") {
		return fmt.Errorf("move %q contains whitespace", m)
	}
	return nil
}
