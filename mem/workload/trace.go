// Package workload reads access traces into requests.
//
// A trace has one access per line:
//
//	op address base arrival
//
// where op is r or w, base is 2, 10, or 16 and tells how address is written,
// and arrival is the cycle at which the access is issued. Blank lines and
// lines starting with # are skipped.
package workload

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/cachesim/mem/mem"
	"github.com/sarchlab/cachesim/sim"
)

// WritePayloadBase is the value written by the first write of a trace. Every
// later write carries one less.
const WritePayloadBase = 100

// A MalformedInstructionError reports a trace line that cannot be parsed.
type MalformedInstructionError struct {
	Line   int
	Text   string
	Reason string
}

func (e *MalformedInstructionError) Error() string {
	return fmt.Sprintf("line %d %q: %s", e.Line, e.Text, e.Reason)
}

// A Parser turns trace lines into requests. Request IDs come from the ID
// generator, so one parser should be used per trace.
type Parser struct {
	idGen  sim.IDGenerator
	line   int
	writes int
}

// NewParser creates a parser.
func NewParser(idGen sim.IDGenerator) *Parser {
	return &Parser{idGen: idGen}
}

// ParseLine parses the next line of a trace. It returns nil and no error for
// lines without an access.
func (p *Parser) ParseLine(text string) (*mem.Request, error) {
	p.line++

	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, nil
	}

	fields := strings.Fields(trimmed)
	if len(fields) != 4 {
		return nil, p.malformed(text, "expected 4 fields, found %d", len(fields))
	}

	addr, err := parseAddress(fields[1], fields[2])
	if err != nil {
		return nil, p.malformed(text, "%v", err)
	}

	arrival, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return nil, p.malformed(text, "bad arrival cycle %q", fields[3])
	}

	switch strings.ToLower(fields[0]) {
	case "r":
		return mem.ReadReqBuilder{}.
			WithID(p.idGen.Generate()).
			WithAddress(addr).
			WithReadyTime(sim.Cycle(arrival)).
			Build(), nil
	case "w":
		data := WritePayloadBase - p.writes
		p.writes++

		return mem.WriteReqBuilder{}.
			WithID(p.idGen.Generate()).
			WithAddress(addr).
			WithData(data).
			WithReadyTime(sim.Cycle(arrival)).
			Build(), nil
	default:
		return nil, p.malformed(text, "unknown operation %q", fields[0])
	}
}

func (p *Parser) malformed(text, format string, args ...any) error {
	return &MalformedInstructionError{
		Line:   p.line,
		Text:   text,
		Reason: fmt.Sprintf(format, args...),
	}
}

func parseAddress(text, baseText string) (uint64, error) {
	base, err := strconv.Atoi(baseText)
	if err != nil {
		return 0, fmt.Errorf("bad base %q", baseText)
	}

	lower := strings.ToLower(text)

	switch base {
	case 2:
		lower = strings.TrimPrefix(lower, "0b")
	case 16:
		lower = strings.TrimPrefix(lower, "0x")
	case 10:
	default:
		return 0, fmt.Errorf("base %d is not 2, 10, or 16", base)
	}

	addr, err := strconv.ParseUint(lower, base, 64)
	if err != nil {
		return 0, fmt.Errorf("bad base-%d address %q", base, text)
	}

	return addr, nil
}

// Parse reads a whole trace. Malformed lines are skipped and returned in
// order; they never stop the parsing. The error is only set if reading fails.
func (p *Parser) Parse(r io.Reader) (
	reqs []*mem.Request,
	malformed []error,
	err error,
) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		req, lineErr := p.ParseLine(scanner.Text())
		if lineErr != nil {
			malformed = append(malformed, lineErr)
			continue
		}

		if req != nil {
			reqs = append(reqs, req)
		}
	}

	if err := scanner.Err(); err != nil {
		return reqs, malformed, fmt.Errorf("reading trace: %w", err)
	}

	return reqs, malformed, nil
}

// LoadTrace parses the trace file at path.
func LoadTrace(path string, idGen sim.IDGenerator) (
	reqs []*mem.Request,
	malformed []error,
	err error,
) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening trace: %w", err)
	}
	defer f.Close()

	return NewParser(idGen).Parse(f)
}
