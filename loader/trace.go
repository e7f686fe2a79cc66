// Package loader reads memory access traces for the HIST simulator and
// generates synthetic ones.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Access is one memory access issued by a node.
type Access struct {
	// Node is the issuing node.
	Node int
	// Addr is the byte address accessed.
	Addr uint64
}

// Trace is an ordered list of accesses. Accesses of one node are issued in
// trace order; accesses of different nodes are independent.
type Trace struct {
	Accesses []Access
}

// Len returns the number of accesses.
func (t *Trace) Len() int {
	return len(t.Accesses)
}

// MaxNode returns the largest node id in the trace, or -1 if the trace is
// empty.
func (t *Trace) MaxNode() int {
	max := -1
	for _, a := range t.Accesses {
		if a.Node > max {
			max = a.Node
		}
	}

	return max
}

// Streams splits the trace into one address stream per node.
func (t *Trace) Streams(nodeCount int) ([][]uint64, error) {
	streams := make([][]uint64, nodeCount)
	for i, a := range t.Accesses {
		if a.Node < 0 || a.Node >= nodeCount {
			return nil, fmt.Errorf(
				"access %d: node %d out of range [0, %d)", i, a.Node, nodeCount)
		}
		streams[a.Node] = append(streams[a.Node], a.Addr)
	}

	return streams, nil
}

// Load reads a trace file.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer func() { _ = f.Close() }()

	trace, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trace %s: %w", path, err)
	}

	return trace, nil
}

// Parse reads a trace. Each line holds "<node> <address>"; the address is
// decimal or 0x-prefixed hex. Blank lines and text after '#' are ignored.
func Parse(r io.Reader) (*Trace, error) {
	trace := &Trace{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf(
				"line %d: expected \"<node> <address>\", got %q", lineNo, line)
		}

		node, err := strconv.Atoi(fields[0])
		if err != nil || node < 0 {
			return nil, fmt.Errorf("line %d: invalid node %q", lineNo, fields[0])
		}

		addr, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid address %q: %w",
				lineNo, fields[1], err)
		}

		trace.Accesses = append(trace.Accesses, Access{Node: node, Addr: addr})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return trace, nil
}

// Write writes the trace in the format Parse reads.
func (t *Trace) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, a := range t.Accesses {
		if _, err := fmt.Fprintf(bw, "%d 0x%x\n", a.Node, a.Addr); err != nil {
			return err
		}
	}

	return bw.Flush()
}
