// Package iocli abstracts the terminal used by wavectl so commands can be tested.
package iocli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// IO is the input and output of a command
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	PrintJSON(v any) error
	Input() io.Reader
}

// Stream implements IO over arbitrary reader and writer
type Stream struct {
	in  io.Reader
	out io.Writer
}

// New returns IO reading from in and writing to out
func New(in io.Reader, out io.Writer) *Stream {
	return &Stream{in: in, out: out}
}

// NewStdio returns IO over the process stdin and stdout
func NewStdio() *Stream {
	return New(os.Stdin, os.Stdout)
}

func (s *Stream) Println(a ...any) {
	_, _ = fmt.Fprintln(s.out, a...)
}

func (s *Stream) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.out, format, a...)
}

// PrintJSON пишет v как JSON с отступами
func (s *Stream) PrintJSON(v any) error {
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (s *Stream) Input() io.Reader {
	return s.in
}
