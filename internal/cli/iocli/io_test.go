package iocli

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream(t *testing.T) {
	var out bytes.Buffer
	s := New(strings.NewReader("payload"), &out)

	s.Println("hello", "world")
	s.Printf("wave %d\n", 7)
	require.NoError(t, s.PrintJSON(map[string]int64{"ns://db/A": 3}))

	assert.Equal(t, "hello world\nwave 7\n{\n  \"ns://db/A\": 3\n}\n", out.String())

	in, err := io.ReadAll(s.Input())
	require.NoError(t, err)
	assert.Equal(t, "payload", string(in))
}

func TestNewStdio(t *testing.T) {
	assert.NotNil(t, NewStdio().Input())
}
