package iocli

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedStdio(input string) (*Stdio, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return New(strings.NewReader(input), out), out
}

func TestNewStdio(t *testing.T) {
	assert.NotNil(t, NewStdio())
}

func TestPrintlnPrintfWrite(t *testing.T) {
	stdio, out := newBufferedStdio("")

	stdio.Println("hello", "world")
	stdio.Printf("test %d %s\n", 1, "abc")
	n, err := stdio.Write([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, "hello world\ntest 1 abc\nraw", out.String())
}

// Несколько ответов из pipe, записанных одним блоком
func TestReadInput_Pipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	go func() {
		_, _ = w.Write([]byte("tablet-01\nkey-123\ns3cret\n"))
		_ = w.Close()
	}()

	stdio := New(r, io.Discard)
	assert.Equal(t, -1, stdio.terminal)

	deviceID, err := stdio.ReadInput("Device ID: ")
	require.NoError(t, err)
	key, err := stdio.ReadPassword("Enrollment key: ")
	require.NoError(t, err)
	secret, err := stdio.ReadPassword("Device secret: ")
	require.NoError(t, err)

	assert.Equal(t, []string{"tablet-01", "key-123", "s3cret"}, []string{deviceID, key, secret})

	_, err = stdio.ReadInput("More: ")
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadInput_WithoutTrailingNewline(t *testing.T) {
	stdio, out := newBufferedStdio("  last line  ")

	result, err := stdio.ReadInput("Name: ")
	require.NoError(t, err)
	assert.Equal(t, "last line", result)
	assert.Equal(t, "Name: ", out.String())
}

func TestReadInput_EmptyInput(t *testing.T) {
	stdio, _ := newBufferedStdio("")

	_, err := stdio.ReadInput("Name: ")
	assert.Error(t, err)
}

func TestReadPassword_NonTerminal(t *testing.T) {
	stdio, out := newBufferedStdio("s3cret-value\n")

	secret, err := stdio.ReadPassword("Secret: ")
	require.NoError(t, err)
	assert.Equal(t, "s3cret-value", secret)
	assert.Equal(t, "Secret: ", out.String())
}
