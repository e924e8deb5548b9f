package iocli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Stdio реализует IO поверх потоков процесса.
// Один буферизованный reader на все вызовы: при вводе из pipe
// ответы на несколько подсказок приходят одним блоком.
type Stdio struct {
	in       *bufio.Reader
	out      io.Writer
	terminal int // дескриптор ввода, если это терминал, иначе -1
}

func NewStdio() IO {
	return New(os.Stdin, os.Stdout)
}

// New создает Stdio; эхо отключается только когда in является терминалом
func New(in io.Reader, out io.Writer) *Stdio {
	s := &Stdio{in: bufio.NewReader(in), out: out, terminal: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		s.terminal = int(f.Fd())
	}
	return s
}

func (s *Stdio) Println(a ...any) {
	_, _ = fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func (s *Stdio) ReadInput(prompt string) (string, error) {
	s.Printf("%s", prompt)
	line, err := s.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// ReadPassword читает секрет без эха; вне терминала как обычную строку
func (s *Stdio) ReadPassword(prompt string) (string, error) {
	if s.terminal < 0 {
		return s.ReadInput(prompt)
	}
	s.Printf("%s", prompt)
	secret, err := term.ReadPassword(s.terminal)
	s.Println("")
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return string(secret), nil
}
