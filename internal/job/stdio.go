package job

import (
	"bytes"
	"strconv"
	"strings"
	"sync"
)

// stdio collects engine output for one instance. Complete stdout lines are
// handed to onLine; all text is forwarded to onText.
type stdio struct {
	mu      sync.Mutex
	line    bytes.Buffer
	stdout  strings.Builder
	keepAll bool

	onText func(text string, stderr bool)
	onLine func(line string)
}

func (s *stdio) Stdout(p []byte) {
	text := string(p)

	s.mu.Lock()
	if s.keepAll {
		s.stdout.WriteString(text)
	}
	var lines []string
	if s.onLine != nil {
		s.line.Write(p)
		for {
			n := bytes.IndexByte(s.line.Bytes(), '\n')
			if n < 0 {
				break
			}
			lines = append(lines, strings.TrimRight(string(s.line.Next(n+1)), "\r\n"))
		}
	}
	s.mu.Unlock()

	if s.onText != nil {
		s.onText(text, false)
	}
	for _, l := range lines {
		s.onLine(l)
	}
}

func (s *stdio) Stderr(p []byte) {
	if s.onText != nil {
		s.onText(string(p), true)
	}
}

func (s *stdio) collected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stdout.String()
}

// parsePageLine recognises the "Page N" lines file devices print per page.
func parsePageLine(line string) (int, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "Page ")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return 0, false
	}
	return n, true
}

// parsePageCount returns the last integer printed on stdout.
func parsePageCount(out string) (int, bool) {
	fields := strings.Fields(out)
	for n := len(fields) - 1; n >= 0; n-- {
		if v, err := strconv.Atoi(fields[n]); err == nil {
			return v, true
		}
	}
	return 0, false
}
