package pc

import (
	"strings"
	"sync"
	"time"
)

// Dummy Executor for unit tests to mock a remote host.
// Commands are matched against registered substrings in the order
// they were registered; unmatched commands get Default.

type DummyResponse struct {
	ExitCode int
	Out      string
	ErrOut   string
	Err      error
}

type dummyMatch struct {
	contains string
	resps    []DummyResponse
}

type DummyClient struct {
	Name     string
	Default  DummyResponse
	WriteErr error
	Cmds     []string
	Files    map[string]string
	Closed   bool
	matches  []*dummyMatch
	mux      sync.Mutex
}

func NewDummyClient(name string) *DummyClient {
	return &DummyClient{
		Name:  name,
		Files: make(map[string]string),
	}
}

// On registers responses for commands containing substr. Each match
// consumes the next response; the last one repeats.
func (s *DummyClient) On(substr string, resps ...DummyResponse) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.matches = append(s.matches, &dummyMatch{
		contains: substr,
		resps:    resps,
	})
}

func (s *DummyClient) Execute(command string, timeout time.Duration) (int, string, string, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.Cmds = append(s.Cmds, command)
	resp := s.Default
	for _, m := range s.matches {
		if !strings.Contains(command, m.contains) || len(m.resps) == 0 {
			continue
		}
		resp = m.resps[0]
		if len(m.resps) > 1 {
			m.resps = m.resps[1:]
		}
		break
	}
	return resp.ExitCode, resp.Out, resp.ErrOut, resp.Err
}

func (s *DummyClient) WriteFile(path, content string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.Files[path] = content
	return nil
}

func (s *DummyClient) Close() error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.Closed = true
	return nil
}

// CmdsContaining returns the executed commands containing substr.
func (s *DummyClient) CmdsContaining(substr string) []string {
	s.mux.Lock()
	defer s.mux.Unlock()
	out := []string{}
	for _, cmd := range s.Cmds {
		if strings.Contains(cmd, substr) {
			out = append(out, cmd)
		}
	}
	return out
}
