package prompt

import (
	"io"
	"sync"
)

// Script answers prompts from a fixed list, in order. It is meant for
// non-interactive callers and tests. Once the list is exhausted every
// prompt fails with io.EOF.
type Script struct {
	mu      sync.Mutex
	answers []string
	asked   []string
}

// NewScript returns a Script that will give answers in order.
func NewScript(answers ...string) *Script {
	return &Script{answers: answers}
}

func (s *Script) next(question string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.asked = append(s.asked, question)
	if len(s.answers) == 0 {
		return "", io.EOF
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

// Ask returns the next answer.
func (s *Script) Ask(question string) (string, error) {
	return s.next(question)
}

// Confirm returns whether the next answer is affirmative.
func (s *Script) Confirm(question string) (bool, error) {
	a, err := s.next(question)
	if err != nil {
		return false, err
	}
	return IsYes(a), nil
}

// Password returns the next answer as a secret.
func (s *Script) Password(label string) ([]byte, error) {
	a, err := s.next(label)
	if err != nil {
		return nil, err
	}
	if a == "" {
		return nil, ErrEmptyPassword
	}
	return []byte(a), nil
}

// Asked returns the questions seen so far.
func (s *Script) Asked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.asked...)
}

// Remaining reports how many answers are left.
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers)
}
