// internal/subscription/set.go

// Package subscription хранит множество символов, на которые подписан сервис.
package subscription

import (
	"sort"
	"sync"

	"github.com/YaganovValera/quote-relay/internal/quote"
)

// Set — потокобезопасное множество нормализованных символов.
type Set struct {
	mu      sync.Mutex
	symbols map[string]struct{}
}

// NewSet создаёт множество и засевает его начальными символами.
func NewSet(initial ...string) *Set {
	s := &Set{symbols: make(map[string]struct{}, len(initial))}
	for _, sym := range initial {
		s.Add(sym)
	}
	return s
}

// Add добавляет символ. Возвращает true, если символа ещё не было.
func (s *Set) Add(symbol string) bool {
	symbol = quote.Normalize(symbol)
	if symbol == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.symbols[symbol]; ok {
		return false
	}
	s.symbols[symbol] = struct{}{}
	return true
}

// Remove удаляет символ. Возвращает true, если он был в множестве.
func (s *Set) Remove(symbol string) bool {
	symbol = quote.Normalize(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.symbols[symbol]; !ok {
		return false
	}
	delete(s.symbols, symbol)
	return true
}

func (s *Set) Contains(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.symbols[quote.Normalize(symbol)]
	return ok
}

// List возвращает отсортированную копию.
func (s *Set) List() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		out = append(out, sym)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.symbols)
}
