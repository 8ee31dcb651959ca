package config

import (
	"errors"
	"strings"
)

var errMultiStringSetEmptyValue = errors.New("value cannot be empty")

const defaultSeparator = ","

// MultiStringFlag is a flag.Value for repeatable flags. Every occurrence may
// hold several values joined by the separator.
//
// e.g.: -listen-http 127.0.0.1:80,[::1]:80 -listen-http 127.0.0.1:8080
type MultiStringFlag struct {
	value     []string
	separator string
}

// NewMultiStringFlag returns an empty flag splitting on separator
func NewMultiStringFlag(separator string) MultiStringFlag {
	return MultiStringFlag{separator: separator}
}

// String returns the occurrences joined with the separator
func (s *MultiStringFlag) String() string {
	return strings.Join(s.value, s.sep())
}

// Set records one occurrence of the flag
func (s *MultiStringFlag) Set(value string) error {
	if strings.TrimSpace(value) == "" {
		return errMultiStringSetEmptyValue
	}

	s.value = append(s.value, value)

	return nil
}

// Split returns the values of every occurrence with surrounding blanks
// trimmed. Empty values are dropped.
func (s *MultiStringFlag) Split() []string {
	var result []string

	for _, occurrence := range s.value {
		for _, value := range strings.Split(occurrence, s.sep()) {
			if value = strings.TrimSpace(value); value != "" {
				result = append(result, value)
			}
		}
	}

	return result
}

// Len is the number of values Split returns
func (s *MultiStringFlag) Len() int {
	return len(s.Split())
}

func (s *MultiStringFlag) sep() string {
	if s.separator == "" {
		return defaultSeparator
	}

	return s.separator
}
