// Package cli parses operator console input
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMaliciousInput is returned for input carrying shell or traversal patterns
var ErrMaliciousInput = errors.New("potentially malicious input detected")

// ValidateInput checks for command chaining and path traversal patterns
func ValidateInput(input string) error {
	if strings.Contains(input, ";") || strings.Contains(input, "&&") || strings.Contains(input, "||") {
		return ErrMaliciousInput
	}
	if strings.Contains(input, "../") || strings.Contains(input, "..\\") {
		return ErrMaliciousInput
	}
	return nil
}

// Command is one parsed console line
type Command struct {
	Name string
	Args []string
}

// ParseCommand validates line and splits it into a lower-cased command name
// and its arguments. An empty line yields an empty Name.
func ParseCommand(line string) (Command, error) {
	if err := ValidateInput(line); err != nil {
		return Command{}, err
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, nil
	}
	return Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}, nil
}

// Want fails unless the command has at least n arguments
func (c Command) Want(n int, usage string) error {
	if len(c.Args) < n {
		return fmt.Errorf("usage: %s %s", c.Name, usage)
	}
	return nil
}

// Int32 parses argument i
func (c Command) Int32(i int) (int32, error) {
	v, err := strconv.ParseInt(c.Args[i], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("argument %d: %q is not an integer", i+1, c.Args[i])
	}
	return int32(v), nil
}

// Float parses argument i
func (c Command) Float(i int) (float64, error) {
	v, err := strconv.ParseFloat(c.Args[i], 64)
	if err != nil {
		return 0, fmt.Errorf("argument %d: %q is not a number", i+1, c.Args[i])
	}
	return v, nil
}
