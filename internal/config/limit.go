package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Unlimited is the "*" sentinel of per-stage contact limits.
const Unlimited Limit = -1

// Limit is a per-run contact count; "*" in YAML means unlimited.
type Limit int

func (l Limit) IsUnlimited() bool { return l < 0 }

// Int returns the limit as a store query limit (0 = unlimited).
func (l Limit) Int() int {
	if l.IsUnlimited() {
		return 0
	}
	return int(l)
}

func (l Limit) String() string {
	if l.IsUnlimited() {
		return "*"
	}
	return strconv.Itoa(int(l))
}

func ParseLimit(s string) (Limit, error) {
	s = strings.TrimSpace(s)
	if s == "*" {
		return Unlimited, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q: want a non-negative integer or \"*\"", s)
	}
	return Limit(n), nil
}

func (l *Limit) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseLimit(value.Value)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func (l Limit) MarshalYAML() (any, error) {
	if l.IsUnlimited() {
		return "*", nil
	}
	return int(l), nil
}
