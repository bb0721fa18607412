package main

import (
	"fmt"
	"strconv"
	"strings"
)

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// parseConfigPairs turns repeated key=value flags into a workload config map,
// coercing each value to the narrowest type that parses.
func parseConfigPairs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	cfg := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, raw, err := splitPair(p)
		if err != nil {
			return nil, err
		}
		cfg[key] = coerceValue(raw)
	}
	return cfg, nil
}

// parseTagPairs turns repeated key=value flags into a tag map. Tag values
// stay strings.
func parseTagPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	tags := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, raw, err := splitPair(p)
		if err != nil {
			return nil, err
		}
		tags[key] = raw
	}
	return tags, nil
}

func splitPair(p string) (string, string, error) {
	key, value, found := strings.Cut(p, "=")
	if !found || key == "" {
		return "", "", fmt.Errorf("invalid key=value pair %q", p)
	}
	return key, value, nil
}

// coerceValue tries int, then float, then bool, then falls back to string.
// Only the literals "true" and "false" (any case) coerce to bool; short forms
// like "t" or "1" stay what the earlier steps made of them.
func coerceValue(raw string) any {
	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}
