// Package stocklist reads stock code lists and derives feed output names.
package stocklist

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmptyList is returned when a source holds no stock codes.
var ErrEmptyList = errors.New("stock list is empty")

const outputSuffix = "_rss.xml"

// ReadFile reads one stock code per line, skipping blank lines.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stock list: %w", err)
	}
	defer f.Close()

	var codes []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if code := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff")); code != "" {
			codes = append(codes, code)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stock list: %w", err)
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyList)
	}
	return codes, nil
}

// ParseList splits a comma-separated value such as an environment variable.
func ParseList(raw string) ([]string, error) {
	var codes []string
	for _, part := range strings.Split(raw, ",") {
		if code := strings.TrimSpace(part); code != "" {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return nil, ErrEmptyList
	}
	return codes, nil
}

// FromEnv reads and parses the named environment variable.
func FromEnv(name string) ([]string, error) {
	codes, err := ParseList(os.Getenv(name))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return codes, nil
}

// OutputNameFor derives the feed path for a list file: my_stocks.txt -> my_stocks_rss.xml.
func OutputNameFor(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + outputSuffix
}
