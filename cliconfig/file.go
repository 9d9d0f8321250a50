package cliconfig

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// File is an ini-style config file: KEY=value lines, # comments.
type File struct {
	// The path to the file.
	Path string

	// The key/values loaded from the file.
	Config map[string]string
}

func (f *File) Load() error {
	f.Config = map[string]string{}

	absolutePath, err := f.AbsolutePath()
	if err != nil {
		return fmt.Errorf("getting absolute path for %s: %w", f.Path, err)
	}

	file, err := os.Open(absolutePath)
	if err != nil {
		return fmt.Errorf("opening file %s: %w", f.Path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if isIgnoredLine(line) {
			continue
		}
		key, value, err := parseLine(line)
		if err != nil {
			return fmt.Errorf("parsing config line %d: %w", lineNum, err)
		}
		f.Config[key] = value
	}
	return scanner.Err()
}

func (f File) AbsolutePath() (string, error) {
	return normalizeFilePath(f.Path)
}

func (f File) Exists() bool {
	absolutePath, err := f.AbsolutePath()
	if err != nil {
		return false
	}
	_, err = os.Stat(absolutePath)
	return err == nil
}

// normalizeFilePath expands a leading ~ and makes the path absolute.
func normalizeFilePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		usr, err := user.Current()
		if err != nil {
			return "", fmt.Errorf("expanding ~ in %q: %w", path, err)
		}
		path = filepath.Join(usr.HomeDir, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

func parseLine(line string) (key, value string, err error) {
	if len(line) == 0 {
		return "", "", errors.New("zero length string")
	}

	k, v, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", fmt.Errorf("can't separate key from value in %q, no = found", line)
	}

	key = strings.TrimSpace(k)
	value = strings.TrimSpace(v)

	// Strip paired quotes off the edges.
	if strings.Count(value, `"`) == 2 || strings.Count(value, "'") == 2 {
		value = strings.Trim(value, `"'`)
		value = strings.ReplaceAll(value, `\"`, `"`)
		value = strings.ReplaceAll(value, `\n`, "\n")
	}

	return key, value, nil
}

func isIgnoredLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return len(trimmed) == 0 || strings.HasPrefix(trimmed, "#")
}
