// Package cliconfig loads command configuration structs from urfave/cli
// contexts and optional config files, driven by struct tags:
//
//	cli:"flag-name"      bind to a flag, or "arg:0" for a positional arg
//	validate:"required"  validation rules, comma separated
//	normalize:"filepath" normalizations to apply after loading
//	label:"nice name"    name used in validation error messages
package cliconfig

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/oleiade/reflections"
	"github.com/urfave/cli"
)

type Loader struct {
	// The context passed to the urfave/cli action.
	CLI *cli.Context

	// The struct the config values are loaded into.
	Config any

	// Paths to try as config files when --config is not given.
	DefaultConfigFilePaths []string

	// The file that was used when loading this configuration, if any.
	File *File
}

// Matches "arg:index" (a specific non-flag arg).
var argCLINameRE = regexp.MustCompile(`arg:(\d+)`)

// Load populates l.Config from the CLI context and any config file found.
func (l *Loader) Load() error {
	if err := l.findConfigFile(); err != nil {
		return err
	}
	if l.File != nil {
		if err := l.File.Load(); err != nil {
			return fmt.Errorf("loading config file: %w", err)
		}
	}

	fields, err := reflections.FieldsDeep(l.Config)
	if err != nil {
		return fmt.Errorf("listing fields of %T: %w", l.Config, err)
	}

	for _, fieldName := range fields {
		cliName, _ := reflections.GetFieldTag(l.Config, fieldName, "cli")
		if cliName != "" {
			if err := l.setFieldValueFromCLI(fieldName, cliName); err != nil {
				return fmt.Errorf("setting config field %s: %w", fieldName, err)
			}
		}

		normalization, _ := reflections.GetFieldTag(l.Config, fieldName, "normalize")
		if normalization != "" {
			if err := l.normalizeField(fieldName, normalization); err != nil {
				return fmt.Errorf("normalizing config field %s: %w", fieldName, err)
			}
		}

		validationRules, _ := reflections.GetFieldTag(l.Config, fieldName, "validate")
		if validationRules != "" {
			// The label tag gives validation errors a human name for the
			// field, falling back to the flag name.
			label, _ := reflections.GetFieldTag(l.Config, fieldName, "label")
			if label == "" {
				label = cliName
			}
			if label == "" {
				label = fieldName
			}
			if err := l.validateField(fieldName, label, validationRules); err != nil {
				return err
			}
		}
	}

	return nil
}

func (l *Loader) findConfigFile() error {
	if path := l.CLI.String("config"); path != "" {
		file := File{Path: path}
		// This file was asked for explicitly, so a missing one is an error.
		if !file.Exists() {
			abs, _ := file.AbsolutePath()
			return fmt.Errorf("a configuration file could not be found at %q", abs)
		}
		l.File = &file
		return nil
	}
	for _, path := range l.DefaultConfigFilePaths {
		file := File{Path: path}
		if file.Exists() {
			l.File = &file
			return nil
		}
	}
	return nil
}

func (l *Loader) setFieldValueFromCLI(fieldName, cliName string) error {
	fieldKind, err := reflections.GetFieldKind(l.Config, fieldName)
	if err != nil {
		return fmt.Errorf("getting the kind of struct field %q: %w", fieldName, err)
	}

	var value any

	if argMatch := argCLINameRE.FindStringSubmatch(cliName); len(argMatch) > 0 {
		argIndex, err := strconv.Atoi(argMatch[1])
		if err != nil {
			return err
		}
		if len(l.CLI.Args()) > argIndex {
			value = l.CLI.Args()[argIndex]
		}
	} else {
		// Default to whatever a config file provided.
		if l.File != nil {
			if fileValue, ok := l.File.Config[cliName]; ok {
				switch fieldKind {
				case reflect.String:
					value = fileValue
				case reflect.Slice:
					value = strings.Split(fileValue, ",")
				case reflect.Bool:
					value, _ = strconv.ParseBool(fileValue)
				case reflect.Int:
					value, _ = strconv.Atoi(fileValue)
				default:
					return fmt.Errorf("unable to convert string to kind %s", fieldKind)
				}
			}
		}

		// A value set through the CLI (flag or its env var) wins.
		if value == nil || l.cliValueIsSet(cliName) {
			switch fieldKind {
			case reflect.String:
				value = l.CLI.String(cliName)
			case reflect.Slice:
				value = l.CLI.StringSlice(cliName)
			case reflect.Bool:
				value = l.CLI.Bool(cliName)
			case reflect.Int:
				value = l.CLI.Int(cliName)
			default:
				return fmt.Errorf("unable to handle kind %s", fieldKind)
			}
		}
	}

	if value != nil {
		if err := reflections.SetField(l.Config, fieldName, value); err != nil {
			return fmt.Errorf("setting field %q to %q: %w", fieldName, value, err)
		}
	}
	return nil
}

func (l *Loader) Errorf(format string, v ...any) error {
	suffix := fmt.Sprintf(" See: `%s %s --help`", l.CLI.App.Name, l.CLI.Command.Name)
	return fmt.Errorf(format+suffix, v...)
}

func (l *Loader) cliValueIsSet(cliName string) bool {
	if l.CLI.IsSet(cliName) {
		return true
	}
	// cli.Context.IsSet only checks flags set on the command line, not via
	// the environment, so look up the flag's EnvVar ourselves.
	for _, flag := range l.CLI.Command.Flags {
		name, _ := reflections.GetField(flag, "Name")
		envVar, _ := reflections.GetField(flag, "EnvVar")
		if name == cliName && envVar != "" {
			if envVarStr, ok := envVar.(string); ok {
				return os.Getenv(strings.TrimSpace(envVarStr)) != ""
			}
		}
	}
	return false
}

func (l *Loader) fieldValueIsEmpty(fieldName string) bool {
	value, _ := reflections.GetField(l.Config, fieldName)
	fieldKind, _ := reflections.GetFieldKind(l.Config, fieldName)

	switch fieldKind {
	case reflect.String:
		return value == ""
	case reflect.Slice:
		return reflect.ValueOf(value).Len() == 0
	case reflect.Bool:
		return value == false
	case reflect.Int:
		return value == 0
	default:
		panic(fmt.Sprintf("can't determine emptiness for field kind %s", fieldKind))
	}
}

func (l *Loader) validateField(fieldName, label, validationRules string) error {
	for _, rule := range strings.Split(validationRules, ",") {
		switch rule {
		case "required":
			if l.fieldValueIsEmpty(fieldName) {
				return l.Errorf("Missing %s.", label)
			}

		case "file-exists":
			value, _ := reflections.GetField(l.Config, fieldName)
			if path, ok := value.(string); ok && path != "" {
				if _, err := os.Stat(path); err != nil {
					return fmt.Errorf("couldn't find %s located at %s: %w", label, path, err)
				}
			}

		default:
			return fmt.Errorf("unknown config validation rule %q", rule)
		}
	}
	return nil
}

func (l *Loader) normalizeField(fieldName, normalization string) error {
	switch normalization {
	case "filepath":
		value, _ := reflections.GetField(l.Config, fieldName)
		path, ok := value.(string)
		if !ok {
			return fmt.Errorf("filepath normalization only works on string fields")
		}
		normalized, err := normalizeFilePath(path)
		if err != nil {
			return err
		}
		return reflections.SetField(l.Config, fieldName, normalized)

	case "list":
		value, _ := reflections.GetField(l.Config, fieldName)
		items, ok := value.([]string)
		if !ok {
			return fmt.Errorf("list normalization only works on []string fields")
		}
		normalized := []string{}
		for _, item := range items {
			// Values with commas split into multiple items.
			for _, split := range strings.Split(item, ",") {
				split = strings.TrimSpace(split)
				if split == "" {
					continue
				}
				normalized = append(normalized, split)
			}
		}
		return reflections.SetField(l.Config, fieldName, normalized)

	default:
		return fmt.Errorf("unknown normalization %q", normalization)
	}
}
