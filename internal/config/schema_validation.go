package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	wardenschema "github.com/Paintersrp/warden/schema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	schemaOnce   sync.Once
	configSchema *jsonschema.Schema
	schemaErr    error
)

func loadConfigSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("warden.v1.json", bytes.NewReader(wardenschema.WardenV1Schema)); err != nil {
			schemaErr = fmt.Errorf("add config schema resource: %w", err)
			return
		}
		configSchema, schemaErr = compiler.Compile("warden.v1.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile config schema: %w", schemaErr)
		}
	})
	if schemaErr != nil {
		return nil, schemaErr
	}
	return configSchema, nil
}

func validateAgainstSchema(doc map[string]any) error {
	schema, err := loadConfigSchema()
	if err != nil {
		return fmt.Errorf("load config schema: %w", err)
	}

	normalized, err := normalizeForSchema(doc)
	if err != nil {
		return fmt.Errorf("prepare config for schema validation: %w", err)
	}

	if err := schema.Validate(normalized); err != nil {
		var vErr *jsonschema.ValidationError
		if errors.As(err, &vErr) {
			return fmt.Errorf("invalid warden configuration:\n%s", describeIssues(vErr))
		}
		return fmt.Errorf("invalid warden configuration: %w", err)
	}
	return nil
}

func normalizeForSchema(doc map[string]any) (any, error) {
	buf := &bytes.Buffer{}
	encoder := json.NewEncoder(buf)
	if err := encoder.Encode(doc); err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(buf.Bytes()))
	decoder.UseNumber()
	var out any
	if err := decoder.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// fieldFlags names the run flag that overrides each configuration field.
var fieldFlags = map[string]string{
	"command":         "command arguments",
	"log":             "arguments after --",
	"pidFile":         "-p/--pid-file",
	"env":             "-E/--env",
	"user":            "-u/--user",
	"logUser":         "-U/--log-user",
	"redirectStderr":  "-e/--redirect-stderr",
	"exitOnSuccess":   "-1/--exit-on-success",
	"forward.command": "-s/--forward-cmd",
	"forward.log":     "-S/--forward-log",
	"timeout":         "-t/--timeout",
	"interval":        "-i/--interval",
	"stopTimeout":     "--stop-timeout",
	"load.high":       "-L/--load-high",
	"load.low":        "-l/--load-low",
	"limits":          "-r/--limit",
	"logging.level":   "--log-level",
	"logging.format":  "--log-format",
	"api.addr":        "--api",
	"status":          "--status",
}

type schemaIssue struct {
	field   string
	flag    string
	message string
}

func (i schemaIssue) String() string {
	if i.flag == "" {
		return fmt.Sprintf("- %s: %s", i.field, i.message)
	}
	return fmt.Sprintf("- %s (%s): %s", i.field, i.flag, i.message)
}

// describeIssues lists the leaf errors of err, one per line. Wrapper errors
// such as "doesn't validate with" only repeat their causes and are skipped.
func describeIssues(err *jsonschema.ValidationError) string {
	var lines []string
	seen := map[string]bool{}
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, cause := range e.Causes {
				walk(cause)
			}
			return
		}
		line := issueAt(e.InstanceLocation, e.Message).String()
		if !seen[line] {
			seen[line] = true
			lines = append(lines, line)
		}
	}
	walk(err)
	return strings.Join(lines, "\n")
}

// issueAt turns a JSON pointer such as /limits/0 into limits[0] and looks up
// the flag for the field it points into.
func issueAt(ptr, message string) schemaIssue {
	var field, key strings.Builder
	for _, segment := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		if segment == "" {
			continue
		}
		segment = strings.ReplaceAll(strings.ReplaceAll(segment, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(segment); err == nil {
			fmt.Fprintf(&field, "[%s]", segment)
			continue
		}
		if field.Len() > 0 {
			field.WriteByte('.')
			key.WriteByte('.')
		}
		field.WriteString(segment)
		key.WriteString(segment)
	}
	if field.Len() == 0 {
		return schemaIssue{field: "config", message: message}
	}
	return schemaIssue{field: field.String(), flag: fieldFlags[key.String()], message: message}
}
