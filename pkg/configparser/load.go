package configparser

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrNoFilePath = errors.New("no file path provided")

// LoadAndParseYaml loads variables from the YAML file into the environment
// and then fills cfg from the environment using `env`/`default` struct tags.
// A missing file is not an error: the environment alone is enough to run.
func LoadAndParseYaml(filepath string, cfg any) error {
	if err := LoadYamlFile(filepath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return ParseEnv(cfg)
}

// LoadYamlFile reads a YAML file and exports its keys as environment
// variables. Nested sections become underscore-joined uppercase prefixes,
// so `database: { host: x }` turns into DATABASE_HOST=x. Values of the form
// ${VAR:-default} resolve against the current environment. Already-set
// environment variables always win.
func LoadYamlFile(filepath string) error {
	if filepath == "" {
		return ErrNoFilePath
	}

	file, err := os.Open(filepath)
	if err != nil {
		return fmt.Errorf("could not open YAML file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	prefixStack := []string{}
	previousIndent := 0

	for scanner.Scan() {
		line := scanner.Text()

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		indent := len(line) - len(strings.TrimLeft(line, " "))

		// Dedent pops finished sections off the prefix stack (2-space indents)
		if indent < previousIndent {
			levelsToPop := (previousIndent - indent) / 2
			for i := 0; i < levelsToPop && len(prefixStack) > 0; i++ {
				prefixStack = prefixStack[:len(prefixStack)-1]
			}
		}
		previousIndent = indent

		// Section header: "database:"
		if strings.HasSuffix(trimmed, ":") && !strings.Contains(trimmed, ": ") {
			prefixStack = append(prefixStack, strings.TrimSuffix(trimmed, ":"))
			continue
		}

		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if value == "" {
			continue
		}

		value = expandEnvDefault(value)

		fullKey := strings.ToUpper(key)
		if len(prefixStack) > 0 {
			fullKey = strings.ToUpper(strings.Join(append(prefixStack, key), "_"))
		}

		if os.Getenv(fullKey) == "" {
			if err := os.Setenv(fullKey, value); err != nil {
				return fmt.Errorf("could not set env var %s: %w", fullKey, err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading YAML file: %w", err)
	}

	return nil
}

// expandEnvDefault resolves ${VAR:-default} substitution syntax.
func expandEnvDefault(value string) string {
	if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return value
	}
	inner := value[2 : len(value)-1]
	name, def, ok := strings.Cut(inner, ":-")
	if !ok {
		return value
	}
	if envValue := os.Getenv(strings.TrimSpace(name)); envValue != "" {
		return envValue
	}
	return strings.TrimSpace(def)
}
