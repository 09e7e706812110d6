package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// envVarPatterns matches the three env-var reference forms a config
// file may use, checked most-specific first so ${VAR:-default} isn't
// partially consumed by the ${VAR} pattern.
type envVarPatternSet struct {
	withDefault *regexp.Regexp
	braced      *regexp.Regexp
	simple      *regexp.Regexp
}

var envVarPatterns = envVarPatternSet{
	withDefault: regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`),
	braced:      regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`),
	simple:      regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`),
}

// expandEnvVars resolves ${VAR:-default}, ${VAR}, and $VAR references
// in s against the process environment.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	s = envVarPatterns.withDefault.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPatterns.withDefault.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(groups[1]); ok {
			return v
		}
		return groups[2]
	})

	s = envVarPatterns.braced.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPatterns.braced.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})

	s = envVarPatterns.simple.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPatterns.simple.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})

	return s
}

// parseValue coerces a string into a bool, int, or float64 when it
// looks like one, leaving it as a string otherwise. Applied only to
// values that came from env-var expansion, since yaml already typed
// its own literals.
func parseValue(value string) interface{} {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

// expandEnvVarsInData walks a decoded YAML value (map/slice/string)
// recursively, expanding and re-typing every string leaf.
func expandEnvVarsInData(data interface{}) interface{} {
	switch v := data.(type) {
	case string:
		expanded := expandEnvVars(v)
		if expanded == v {
			return v
		}
		return parseValue(expanded)
	case map[string]interface{}:
		for k, val := range v {
			v[k] = expandEnvVarsInData(val)
		}
		return v
	case []interface{}:
		for i, val := range v {
			v[i] = expandEnvVarsInData(val)
		}
		return v
	default:
		return data
	}
}

// LoadEnvFiles loads .env.local then .env into the process environment,
// tolerating either file's absence. Existing environment variables are
// never overwritten, matching godotenv's default behavior.
func LoadEnvFiles() error {
	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
