package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// expandEnv replaces ${VAR} and ${VAR:-default}. Unset variables without a
// default expand to the empty string.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v, ok := os.LookupEnv(m[1]); ok && v != "" {
			return v
		}
		return m[2]
	})
}

// expandScalar expands s. A value made of a single reference that resolves
// to a number or boolean keeps that type, so start_block: ${START} decodes.
func expandScalar(s string) interface{} {
	out := expandEnv(s)
	if out == s || envRef.FindString(s) != s {
		return out
	}
	switch out {
	case "true":
		return true
	case "false":
		return false
	}
	if strings.HasPrefix(out, "0x") || strings.HasPrefix(out, "0X") {
		return out
	}
	if n, err := strconv.ParseInt(out, 10, 64); err == nil {
		return n
	}
	if n, err := strconv.ParseUint(out, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(out, 64); err == nil {
		return f
	}
	return out
}

func expandEnvVars(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return expandScalar(val)
	case map[string]interface{}:
		result := make(map[string]interface{}, len(val))
		for k, v := range val {
			result[k] = expandEnvVars(v)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(val))
		for i, v := range val {
			result[i] = expandEnvVars(v)
		}
		return result
	default:
		return v
	}
}
