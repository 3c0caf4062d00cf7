package db

import (
	"fmt"
	"sort"
	"strings"
)

// npgsqlKeywords maps the ADO.NET keys found in stored PostgreSQL connection
// strings to libpq keywords understood by pgx. Keys absent from the map are
// client pooling knobs with no pgx equivalent and are dropped.
var npgsqlKeywords = map[string]string{
	"host":                      "host",
	"server":                    "host",
	"port":                      "port",
	"database":                  "dbname",
	"username":                  "user",
	"user id":                   "user",
	"userid":                    "user",
	"user":                      "user",
	"password":                  "password",
	"pwd":                       "password",
	"ssl mode":                  "sslmode",
	"sslmode":                   "sslmode",
	"timeout":                   "connect_timeout",
	"application name":          "application_name",
	"search path":               "search_path",
	"target session attributes": "target_session_attrs",
}

// NormalizeConnectionString converts a stored connection string into the form
// the engine's driver expects. SQL Server strings are passed through since the
// driver accepts the ADO.NET format. PostgreSQL strings in ADO.NET
// "Key=Value;" form are rewritten as libpq keyword/value pairs; URLs and
// strings already in keyword form are returned unchanged.
func NormalizeConnectionString(engine Engine, connStr string) (string, error) {
	switch engine {
	case EngineSQLServer:
		return connStr, nil
	case EnginePostgreSQL:
		trimmed := strings.TrimSpace(connStr)
		if strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://") {
			return trimmed, nil
		}
		if !strings.Contains(trimmed, ";") {
			return trimmed, nil
		}
		return npgsqlToKeywords(trimmed)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedEngine, engine)
	}
}

func npgsqlToKeywords(connStr string) (string, error) {
	pairs, err := splitADOConnectionString(connStr)
	if err != nil {
		return "", err
	}

	params := make(map[string]string)
	for _, p := range pairs {
		keyword, known := npgsqlKeywords[strings.ToLower(p.key)]
		if !known {
			continue
		}
		value := p.value
		if keyword == "sslmode" {
			value = strings.ToLower(value)
		}
		params[keyword] = value
	}
	if params["host"] == "" {
		return "", fmt.Errorf("connection string has no host")
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+quoteKeywordValue(params[k]))
	}
	return strings.Join(out, " "), nil
}

type adoPair struct {
	key   string
	value string
}

// splitADOConnectionString tokenizes "Key=Value;" pairs. A value may be
// wrapped in single or double quotes, in which case it can contain ';' and a
// doubled quote stands for one literal quote.
func splitADOConnectionString(s string) ([]adoPair, error) {
	var pairs []adoPair
	i := 0
	for i < len(s) {
		if s[i] == ';' || s[i] == ' ' || s[i] == '\t' {
			i++
			continue
		}

		start := i
		for i < len(s) && s[i] != '=' && s[i] != ';' {
			i++
		}
		if i == len(s) || s[i] == ';' {
			return nil, fmt.Errorf("invalid connection string segment %q", strings.TrimSpace(s[start:i]))
		}
		key := strings.TrimSpace(s[start:i])
		if key == "" {
			return nil, fmt.Errorf("invalid connection string segment at offset %d: empty key", start)
		}
		i++

		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}

		var value string
		if i < len(s) && (s[i] == '"' || s[i] == '\'') {
			quote := s[i]
			i++
			var b strings.Builder
			closed := false
			for i < len(s) {
				if s[i] == quote {
					if i+1 < len(s) && s[i+1] == quote {
						b.WriteByte(quote)
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				b.WriteByte(s[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated quoted value for %q", key)
			}
			for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
				i++
			}
			if i < len(s) && s[i] != ';' {
				return nil, fmt.Errorf("unexpected characters after quoted value for %q", key)
			}
			value = b.String()
		} else {
			vstart := i
			for i < len(s) && s[i] != ';' {
				i++
			}
			value = strings.TrimSpace(s[vstart:i])
		}
		pairs = append(pairs, adoPair{key: key, value: value})
	}
	return pairs, nil
}

func quoteKeywordValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
