package kernel

import "strings"

// BootConfig is a typed view over the optional trailing key=value block
// SUPPLEMENTED FEATURES adds to the boot page: a flat map from
// "section.key" (or bare "key" outside any section) to its string value,
// the same two-level addressing original_source/kernel/source/TOML.c's
// TomlGet builds by concatenating the current [section] onto every key
// it sees. EXOS needs nothing beyond string lookup plus one typed
// convenience accessor (Bool) layered on top; it does not
// reimplement TOML.c's linked-list TOMLITEM storage, a flat map serves
// the same Get(path) contract.
type BootConfig struct {
	values map[string]string
}

// ParseBootConfig scans buf for "[section]" headers and "key = value"
// lines, mirroring TomlParse's line-by-line state machine: '#' starts a
// comment, leading/trailing whitespace is trimmed from both key and
// value, a surrounding pair of double quotes is stripped from the
// value, and a NUL byte (buf is a fixed-size page, not a C string)
// terminates the scan early. A buf with no parseable lines yields an
// empty, all-defaults BootConfig rather than an error: "absent block ⇒
// all defaults."
func ParseBootConfig(buf []byte) BootConfig {
	if i := indexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}

	cfg := BootConfig{values: map[string]string{}}
	section := ""

	for _, line := range strings.Split(string(buf), "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") {
			if end := strings.IndexByte(line, ']'); end > 0 {
				section = strings.TrimSpace(line[1:end])
			}
			continue
		}

		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		value = strings.Trim(value, `"`)
		if key == "" {
			continue
		}

		fullKey := key
		if section != "" {
			fullKey = section + "." + key
		}
		cfg.values[fullKey] = value
	}

	return cfg
}

func indexByte(buf []byte, b byte) int {
	for i, c := range buf {
		if c == b {
			return i
		}
	}
	return -1
}

// Get returns the raw string value stored at path ("section.key" or
// "key"), and whether it was present at all.
func (c BootConfig) Get(path string) (string, bool) {
	v, ok := c.values[path]
	return v, ok
}

// Bool reports the value at path as a boolean ("1"/"true" ⇒ true,
// anything else present ⇒ false), or def if path is absent.
func (c BootConfig) Bool(path string, def bool) bool {
	v, ok := c.values[path]
	if !ok {
		return def
	}
	return v == "1" || strings.EqualFold(v, "true")
}

// Len reports how many key=value pairs were parsed, mainly so callers
// (and tests) can distinguish "no block present" from "block present
// but empty".
func (c BootConfig) Len() int {
	return len(c.values)
}
