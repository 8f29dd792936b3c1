package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrEmptySessionName   = fmt.Errorf("session name cannot be empty")
	ErrInvalidSessionName = fmt.Errorf("invalid session name")

	windowsReservedNames = map[string]bool{
		"con": true, "prn": true, "aux": true, "nul": true,
		"com1": true, "com2": true, "com3": true, "com4": true,
		"com5": true, "com6": true, "com7": true, "com8": true, "com9": true,
		"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
		"lpt5": true, "lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
	}
)

// ValidateSessionName rejects names that could escape the session image root
// or collide with reserved filenames; session names become directory names.
func ValidateSessionName(name string) error {
	if name == "" {
		return ErrEmptySessionName
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidSessionName, name)
	}
	if name == "." || name == ".." || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidSessionName, name)
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "-") {
		return fmt.Errorf("%w: %q starts with %q", ErrInvalidSessionName, name, name[:1])
	}
	if windowsReservedNames[strings.ToLower(name)] {
		return fmt.Errorf("%w: %q is a reserved name", ErrInvalidSessionName, name)
	}
	return nil
}

// SanitizeFilename strips characters that are unsafe in output filenames.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-",
		"*", "", "?", "", "\"", "",
		"<", "", ">", "", "|", "", "\x00", "",
	)
	sanitized := replacer.Replace(name)
	sanitized = strings.TrimLeft(sanitized, ".-")
	sanitized = strings.TrimRight(sanitized, ". ")

	nameWithoutExt := strings.TrimSuffix(strings.ToLower(sanitized), filepath.Ext(sanitized))
	if windowsReservedNames[nameWithoutExt] {
		sanitized = sanitized + "_"
	}

	if sanitized == "" {
		sanitized = "file"
	}

	return sanitized
}
