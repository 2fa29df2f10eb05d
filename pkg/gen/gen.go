// Package gen provides deterministic key and unique filename generation.
package gen

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const sep = "|"

const (
	suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	suffixLen      = 6
	maxBaseLen     = 80
)

// Key joins the parts with an explicit separator so that distinct
// (quality, format) pairs for the same URL never collide.
func Key(parts ...string) string {
	return strings.Join(parts, sep)
}

// ResourceKey derives the deterministic identity used for locking and
// caching from a normalized URL, quality and format.
func ResourceKey(url, quality, format string) string {
	key := Key(url, quality, format)

	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// UniqueFilename builds an output path under dir that no two concurrent
// jobs can share: sanitized base name, millisecond timestamp, pid and a
// short random suffix.
func UniqueFilename(dir, base, ext string) string {
	name := fmt.Sprintf("%s_%d_%d_%s",
		SanitizeBase(base),
		time.Now().UnixMilli(),
		os.Getpid(),
		randomSuffix())

	if ext != "" {
		name += "." + strings.TrimPrefix(ext, ".")
	}

	return filepath.Join(dir, name)
}

// SanitizeBase strips path separators and filesystem-hostile characters
// from a proposed base name and bounds its length.
func SanitizeBase(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return "download"
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "download"
	}

	if len(out) > maxBaseLen {
		out = out[:maxBaseLen]
	}

	return out
}

func randomSuffix() string {
	b := make([]byte, suffixLen)
	for i := range b {
		b[i] = suffixAlphabet[rand.IntN(len(suffixAlphabet))]
	}

	return string(b)
}
