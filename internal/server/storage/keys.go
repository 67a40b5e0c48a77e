package storage

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	underscores = regexp.MustCompile(`_+`)
)

func userPrefix(userID string) string {
	return "users/" + userID + "/"
}

func sanitizeFileName(name string) string {
	name = unsafeChars.ReplaceAllString(strings.TrimSpace(name), "_")
	return underscores.ReplaceAllString(name, "_")
}

// sanitizeFolder cleans each path segment and drops empty ones. Dot-only
// segments are dropped too so a folder can never climb out of the user prefix.
func sanitizeFolder(folder string) string {
	var parts []string
	for _, seg := range strings.Split(folder, "/") {
		seg = unsafeChars.ReplaceAllString(seg, "_")
		if seg == "" || strings.Trim(seg, ".") == "" {
			continue
		}
		parts = append(parts, seg)
	}
	return strings.Join(parts, "/")
}

// objectKey builds users/<userId>[/<folder>]/<uuid>-<file>.
func objectKey(userID, fileName, folder string) string {
	prefix := userPrefix(userID)
	if f := sanitizeFolder(folder); f != "" {
		prefix += f + "/"
	}
	return prefix + uuid.NewString() + "-" + sanitizeFileName(fileName)
}

// ownsKey reports whether key lives inside the user's namespace.
func ownsKey(userID, key string) bool {
	if userID == "" || !strings.HasPrefix(key, userPrefix(userID)) {
		return false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}
