// Package backup implements the backup engine: filename-encoded backup
// records, listing, creation with retention, deletion, and restore.
// Grounded on the teacher's internal/backup/manager.go, adapted from its
// zip scheme to the tar.gz scheme this specification requires.
package backup

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Lmdudester/Garcon/internal/domain"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

var filenamePattern = regexp.MustCompile(`^backup-(\d{4}-\d{2}-\d{2}T\d{2})-(\d{2})-(\d{2})-(\d{3}Z)-(manual|auto|pre-update|pre-restore)\.tar\.gz$`)

// sanitiseTimestamp replaces ':' and '.' with '-' so the timestamp is
// valid in a filename on every filesystem.
func sanitiseTimestamp(t time.Time) string {
	s := t.UTC().Format(timestampLayout)
	s = strings.ReplaceAll(s, ":", "-")
	s = strings.ReplaceAll(s, ".", "-")
	return s
}

// filename builds the on-disk name for a backup taken at t of the given
// type.
func filename(t time.Time, typ domain.BackupType) string {
	return fmt.Sprintf("backup-%s-%s.tar.gz", sanitiseTimestamp(t), typ)
}

// parseFilename reverses filename, returning ok=false for names that do
// not match the grammar (defensive against operator-placed files).
func parseFilename(name string) (t time.Time, typ domain.BackupType, ok bool) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, "", false
	}
	iso := fmt.Sprintf("%s:%s:%s.%s", m[1], m[2], m[3], m[4])
	parsed, err := time.Parse(timestampLayout, iso)
	if err != nil {
		return time.Time{}, "", false
	}
	return parsed, domain.BackupType(m[5]), true
}

var timestampParamPattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2})-(\d{2})-(\d{2})-(\d{3}Z)$`)

// ParseTimestampParam parses the sanitised timestamp segment used as an
// HTTP path parameter (e.g. "2026-03-14T09-26-53-589Z"), the same
// grammar embedded in backup filenames without the "backup-"/type
// wrapper.
func ParseTimestampParam(s string) (time.Time, error) {
	m := timestampParamPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("malformed backup timestamp %q", s)
	}
	iso := fmt.Sprintf("%s:%s:%s.%s", m[1], m[2], m[3], m[4])
	return time.Parse(timestampLayout, iso)
}

// FormatTimestampParam is the inverse of ParseTimestampParam, used to
// build backup URLs in API responses.
func FormatTimestampParam(t time.Time) string {
	return sanitiseTimestamp(t)
}
