package controller

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"go.squadwatch.dev/coreplane/internal/ids"
)

// AdminEntry is one admin's role grant, keyed by platform (Steam64) id.
type AdminEntry struct {
	PlatformID string
	Role       string
}

// AdminSet is the refreshable admin roster the adminList task populates
// from configured sources (local `Admins.cfg`-style files: `Admin=<steam64>:
// <role>` lines, `Group=` lines and comments ignored).
type AdminSet struct {
	mu      sync.RWMutex
	byID    map[string]AdminEntry
	sources []string
	log     zerolog.Logger
}

// NewAdminSet constructs an AdminSet over the given config file paths.
func NewAdminSet(sources []string, log zerolog.Logger) *AdminSet {
	return &AdminSet{
		byID:    make(map[string]AdminEntry),
		sources: sources,
		log:     log.With().Str("component", "controller.adminset").Logger(),
	}
}

// Refresh re-reads every configured source, replacing the roster wholesale;
// a missing or unreadable file is logged and skipped rather than failing
// the whole refresh, so its entries are absent from the new roster (which
// is empty when every source fails).
func (a *AdminSet) Refresh(ctx context.Context) error {
	next := make(map[string]AdminEntry)

	for _, path := range a.sources {
		entries, err := parseAdminFile(path)
		if err != nil {
			a.log.Warn().Err(err).Str("path", path).Msg("skipping unreadable admin source")
			continue
		}
		for _, e := range entries {
			next[e.PlatformID] = e
		}
	}

	a.mu.Lock()
	a.byID = next
	a.mu.Unlock()
	return nil
}

// IsAdmin reports whether platformID currently holds any role.
func (a *AdminSet) IsAdmin(platformID string) (AdminEntry, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.byID[platformID]
	return e, ok
}

// Count returns the current roster size.
func (a *AdminSet) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.byID)
}

func parseAdminFile(path string) ([]AdminEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []AdminEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "Admin=") {
			continue
		}
		rest := strings.TrimPrefix(line, "Admin=")
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 {
			continue
		}
		id, err := ids.NewPlatformID(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		entries = append(entries, AdminEntry{
			PlatformID: id.String(),
			Role:       strings.TrimSpace(parts[1]),
		})
	}
	return entries, scanner.Err()
}
