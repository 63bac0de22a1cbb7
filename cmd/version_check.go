package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrVersionCheckFailed = errors.New("version check failed")

const (
	releasesURL         = "https://api.github.com/repos/airframesio/data-comparer/releases/latest"
	versionCheckTimeout = 5 * time.Second
	versionCacheExpiry  = 24 * time.Hour
)

// githubRelease is the part of the latest release API response we read
type githubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// VersionCheckResult contains the result of checking for updates
type VersionCheckResult struct {
	UpdateAvailable bool
	CurrentVersion  string
	LatestVersion   string
	ReleaseURL      string
	Error           error
}

// versionCache is persisted between runs so the API is hit at most daily
type versionCache struct {
	LatestVersion string    `json:"latest_version"`
	ReleaseURL    string    `json:"release_url"`
	CheckedAt     time.Time `json:"checked_at"`
}

// versionChecker looks up the latest release, caching the answer on disk
type versionChecker struct {
	url       string
	client    *http.Client
	cachePath string
	now       func() time.Time
}

func newVersionChecker() *versionChecker {
	home, _ := os.UserHomeDir()
	return &versionChecker{
		url:       releasesURL,
		client:    &http.Client{Timeout: versionCheckTimeout},
		cachePath: filepath.Join(home, ".data-comparer", "version_check.json"),
		now:       time.Now,
	}
}

// Check never fails the caller; problems are reported in the result
func (v *versionChecker) Check(ctx context.Context, currentVersion string) VersionCheckResult {
	result := VersionCheckResult{CurrentVersion: currentVersion}

	// Development builds have nothing to compare against
	if currentVersion == "dev" || currentVersion == "" {
		return result
	}

	latest, url, err := v.latest(ctx, currentVersion)
	if err != nil {
		result.Error = err
		return result
	}
	result.LatestVersion = latest
	result.ReleaseURL = url
	result.UpdateAvailable = compareVersions(latest, strings.TrimPrefix(currentVersion, "v")) > 0
	return result
}

func (v *versionChecker) latest(ctx context.Context, currentVersion string) (string, string, error) {
	if cached := v.readCache(); cached != nil && v.now().Sub(cached.CheckedAt) < versionCacheExpiry {
		return cached.LatestVersion, cached.ReleaseURL, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	// GitHub API requires a User-Agent
	req.Header.Set("User-Agent", "data-comparer/"+currentVersion)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("%w: status %d", ErrVersionCheckFailed, resp.StatusCode)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", "", fmt.Errorf("failed to decode response: %w", err)
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	v.writeCache(versionCache{LatestVersion: latest, ReleaseURL: release.HTMLURL, CheckedAt: v.now()})
	return latest, release.HTMLURL, nil
}

func (v *versionChecker) readCache() *versionCache {
	data, err := os.ReadFile(v.cachePath)
	if err != nil {
		return nil
	}
	var cache versionCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil
	}
	return &cache
}

func (v *versionChecker) writeCache(cache versionCache) {
	data, err := json.Marshal(cache)
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(v.cachePath), 0o755)
	_ = os.WriteFile(v.cachePath, data, 0o600)
}

// compareVersions compares two semantic version strings
// Returns: 1 if v1 > v2, -1 if v1 < v2, 0 if equal
func compareVersions(v1, v2 string) int {
	parts1 := parseVersion(v1)
	parts2 := parseVersion(v2)

	for i := 0; i < 3; i++ {
		if parts1[i] > parts2[i] {
			return 1
		}
		if parts1[i] < parts2[i] {
			return -1
		}
	}
	return 0
}

// parseVersion parses "1.2.3" into [major, minor, patch]; pre-release
// suffixes such as "-rc1" are ignored
func parseVersion(version string) [3]int {
	var parts [3]int
	components := strings.Split(version, ".")

	for i := 0; i < 3 && i < len(components); i++ {
		var num int
		_, _ = fmt.Sscanf(components[i], "%d", &num)
		parts[i] = num
	}
	return parts
}

// formatUpdateMessage creates a user-friendly update notification message
func formatUpdateMessage(result VersionCheckResult) string {
	return fmt.Sprintf("Update available: v%s → v%s (visit %s)",
		strings.TrimPrefix(result.CurrentVersion, "v"),
		result.LatestVersion,
		result.ReleaseURL,
	)
}

// startVersionCheck runs the check in the background and logs a notice
// when a newer release exists. Wait on the returned channel, bounded by a
// timeout, before exiting.
func startVersionCheck(ctx context.Context, checker *versionChecker) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		result := checker.Check(ctx, Version)
		switch {
		case result.UpdateAvailable:
			logger.Info(fmt.Sprintf("💡 %s", formatUpdateMessage(result)))
		case result.Error != nil:
			logger.Debug(fmt.Sprintf("Version check failed: %v", result.Error))
		}
	}()
	return done
}
