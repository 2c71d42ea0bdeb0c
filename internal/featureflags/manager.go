// Package featureflags gates optional Zephyr features by name and per-user rollout.
package featureflags

import (
	"hash/fnv"
	"maps"
	"strconv"
	"strings"
)

// Flags known to the API. Both default to on when FEATURE_FLAGS leaves them out.
const (
	AIChat        = "ai_chat"
	NearbyFriends = "nearby_friends"
)

var known = []string{AIChat, NearbyFriends}

// Manager evaluates FEATURE_FLAGS, a comma separated list of name=value pairs.
// A value is on/true/1, off/false/0 or a rollout share like 25%.
// Example: "ai_chat=on,nearby_friends=25%"
type Manager struct {
	raw     map[string]string
	percent map[string]int // 0 off, 100 on, anything between is a rollout
}

// NewManager parses raw. Malformed pairs are skipped; unknown values evaluate off.
func NewManager(raw string) *Manager {
	m := &Manager{raw: map[string]string{}, percent: map[string]int{}}
	for _, pair := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(pair, "=")
		name, value = normalize(name), normalize(value)
		if !ok || name == "" || value == "" {
			continue
		}
		m.raw[name] = value
		m.percent[name] = parsePercent(value)
	}
	for _, name := range known {
		if _, set := m.percent[name]; !set {
			m.percent[name] = 100
		}
	}
	return m
}

func parsePercent(value string) int {
	switch value {
	case "on", "true", "1":
		return 100
	case "off", "false", "0":
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
	if err != nil || !strings.HasSuffix(value, "%") {
		return 0
	}
	return min(max(n, 0), 100)
}

// Enabled reports whether name is on for userID. Partial rollouts are stable per
// user and never include the anonymous user 0.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	name = normalize(name)
	pct, ok := m.percent[name]
	switch {
	case !ok || pct <= 0:
		return false
	case pct >= 100:
		return true
	case userID == 0:
		return false
	}
	return bucket(name, userID) < pct
}

// Raw returns a copy of the explicitly configured values.
func (m *Manager) Raw() map[string]string {
	return maps.Clone(m.raw)
}

// Snapshot evaluates every configured and known flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.percent))
	for name := range m.percent {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name + ":" + strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}
