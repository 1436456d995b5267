package proxy

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Manager handles the rotation of outbound proxies.
type Manager struct {
	proxies    []*url.URL
	mu         sync.Mutex
	proxyIndex int
}

// NewManager parses the proxy list. Blank entries are ignored.
func NewManager(rawProxies []string) (*Manager, error) {
	m := &Manager{}
	for _, raw := range rawProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy %q", raw)
		}
		m.proxies = append(m.proxies, u)
	}
	return m, nil
}

// ParseList splits a comma-separated proxy list.
func ParseList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Enabled reports whether at least one proxy is configured.
func (m *Manager) Enabled() bool {
	return m != nil && len(m.proxies) > 0
}

// GetProxy returns a proxy URL from the list, rotating sequentially.
func (m *Manager) GetProxy() *url.URL {
	if !m.Enabled() {
		return nil // No proxy
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.proxies[m.proxyIndex]
	m.proxyIndex = (m.proxyIndex + 1) % len(m.proxies)
	return p
}

// ProxyFunc matches http.Transport.Proxy.
func (m *Manager) ProxyFunc(_ *http.Request) (*url.URL, error) {
	return m.GetProxy(), nil
}
