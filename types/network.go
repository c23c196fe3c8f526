package types

import "time"

// NetworkInfo describes one supported network. Chain ids, RPC endpoints and
// explorer URLs are externally configured data; the core never computes them.
type NetworkInfo struct {
	Name        string `json:"name" validate:"required"`
	ChainID     string `json:"chainId" validate:"required"`
	RPCURL      string `json:"rpcUrl,omitempty"`
	ExplorerURL string `json:"explorerUrl,omitempty"`
	Testnet     bool   `json:"testnet,omitempty"`
}

// Q402Config is the module-wide configuration.
type Q402Config struct {
	DefaultTimeout time.Duration          `json:"defaultTimeout,omitempty"`
	Networks       map[string]NetworkInfo `json:"networks,omitempty"`
	LogLevel       string                 `json:"logLevel,omitempty"`
	EnableMetrics  bool                   `json:"enableMetrics,omitempty"`
}

// Network returns the registry entry for a network name.
func (c *Q402Config) Network(name string) (NetworkInfo, bool) {
	info, ok := c.Networks[name]
	return info, ok
}
