package tagpool

// PoolConfig is the YAML/JSON-loadable shape consumed by NewFromConfig.
type PoolConfig struct {
	// Generic is the reserved size of the null/overflow tag.
	Generic int `yaml:"generic" json:"generic"`
	// Groups maps a named tag to its own reserved size.
	Groups map[string]int `yaml:"groups" json:"groups"`
}
