package process

// Config describes one allow-listed command serving a query type.
type Config struct {
	Command string            `mapstructure:"command" yaml:"command" json:"command"`
	Args    []string          `mapstructure:"args" yaml:"args" json:"args"`
	Env     map[string]string `mapstructure:"env" yaml:"env" json:"env"`
	Dir     string            `mapstructure:"dir" yaml:"dir" json:"dir"`
}
