package agent

import "fmt"

// Constructor builds an agent for a role from shared runtime config.
type Constructor func(cfg *Config) Agent

var constructors = map[Role]Constructor{}

func init() {
	for role, def := range definitions {
		def := def
		constructors[role] = func(cfg *Config) Agent {
			return NewBaseAgent(def, cfg)
		}
	}
}

// Register installs or replaces the constructor for a role. Custom agent
// implementations use this to take over a built-in role or add a new one.
func Register(role Role, ctor Constructor) {
	constructors[role] = ctor
}

// New builds an agent for the given role.
func New(role Role, cfg *Config) (Agent, error) {
	ctor, ok := constructors[role]
	if !ok {
		return nil, fmt.Errorf("unknown agent role: %s", role)
	}
	return ctor(cfg), nil
}

// NewAll builds one agent per registered role, keyed by role.
func NewAll(cfg *Config) map[Role]Agent {
	agents := make(map[Role]Agent, len(constructors))
	for role, ctor := range constructors {
		agents[role] = ctor(cfg)
	}
	return agents
}
