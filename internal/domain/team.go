package domain

// Team is a roster entry. The engine only reads teams; the roster source owns them.
type Team struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Members  []string `json:"members,omitempty" yaml:"members"`
	Category string   `json:"category,omitempty" yaml:"category"`
	PIN      string   `json:"-" yaml:"pin"`
}
