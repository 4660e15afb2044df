package config

// Secret wraps a credential so it cannot leak through logging or
// serialization. The raw value is only reachable via Reveal.
type Secret struct {
	value string
}

func NewSecret(v string) Secret {
	return Secret{value: v}
}

// Reveal returns the underlying credential value.
func (s Secret) Reveal() string {
	return s.value
}

func (s Secret) String() string {
	return "[REDACTED]"
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

func (s Secret) MarshalYAML() (any, error) {
	return "[REDACTED]", nil
}

// UnmarshalYAML lets secrets be read from config files while keeping the
// stored value unexported.
func (s *Secret) UnmarshalYAML(unmarshal func(any) error) error {
	var v string
	if err := unmarshal(&v); err != nil {
		return err
	}
	s.value = v
	return nil
}
