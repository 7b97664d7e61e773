package types

const redactedPlaceholder = "***REDACTED***"

// SecretString keeps credentials (database DSNs) out of logs and JSON dumps
// of the configuration. Use Unmask when the raw value is needed.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// Unmask returns the raw plaintext value of the secret.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether the secret holds a value.
func (s SecretString) IsSet() bool {
	return s != ""
}
