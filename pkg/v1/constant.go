package v1

const (
	DefaultMessageLimit = 100
	MaxMessageLimit     = 1000
)
