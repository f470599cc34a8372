package metrics

// Option configures the Manager at construction time.
type Option func(namespace string) string

// WithNamespace overrides the metric namespace prefix.
func WithNamespace(ns string) Option {
	return func(current string) string {
		if ns == "" {
			return current
		}
		return ns
	}
}
