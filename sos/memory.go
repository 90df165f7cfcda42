package sos

// NewMemoryService returns a Service whose state lives only in process memory.
func NewMemoryService(opts ...Option) *Service {
	return newService("memory", nil, nil, opts)
}
