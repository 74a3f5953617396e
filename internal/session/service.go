package session

import "sync"

// ServiceStatus is the resolution state of a named service.
type ServiceStatus int

const (
	ServiceUnknown ServiceStatus = iota
	ServiceOpening
	ServiceOpened
	ServiceOpenFailed
)

func (s ServiceStatus) String() string {
	switch s {
	case ServiceOpening:
		return "opening"
	case ServiceOpened:
		return "opened"
	case ServiceOpenFailed:
		return "open_failed"
	default:
		return "unknown"
	}
}

type serviceEntry struct {
	status ServiceStatus
	reason string
}

// serviceRegistry tracks every service a session asked for. Each service
// reaches exactly one terminal outcome.
type serviceRegistry struct {
	mu       sync.RWMutex
	services map[string]*serviceEntry
}

func newServiceRegistry() *serviceRegistry {
	return &serviceRegistry{services: make(map[string]*serviceEntry)}
}

// request marks name as opening. It returns false if name was already requested.
func (r *serviceRegistry) request(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.services[name]; ok {
		return false
	}
	r.services[name] = &serviceEntry{status: ServiceOpening}
	return true
}

// resolve records the outcome of opening name. It returns false when the
// service already had an outcome, in which case the status is left untouched.
func (r *serviceRegistry) resolve(name string, opened bool, reason string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.services[name]
	if !ok {
		entry = &serviceEntry{}
		r.services[name] = entry
	}
	if entry.status == ServiceOpened || entry.status == ServiceOpenFailed {
		return false
	}

	if opened {
		entry.status = ServiceOpened
	} else {
		entry.status = ServiceOpenFailed
		entry.reason = reason
	}
	return true
}

func (r *serviceRegistry) status(name string) (ServiceStatus, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.services[name]
	if !ok {
		return ServiceUnknown, ""
	}
	return entry.status, entry.reason
}
