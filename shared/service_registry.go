// Package shared holds the plumbing common to the node processes: the
// Service lifecycle contract and the registry the beacon node assembles its
// services into.
package shared

import (
	"reflect"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "registry")

// Service is the lifecycle contract every node component satisfies. The
// chain-data service, the eth1 data cache, the operation pools, the
// attestation and block managers, the sync tracker and the slot orchestrator
// all register as Services.
type Service interface {
	// Start spawns the service goroutines. It must not block.
	Start()
	// Stop tears the service down, blocking until its goroutines exit.
	Stop() error
	// Status reports nil while the service is healthy.
	Status() error
}

// ServiceRegistry holds the node's services keyed by concrete type, in
// registration order, so startup runs storage-first and shutdown unwinds in
// reverse.
type ServiceRegistry struct {
	services map[reflect.Type]Service
	order    []reflect.Type
}

// NewServiceRegistry returns an empty registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{services: make(map[reflect.Type]Service)}
}

// RegisterService adds a service under its concrete type. Each type may
// register once.
func (s *ServiceRegistry) RegisterService(service Service) error {
	kind := reflect.TypeOf(service)
	if _, exists := s.services[kind]; exists {
		return errors.Errorf("service already exists: %v", kind)
	}
	s.services[kind] = service
	s.order = append(s.order, kind)
	return nil
}

// StartAll launches every service in registration order.
func (s *ServiceRegistry) StartAll() {
	log.WithField("count", len(s.order)).Debug("Starting services")
	for _, kind := range s.order {
		log.WithField("type", kind.String()).Debug("Starting service")
		go s.services[kind].Start()
	}
}

// StopAll stops every service in reverse registration order, logging any
// service that fails to stop.
func (s *ServiceRegistry) StopAll() {
	for i := len(s.order) - 1; i >= 0; i-- {
		kind := s.order[i]
		if err := s.services[kind].Stop(); err != nil {
			log.WithError(err).WithField("type", kind.String()).Error("Could not stop service")
		}
	}
}

// Statuses returns the Status result of every registered service, keyed by
// service type.
func (s *ServiceRegistry) Statuses() map[reflect.Type]error {
	m := make(map[reflect.Type]error, len(s.order))
	for _, kind := range s.order {
		m[kind] = s.services[kind].Status()
	}
	return m
}

// FetchService sets the pointed-to value to the registered service of that
// type, so dependents share the instance the node registered.
func (s *ServiceRegistry) FetchService(service interface{}) error {
	if reflect.TypeOf(service).Kind() != reflect.Ptr {
		return errors.Errorf("input must be of pointer type, received value type instead: %T", service)
	}
	element := reflect.ValueOf(service).Elem()
	if registered, ok := s.services[element.Type()]; ok {
		element.Set(reflect.ValueOf(registered))
		return nil
	}
	return errors.Errorf("unknown service: %T", service)
}
