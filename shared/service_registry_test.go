package shared

import (
	"errors"
	"reflect"
	"testing"
)

type mockService struct {
	status error
}

func (m *mockService) Start() {
}

func (m *mockService) Stop() error {
	return nil
}

func (m *mockService) Status() error {
	return m.status
}

type secondMockService struct {
	status error
}

func (s *secondMockService) Start() {
}

func (s *secondMockService) Stop() error {
	return nil
}

func (s *secondMockService) Status() error {
	return s.status
}

func TestRegisterService_Twice(t *testing.T) {
	registry := NewServiceRegistry()

	m := &mockService{}
	if err := registry.RegisterService(m); err != nil {
		t.Fatalf("failed to register first service: %v", err)
	}

	// Checks if first service was indeed registered.
	if len(registry.order) != 1 {
		t.Fatalf("registration order should contain 1 service, contained %v", len(registry.order))
	}

	if err := registry.RegisterService(m); err == nil {
		t.Error("expected an error when registering a service twice, got nil")
	}
}

func TestRegisterService_Different(t *testing.T) {
	registry := NewServiceRegistry()

	m := &mockService{}
	s := &secondMockService{}
	if err := registry.RegisterService(m); err != nil {
		t.Fatalf("failed to register first service: %v", err)
	}

	if err := registry.RegisterService(s); err != nil {
		t.Fatalf("failed to register second service: %v", err)
	}

	if len(registry.order) != 2 {
		t.Fatalf("registration order should contain 2 services, contained %v", len(registry.order))
	}

	if _, exists := registry.services[reflect.TypeOf(m)]; !exists {
		t.Fatalf("service of type %v not registered", reflect.TypeOf(m))
	}

	if _, exists := registry.services[reflect.TypeOf(s)]; !exists {
		t.Fatalf("service of type %v not registered", reflect.TypeOf(s))
	}
}

func TestFetchService_OK(t *testing.T) {
	registry := NewServiceRegistry()

	m := &mockService{}
	if err := registry.RegisterService(m); err != nil {
		t.Fatalf("failed to register first service: %v", err)
	}

	if err := registry.FetchService(*m); err == nil {
		t.Error("expected an error when fetching with a value receiver, got nil")
	}

	var s *secondMockService
	if err := registry.FetchService(&s); err == nil {
		t.Error("expected an error when fetching an unregistered service, got nil")
	}

	var m2 *mockService
	if err := registry.FetchService(&m2); err != nil {
		t.Fatalf("failed to fetch service: %v", err)
	}

	if m2 != m {
		t.Error("the fetched service must point at the registered instance")
	}
}

func TestStatuses_Propagated(t *testing.T) {
	registry := NewServiceRegistry()

	m := &mockService{}
	s := &secondMockService{status: errors.New("unhealthy")}
	if err := registry.RegisterService(m); err != nil {
		t.Fatalf("failed to register first service: %v", err)
	}
	if err := registry.RegisterService(s); err != nil {
		t.Fatalf("failed to register second service: %v", err)
	}

	statuses := registry.Statuses()
	if statuses[reflect.TypeOf(m)] != nil {
		t.Errorf("expected a healthy status, got %v", statuses[reflect.TypeOf(m)])
	}
	if statuses[reflect.TypeOf(s)] == nil {
		t.Error("expected the unhealthy status to propagate, got nil")
	}
}
