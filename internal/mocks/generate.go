// Package mocks provides generated mock implementations for testing.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks
// for interfaces in internal/ports. To regenerate after interface changes:
//
//	go generate ./internal/mocks
package mocks

// Generate mock for UserRepository interface from internal/ports.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=user_repository_mock.go github.com/argoapp/argo-auth/internal/ports UserRepository
