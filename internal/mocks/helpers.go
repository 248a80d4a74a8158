package mocks

import (
	"testing"

	"go.uber.org/mock/gomock"
)

// NewMockSenderForTest creates a new mock Sender for testing
func NewMockSenderForTest(t *testing.T) *MockSender {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockSender(ctrl)
}

// NewMockVerifierForTest creates a new mock Verifier for testing
func NewMockVerifierForTest(t *testing.T) *MockVerifier {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockVerifier(ctrl)
}

// NewMockRoleCheckerForTest creates a new mock RoleChecker for testing
func NewMockRoleCheckerForTest(t *testing.T) *MockRoleChecker {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockRoleChecker(ctrl)
}

// NewMockAuditStoreForTest creates a new mock audit Store for testing
func NewMockAuditStoreForTest(t *testing.T) *MockAuditStore {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockAuditStore(ctrl)
}

// NewMockRoleStoreForTest creates a new mock roles Store for testing
func NewMockRoleStoreForTest(t *testing.T) *MockRoleStore {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockRoleStore(ctrl)
}
