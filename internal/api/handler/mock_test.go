package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/edvin/integrations/internal/core"
	"github.com/edvin/integrations/internal/model"
	"github.com/edvin/integrations/internal/provider"
)

type mockConnectService struct {
	mock.Mock
}

func (m *mockConnectService) AuthorizeURL(ctx context.Context, tenantID, projectID, providerID string) (string, error) {
	args := m.Called(ctx, tenantID, projectID, providerID)
	return args.String(0), args.Error(1)
}

func (m *mockConnectService) Connect(ctx context.Context, params core.ConnectParams) (*model.Credential, error) {
	args := m.Called(ctx, params)
	if cred := args.Get(0); cred != nil {
		return cred.(*model.Credential), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockConnectService) TestConnection(ctx context.Context, tenantID, projectID, providerID string) (provider.TestResult, error) {
	args := m.Called(ctx, tenantID, projectID, providerID)
	return args.Get(0).(provider.TestResult), args.Error(1)
}

func (m *mockConnectService) Disconnect(ctx context.Context, tenantID, projectID, providerID string) error {
	args := m.Called(ctx, tenantID, projectID, providerID)
	return args.Error(0)
}

type mockCredentialLister struct {
	mock.Mock
}

func (m *mockCredentialLister) ListByProject(ctx context.Context, tenantID, projectID string) ([]model.Credential, error) {
	args := m.Called(ctx, tenantID, projectID)
	if creds := args.Get(0); creds != nil {
		return creds.([]model.Credential), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockOAuthExchanger struct {
	mock.Mock
}

func (m *mockOAuthExchanger) HandleCallback(ctx context.Context, params core.CallbackParams) (*model.Credential, error) {
	args := m.Called(ctx, params)
	if cred := args.Get(0); cred != nil {
		return cred.(*model.Credential), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockAuditLister struct {
	mock.Mock
}

func (m *mockAuditLister) ListByProject(ctx context.Context, tenantID, projectID, providerFilter string, limit int, cursor string) ([]model.AuditEvent, bool, error) {
	args := m.Called(ctx, tenantID, projectID, providerFilter, limit, cursor)
	if events := args.Get(0); events != nil {
		return events.([]model.AuditEvent), args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}
