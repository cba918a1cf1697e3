package provider

import "context"

// MockClient for testing
type MockClient struct {
	NameValue string
	Response  *Response
	Error     error
	// AnalyzeFunc, when set, overrides Response/Error.
	AnalyzeFunc func(ctx context.Context, req Request) (*Response, error)

	Calls       int
	LastRequest Request
	Closed      bool
}

var _ Client = (*MockClient)(nil)

func (m *MockClient) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *MockClient) Analyze(ctx context.Context, req Request) (*Response, error) {
	m.Calls++
	m.LastRequest = req
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, req)
	}
	return m.Response, m.Error
}

func (m *MockClient) Close() error {
	m.Closed = true
	return nil
}
