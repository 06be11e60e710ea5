package apitest

import (
	"context"
	"testing"

	"github.com/enrollhub/enrollhub/internal/api"
)

// Client returns an API client pointed at the fake.
func (s *Server) Client() *api.Client {
	return api.NewClient(api.Options{BaseURL: s.URL})
}

// LoginAs opens a connection and logs in with the given credentials.
func (s *Server) LoginAs(t testing.TB, username, password string) *api.Conn {
	t.Helper()
	conn := s.Client().Connect(nil)
	if _, err := conn.Login(context.Background(), username, password); err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return conn
}
