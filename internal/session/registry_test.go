package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"storegate/internal/signing"
	"storegate/pkg/platform/sentinel"
)

type RegistrySuite struct {
	suite.Suite
	registry *Registry
}

func (s *RegistrySuite) SetupTest() {
	s.registry = NewRegistry()
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) TestLookup() {
	s.Run("returns stored session when found", func() {
		created := s.registry.CreateWithToken(context.Background(), "default", "https://shop.example.com", "tok", "ops-admin")

		found, err := s.registry.Find(context.Background(), "default")
		s.Require().NoError(err)
		s.Equal(created, found)
		s.Equal(AuthBearer, found.Mode)
		s.True(found.Authenticated())
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.registry.Find(context.Background(), "missing")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *RegistrySuite) TestReLoginReplaces() {
	s.registry.CreateWithToken(context.Background(), "default", "https://old.example.com", "old-tok", "ops-admin")
	s.registry.CreateWithCredentials(context.Background(), "default", "https://new.example.com", signing.Credentials{
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		AccessToken:    "at",
		TokenSecret:    "ts",
	}, "ops-admin")

	found, err := s.registry.Find(context.Background(), "default")
	s.Require().NoError(err)
	s.Equal("https://new.example.com", found.BaseURL)
	s.Equal(AuthCredentials, found.Mode)
	s.Empty(found.BearerToken)
}

func (s *RegistrySuite) TestDestroyIsIdempotent() {
	s.registry.CreateWithToken(context.Background(), "default", "https://shop.example.com", "tok", "ops-admin")

	s.True(s.registry.Destroy(context.Background(), "default"))
	s.False(s.registry.Destroy(context.Background(), "default"))

	_, err := s.registry.Find(context.Background(), "default")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RegistrySuite) TestSetDefaultScope() {
	s.Run("mutates only the scope of an existing session", func() {
		s.registry.CreateWithToken(context.Background(), "default", "https://shop.example.com", "tok", "ops-admin")

		ok := s.registry.SetDefaultScope(context.Background(), "default", Scope{StoreCode: "eu"})
		s.True(ok)

		found, err := s.registry.Find(context.Background(), "default")
		s.Require().NoError(err)
		s.Require().NotNil(found.DefaultScope)
		s.Equal("eu", found.DefaultScope.StoreCode)
		s.Equal("tok", found.BearerToken)
	})

	s.Run("is a no-op for unknown sessions", func() {
		ok := s.registry.SetDefaultScope(context.Background(), "missing", Scope{Global: true})
		s.False(ok)

		_, err := s.registry.Find(context.Background(), "missing")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func TestScopePopulated(t *testing.T) {
	cases := []struct {
		name  string
		scope Scope
		want  bool
	}{
		{"empty", Scope{}, false},
		{"website only", Scope{WebsiteCode: "base"}, true},
		{"store view only", Scope{StoreViewCode: "de_de"}, true},
		{"global sentinel", Scope{Global: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.scope.Populated(); got != tc.want {
				t.Fatalf("Populated() = %v, want %v", got, tc.want)
			}
		})
	}
}
