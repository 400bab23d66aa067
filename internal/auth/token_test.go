package auth_test

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/sharath018/tenant-access-backend/internal/auth"
)

func TestIssueAndParse(t *testing.T) {
	c := qt.New(t)
	m := auth.NewTokenManager("secret", time.Hour, "tests")

	token, issued, err := m.Issue(&auth.User{ID: 42, Email: "ana@acme.test"}, "acme")
	c.Assert(err, qt.IsNil)
	c.Assert(issued.ID, qt.Not(qt.Equals), "")

	claims, err := m.Parse(token)
	c.Assert(err, qt.IsNil)
	c.Assert(claims.Tenant, qt.Equals, "acme")
	c.Assert(claims.Email, qt.Equals, "ana@acme.test")
	c.Assert(claims.ID, qt.Equals, issued.ID)

	id, err := claims.UserID()
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, uint(42))
}

func TestEveryTokenGetsItsOwnID(t *testing.T) {
	c := qt.New(t)
	m := auth.NewTokenManager("secret", time.Hour, "tests")
	user := &auth.User{ID: 1}

	_, a, err := m.Issue(user, "acme")
	c.Assert(err, qt.IsNil)
	_, b, err := m.Issue(user, "acme")
	c.Assert(err, qt.IsNil)
	c.Assert(a.ID, qt.Not(qt.Equals), b.ID)
}

func TestParseRejects(t *testing.T) {
	user := &auth.User{ID: 1}
	good := auth.NewTokenManager("secret", time.Hour, "tests")

	expired, _, err := auth.NewTokenManager("secret", -time.Hour, "tests").Issue(user, "acme")
	if err != nil {
		t.Fatal(err)
	}
	otherKey, _, err := auth.NewTokenManager("other", time.Hour, "tests").Issue(user, "acme")
	if err != nil {
		t.Fatal(err)
	}
	otherIssuer, _, err := auth.NewTokenManager("secret", time.Hour, "elsewhere").Issue(user, "acme")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong key", otherKey},
		{"wrong issuer", otherIssuer},
		{"garbage", "not-a-token"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			_, err := good.Parse(tt.token)
			c.Assert(err, qt.ErrorIs, auth.ErrInvalidToken)
		})
	}
}

func TestInspectDoesNotVerify(t *testing.T) {
	c := qt.New(t)

	token, claims, err := auth.NewTokenManager("other", -time.Minute, "tests").Issue(&auth.User{ID: 9}, "beta")
	c.Assert(err, qt.IsNil)

	info, err := auth.NewTokenManager("secret", time.Hour, "tests").Inspect(token)
	c.Assert(err, qt.IsNil)
	c.Assert(info.UserID, qt.Equals, "9")
	c.Assert(info.Tenant, qt.Equals, "beta")
	c.Assert(info.JTI, qt.Equals, claims.ID)
	c.Assert(info.IsExpired, qt.IsTrue)
	c.Assert(info.ExpiresAt, qt.Not(qt.IsNil))

	_, err = auth.NewTokenManager("secret", time.Hour, "tests").Inspect("nope")
	c.Assert(err, qt.ErrorIs, auth.ErrInvalidToken)
}
