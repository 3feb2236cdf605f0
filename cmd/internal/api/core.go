package api

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"twidder/cmd/identity"
	"twidder/cmd/internal/auth/session"
	"twidder/cmd/internal/wall"
)

// Params carry the client-facing field names. Both surfaces decode into
// these: the REST routes from request bodies, the gateway from envelope
// data.

type SignUpParams struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"firstname"`
	FamilyName string `json:"familyname"`
	Gender     string `json:"gender"`
	City       string `json:"city"`
	Country    string `json:"country"`
}

type SignInParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordParams struct {
	Token       string `json:"token"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type PostMessageParams struct {
	Token   string `json:"token"`
	Message string `json:"message"`
	Email   string `json:"email"`
}

// UserData is the profile payload returned by the user lookups.
// The password hash never appears here.
type UserData struct {
	Email      string `json:"email"`
	FirstName  string `json:"firstname"`
	FamilyName string `json:"familyname"`
	Gender     string `json:"gender"`
	City       string `json:"city"`
	Country    string `json:"country"`
}

func userData(u identity.User) UserData {
	return UserData{
		Email:      u.Email,
		FirstName:  u.Profile.FirstName,
		FamilyName: u.Profile.FamilyName,
		Gender:     u.Profile.Gender,
		City:       u.Profile.City,
		Country:    u.Profile.Country,
	}
}

// Core implements every client-facing operation once, for both surfaces.
//
// Token-bearing operations also report the caller's identity (the session
// owner's email) on success; the websocket gateway uses it to bind the
// channel for push delivery. Sign-out destroys the session and therefore
// yields no identity.
type Core struct {
	log      *slog.Logger
	sessions *session.Manager
	wall     *wall.Service
}

// NewCore constructs the shared operation core.
func NewCore(log *slog.Logger, sessions *session.Manager, wallSvc *wall.Service) *Core {
	if log == nil {
		log = slog.Default()
	}
	return &Core{log: log, sessions: sessions, wall: wallSvc}
}

// SignUp registers a new user. No identity is yielded: the caller holds no
// session yet.
func (c *Core) SignUp(ctx context.Context, p SignUpParams, now time.Time) Result {
	if strings.TrimSpace(p.Email) == "" || p.Password == "" {
		return Misformatted()
	}

	err := c.sessions.SignUp(ctx, p.Email, p.Password, identity.Profile{
		FirstName:  p.FirstName,
		FamilyName: p.FamilyName,
		Gender:     p.Gender,
		City:       p.City,
		Country:    p.Country,
	}, now)
	if err != nil {
		return resultFromErr(err)
	}
	return ok(msgSignedUp, nil)
}

// SignIn authenticates and returns the fresh token as data.
func (c *Core) SignIn(ctx context.Context, p SignInParams, now time.Time) (Result, string) {
	tok, err := c.sessions.SignIn(ctx, p.Email, p.Password, now)
	if err != nil {
		res := resultFromErr(err)
		// An unknown email at sign-in is a credential failure, not a
		// missing-resource lookup.
		if identity.IsNoSuchUser(err) {
			res.Code = 400
		}
		return res, ""
	}
	return ok(msgSignedIn, tok), identity.NormalizeEmail(p.Email)
}

// SignOut destroys the caller's session.
func (c *Core) SignOut(ctx context.Context, token string, now time.Time) Result {
	if err := c.sessions.SignOut(ctx, token, now); err != nil {
		return resultFromErr(err)
	}
	return ok(msgSignedOut, nil)
}

// ChangePassword rotates the caller's password.
func (c *Core) ChangePassword(ctx context.Context, p ChangePasswordParams, now time.Time) (Result, string) {
	if p.OldPassword == "" || p.NewPassword == "" {
		return Misformatted(), ""
	}

	if err := c.sessions.ChangePassword(ctx, p.Token, p.OldPassword, p.NewPassword, now); err != nil {
		return resultFromErr(err), ""
	}
	return ok(msgPwChanged, nil), c.callerIdentity(ctx, p.Token, now)
}

// UserByToken returns the caller's own profile.
func (c *Core) UserByToken(ctx context.Context, token string, now time.Time) (Result, string) {
	u, err := c.wall.UserByToken(ctx, token, now)
	if err != nil {
		return resultFromErr(err), ""
	}
	return ok(msgUserData, userData(u)), u.Email
}

// UserByEmail returns the named user's profile.
func (c *Core) UserByEmail(ctx context.Context, token, email string, now time.Time) (Result, string) {
	u, err := c.wall.UserByEmail(ctx, token, email, now)
	if err != nil {
		return resultFromErr(err), ""
	}
	return ok(msgUserData, userData(u)), c.callerIdentity(ctx, token, now)
}

// MessagesByToken returns the caller's own wall.
func (c *Core) MessagesByToken(ctx context.Context, token string, now time.Time) (Result, string) {
	entries, err := c.wall.ListForToken(ctx, token, now)
	if err != nil {
		return resultFromErr(err), ""
	}
	return ok(msgUserMessages, entries), c.callerIdentity(ctx, token, now)
}

// MessagesByEmail returns the named user's wall.
func (c *Core) MessagesByEmail(ctx context.Context, token, email string, now time.Time) (Result, string) {
	entries, err := c.wall.ListForEmail(ctx, token, email, now)
	if err != nil {
		return resultFromErr(err), ""
	}
	return ok(msgUserMessages, entries), c.callerIdentity(ctx, token, now)
}

// PostMessage posts to the named user's wall. origin is the realtime
// channel the post came in on (nil for REST); the hub skips it when
// pushing.
func (c *Core) PostMessage(ctx context.Context, p PostMessageParams, origin wall.Conn, now time.Time) (Result, string) {
	if err := c.wall.Post(ctx, p.Token, p.Message, p.Email, origin, now); err != nil {
		return resultFromErr(err), ""
	}
	return ok(msgMessagePosted, nil), c.callerIdentity(ctx, p.Token, now)
}

// callerIdentity resolves the session owner's email after a successful
// token-bearing call. The session was just resolved, so this is a cache
// hit; a failure here only skips channel binding.
func (c *Core) callerIdentity(ctx context.Context, token string, now time.Time) string {
	s, err := c.sessions.Resolve(ctx, token, now)
	if err != nil {
		return ""
	}
	return s.UserEmail
}
