package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultMaxBodyBytes = 64 << 10 // 64 KiB

// Handler serves the REST surface: /user, /session, /message.
//
// Mutating requests carry JSON bodies; reads take query parameters. Every
// response is the operation's Result encoded as {success, message, data?}
// with the result's HTTP status.
type Handler struct {
	log  *slog.Logger
	core *Core

	maxBodyBytes int64
}

// NewHandler constructs the REST handler over the shared operation core.
func NewHandler(log *slog.Logger, core *Core) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, core: core, maxBodyBytes: defaultMaxBodyBytes}
}

// Register wires the REST routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/user", h.handleUser)
	mux.HandleFunc("/session", h.handleSession)
	mux.HandleFunc("/message", h.handleMessage)
}

func (h *Handler) handleUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now().UTC()

	switch r.Method {
	case http.MethodPost:
		var p SignUpParams
		if err := decodeJSON(w, r, h.maxBodyBytes, &p); err != nil {
			writeResult(w, Misformatted())
			return
		}
		writeResult(w, h.core.SignUp(ctx, p, now))

	case http.MethodGet:
		tok := queryToken(r)
		email := strings.TrimSpace(r.URL.Query().Get("email"))
		var res Result
		if email == "" {
			res, _ = h.core.UserByToken(ctx, tok, now)
		} else {
			res, _ = h.core.UserByEmail(ctx, tok, email, now)
		}
		writeResult(w, res)

	case http.MethodPut:
		var p ChangePasswordParams
		if err := decodeJSON(w, r, h.maxBodyBytes, &p); err != nil {
			writeResult(w, Misformatted())
			return
		}
		res, _ := h.core.ChangePassword(ctx, p, now)
		writeResult(w, res)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now().UTC()

	switch r.Method {
	case http.MethodPost:
		var p SignInParams
		if err := decodeJSON(w, r, h.maxBodyBytes, &p); err != nil {
			writeResult(w, Misformatted())
			return
		}
		res, _ := h.core.SignIn(ctx, p, now)
		writeResult(w, res)

	case http.MethodDelete:
		writeResult(w, h.core.SignOut(ctx, queryToken(r), now))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now().UTC()

	switch r.Method {
	case http.MethodGet:
		tok := queryToken(r)
		email := strings.TrimSpace(r.URL.Query().Get("email"))
		var res Result
		if email == "" {
			res, _ = h.core.MessagesByToken(ctx, tok, now)
		} else {
			res, _ = h.core.MessagesByEmail(ctx, tok, email, now)
		}
		writeResult(w, res)

	case http.MethodPost:
		var p PostMessageParams
		if err := decodeJSON(w, r, h.maxBodyBytes, &p); err != nil {
			writeResult(w, Misformatted())
			return
		}
		// REST posts have no originating realtime channel: every live
		// connection of the recipient gets the push.
		res, _ := h.core.PostMessage(ctx, p, nil, now)
		writeResult(w, res)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func queryToken(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
