// internal/server/handlers.go
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	apperrors "wifidog-auth/internal/common/errors"
	"wifidog-auth/internal/common/validation"
	"wifidog-auth/internal/wifidog/protocol"
)

func (s *Server) handleTyped(w http.ResponseWriter, r *http.Request) {
	params := queryParams(r.URL.Query())
	s.respond(w, r, s.protocol.Handle(r.Context(), params["type"], params))
}

func (s *Server) handleKind(kind protocol.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, r, s.protocol.Handle(r.Context(), string(kind), queryParams(r.URL.Query())))
	}
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, resp protocol.Response) {
	if resp.Redirect != "" {
		http.Redirect(w, r, resp.Redirect, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(resp.Body))
}

// portalLogin checks the submitted credentials, opens a session and sends the
// client back to its gateway with the new token.
func (s *Server) portalLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	form := queryParams(r.PostForm)

	gwAddress, gwPort := form["gw_address"], form["gw_port"]
	if gwAddress == "" || gwPort == "" || form["gw_id"] == "" {
		http.Error(w, "gw_address, gw_port and gw_id are required", http.StatusBadRequest)
		return
	}
	mac := validation.NormalizeMAC(form["mac"])
	if mac == "" {
		http.Error(w, "valid mac is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.StorageTimeout)
	defer cancel()

	user, err := s.users.Authenticate(ctx, form["username"], form["password"])
	if err != nil {
		s.loginFailed(w, r, "authenticate", err, form)
		return
	}

	token, err := s.sessions.CreateSession(ctx, user.ID, mac, form["ip"], form["gw_id"])
	if err != nil {
		s.loginFailed(w, r, "create_session", err, form)
		return
	}

	s.logger.Info("Portal login", map[string]interface{}{
		"userId":    user.ID,
		"gatewayId": form["gw_id"],
		"mac":       mac,
	})

	target := url.URL{
		Scheme:   "http",
		Host:     net.JoinHostPort(gwAddress, gwPort),
		Path:     "/wifidog/auth",
		RawQuery: url.Values{"token": {token}}.Encode(),
	}
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (s *Server) loginFailed(w http.ResponseWriter, r *http.Request, op string, err error, form map[string]string) {
	code := apperrors.CodeOf(err)
	s.logger.Warn("Portal login failed", map[string]interface{}{
		"operation": op,
		"errorCode": string(code),
		"username":  form["username"],
		"gatewayId": form["gw_id"],
	})

	target, perr := url.Parse(s.config.FailURL)
	if perr != nil {
		http.Error(w, "login failed", http.StatusUnauthorized)
		return
	}
	q := target.Query()
	q.Set("error", string(code))
	for _, k := range []string{"gw_id", "gw_address", "gw_port", "mac", "ip", "url"} {
		if v := form[k]; v != "" {
			q.Set(k, v)
		}
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.config.StorageTimeout)
	defer cancel()

	body := map[string]any{
		"status": "healthy",
		"time":   s.clock.Now().UTC().Format(time.RFC3339),
	}

	if err := s.storage.Ping(ctx); err != nil {
		body["status"] = "unhealthy"
		body["storage"] = fmt.Sprintf("unavailable: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	body["storage"] = "ok"

	active, err := s.sessions.ActiveSessionCount(ctx)
	if err != nil {
		body["status"] = "degraded"
		body["activeSessions"] = nil
	} else {
		body["activeSessions"] = active
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   s.clock.Now().UTC().Format(time.RFC3339),
	})
}

// queryParams keeps the first value of each key.
func queryParams(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
