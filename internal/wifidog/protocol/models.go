// internal/wifidog/protocol/models.go
package protocol

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "wifidog-auth/internal/common/errors"
	"wifidog-auth/internal/common/validation"
)

// Kind is the wifidog request type.
type Kind string

const (
	KindPing   Kind = "ping"
	KindAuth   Kind = "auth"
	KindLogin  Kind = "login"
	KindPortal Kind = "portal"
)

// Stage is the sub-type of an auth request.
type Stage string

const (
	StageLogin    Stage = "login"
	StageCounters Stage = "counters"
	StageLogout   Stage = "logout"
)

// Wire responses understood by gateway firmware.
const (
	ResponsePong  = "Pong"
	ResponseAllow = "Auth: 1"
	ResponseDeny  = "Auth: 0"
)

// Request is one of PingRequest, AuthRequest, LoginRequest or PortalRequest.
type Request interface {
	Kind() Kind
}

type PingRequest struct {
	GatewayID     string
	SysUptime     int64
	SysMemfree    int64
	SysLoad       string
	WifidogUptime int64
}

func (*PingRequest) Kind() Kind { return KindPing }

type AuthRequest struct {
	Token     string
	Stage     Stage
	IP        string
	MAC       string
	GatewayID string
	// Incoming and Outgoing are nil when the gateway sent no counters.
	Incoming *int64
	Outgoing *int64
}

func (*AuthRequest) Kind() Kind { return KindAuth }

// HasCounters reports whether the request carries a usage report.
func (r *AuthRequest) HasCounters() bool {
	return r.Incoming != nil || r.Outgoing != nil
}

// Counters returns the reported byte counts, zero for a missing side.
func (r *AuthRequest) Counters() (int64, int64) {
	var in, out int64
	if r.Incoming != nil {
		in = *r.Incoming
	}
	if r.Outgoing != nil {
		out = *r.Outgoing
	}
	return in, out
}

type LoginRequest struct {
	GatewayID      string
	GatewayAddress string
	GatewayPort    string
	MAC            string
	IP             string
	URL            string
}

func (*LoginRequest) Kind() Kind { return KindLogin }

type PortalRequest struct {
	GatewayID string
}

func (*PortalRequest) Kind() Kind { return KindPortal }

// Response is what the HTTP layer writes back: a plain body or a redirect.
type Response struct {
	Body     string
	Redirect string
}

// ==========================
// Parameter Schemas
// ==========================

var (
	pingSchema = validation.MustCompile("ping", `{
  "type": "object",
  "required": ["gw_id"],
  "properties": {
    "gw_id":          {"type": "string", "minLength": 1, "maxLength": 64},
    "sys_uptime":     {"type": "string", "pattern": "^[0-9]*$"},
    "sys_memfree":    {"type": "string", "pattern": "^[0-9]*$"},
    "wifidog_uptime": {"type": "string", "pattern": "^[0-9]*$"}
  }
}`)

	authSchema = validation.MustCompile("auth", `{
  "type": "object",
  "properties": {
    "token":    {"type": "string", "maxLength": 256},
    "stage":    {"type": "string", "enum": ["", "login", "counters", "logout"]},
    "ip":       {"type": "string", "maxLength": 45},
    "mac":      {"type": "string", "maxLength": 32},
    "gw_id":    {"type": "string", "maxLength": 64},
    "incoming": {"type": "string", "pattern": "^[0-9]*$"},
    "outgoing": {"type": "string", "pattern": "^[0-9]*$"}
  }
}`)

	loginSchema = validation.MustCompile("login", `{
  "type": "object",
  "required": ["gw_id"],
  "properties": {
    "gw_id":      {"type": "string", "minLength": 1, "maxLength": 64},
    "gw_address": {"type": "string", "maxLength": 255},
    "gw_port":    {"type": "string", "pattern": "^[0-9]{0,5}$"},
    "mac":        {"type": "string", "maxLength": 32},
    "ip":         {"type": "string", "maxLength": 45}
  }
}`)

	portalSchema = validation.MustCompile("portal", `{
  "type": "object",
  "properties": {
    "gw_id": {"type": "string", "maxLength": 64}
  }
}`)
)

// ParseRequest builds the typed request for kind from raw query parameters.
// Required fields and number formats are checked here, so handlers only see
// well-formed requests. A missing auth token is not a parse error.
func ParseRequest(kind string, params map[string]string) (Request, error) {
	switch Kind(strings.ToLower(kind)) {
	case KindPing:
		if err := check(pingSchema, params); err != nil {
			return nil, err
		}
		return &PingRequest{
			GatewayID:     params["gw_id"],
			SysUptime:     parseCount(params["sys_uptime"]),
			SysMemfree:    parseCount(params["sys_memfree"]),
			SysLoad:       params["sys_load"],
			WifidogUptime: parseCount(params["wifidog_uptime"]),
		}, nil

	case KindAuth:
		if err := check(authSchema, params); err != nil {
			return nil, err
		}
		incoming, err := optionalCount("incoming", params["incoming"])
		if err != nil {
			return nil, err
		}
		outgoing, err := optionalCount("outgoing", params["outgoing"])
		if err != nil {
			return nil, err
		}
		stage := Stage(params["stage"])
		if stage == "" {
			stage = StageLogin
		}
		return &AuthRequest{
			Token:     params["token"],
			Stage:     stage,
			IP:        params["ip"],
			MAC:       params["mac"],
			GatewayID: params["gw_id"],
			Incoming:  incoming,
			Outgoing:  outgoing,
		}, nil

	case KindLogin:
		if err := check(loginSchema, params); err != nil {
			return nil, err
		}
		return &LoginRequest{
			GatewayID:      params["gw_id"],
			GatewayAddress: params["gw_address"],
			GatewayPort:    params["gw_port"],
			MAC:            params["mac"],
			IP:             params["ip"],
			URL:            params["url"],
		}, nil

	case KindPortal:
		if err := check(portalSchema, params); err != nil {
			return nil, err
		}
		return &PortalRequest{GatewayID: params["gw_id"]}, nil
	}

	return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("unknown request type %q", kind))
}

func check(schema *validation.Schema, params map[string]string) error {
	result := schema.ValidateParams(params)
	if !result.Valid {
		return apperrors.NewInvalidRequestError(schema.Name() + ": " + result.Error())
	}
	return nil
}

func parseCount(v string) int64 {
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}

func optionalCount(field, v string) (*int64, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("auth: %s out of range", field))
	}
	return &n, nil
}
