// internal/wifidog/protocol/dispatcher.go
package protocol

import (
	"context"
	"net/url"
	"strings"
	"time"

	"wifidog-auth/internal/audit"
	apperrors "wifidog-auth/internal/common/errors"
	"wifidog-auth/internal/common/logger"
	"wifidog-auth/internal/common/metrics"
	"wifidog-auth/internal/models"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SessionStore is the slice of session.Store the dispatcher needs.
type SessionStore interface {
	Validate(ctx context.Context, token string) (*models.Session, error)
	DeviceMatches(sess *models.Session, mac string) bool
	Touch(ctx context.Context, sessionID, ip, mac string, now time.Time) error
	Terminate(ctx context.Context, token string) (bool, error)
}

type UsageRecorder interface {
	RecordUsage(ctx context.Context, sessionID, userID, gatewayID string, incoming, outgoing int64, now time.Time) error
}

type GatewayRegistry interface {
	Heartbeat(ctx context.Context, gatewayID string, sysUptime int64, now time.Time) error
}

// Dispatcher answers gateway protocol requests. Auth fails closed: any error
// on the way to an allow decision yields ResponseDeny.
type Dispatcher struct {
	config   *Config
	sessions SessionStore
	usage    UsageRecorder
	gateways GatewayRegistry
	audit    audit.Sink
	clock    clock.Clock
	logger   logger.Logger
	errors   *apperrors.ErrorHandler
	tracer   trace.Tracer
}

func NewDispatcher(
	config *Config,
	sessions SessionStore,
	usage UsageRecorder,
	gateways GatewayRegistry,
	sink audit.Sink,
	clk clock.Clock,
	log logger.Logger,
) *Dispatcher {
	if config == nil {
		config = DefaultConfig()
	}
	if sink == nil {
		sink = audit.NoOpSink{}
	}
	if clk == nil {
		clk = clock.New()
	}
	log = log.WithFields(map[string]interface{}{"component": "protocol"})
	return &Dispatcher{
		config:   config,
		sessions: sessions,
		usage:    usage,
		gateways: gateways,
		audit:    sink,
		clock:    clk,
		logger:   log,
		errors:   apperrors.NewErrorHandler(log),
		tracer:   otel.Tracer("wifidog-auth/protocol"),
	}
}

// Handle parses raw parameters for kind and dispatches them. Unparseable
// requests still get a protocol-conformant answer.
func (d *Dispatcher) Handle(ctx context.Context, kind string, params map[string]string) Response {
	req, err := ParseRequest(kind, params)
	if err == nil {
		return d.Dispatch(ctx, req)
	}

	d.errors.Handle("parse_request", err, map[string]interface{}{"type": kind})
	metrics.ProtocolRequests.WithLabelValues(string(kindLabel(kind)), "invalid").Inc()

	switch Kind(strings.ToLower(kind)) {
	case KindPing:
		return Response{Body: ResponsePong}
	case KindAuth:
		d.record(ctx, &models.AuthLogEntry{
			Action:    models.ActionAuth,
			Result:    models.ResultDeny,
			Reason:    string(apperrors.CodeOf(err)),
			Message:   "Invalid request",
			GatewayID: params["gw_id"],
		})
		metrics.AuthDenials.WithLabelValues(string(apperrors.CodeOf(err))).Inc()
		return Response{Body: ResponseDeny}
	default:
		return Response{Redirect: d.config.DefaultURL}
	}
}

// Dispatch routes an already parsed request.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "wifidog."+string(req.Kind()),
		trace.WithAttributes(attribute.String("wifidog.gateway_id", requestGateway(req))))
	defer func() {
		span.End()
		metrics.ProtocolDuration.WithLabelValues(string(req.Kind())).Observe(time.Since(start).Seconds())
	}()

	var res Response
	switch r := req.(type) {
	case *PingRequest:
		res = Response{Body: d.Ping(ctx, r)}
	case *AuthRequest:
		res = Response{Body: d.Auth(ctx, r)}
	case *LoginRequest:
		res = Response{Redirect: d.Login(r)}
	case *PortalRequest:
		res = Response{Redirect: d.Portal(r)}
	default:
		res = Response{Redirect: d.config.DefaultURL}
	}

	if res.Redirect != "" {
		span.SetAttributes(attribute.String("wifidog.redirect", res.Redirect))
	} else {
		span.SetAttributes(attribute.String("wifidog.response", res.Body))
	}
	return res
}

func requestGateway(req Request) string {
	switch r := req.(type) {
	case *PingRequest:
		return r.GatewayID
	case *AuthRequest:
		return r.GatewayID
	case *LoginRequest:
		return r.GatewayID
	case *PortalRequest:
		return r.GatewayID
	}
	return ""
}

// Ping records a heartbeat and always acknowledges, even if the write failed.
func (d *Dispatcher) Ping(ctx context.Context, req *PingRequest) string {
	ctx, cancel := context.WithTimeout(ctx, d.config.StorageTimeout)
	defer cancel()

	if err := d.gateways.Heartbeat(ctx, req.GatewayID, req.SysUptime, d.now()); err != nil {
		d.errors.Handle("heartbeat", err, map[string]interface{}{"gatewayId": req.GatewayID})
		metrics.ProtocolRequests.WithLabelValues(string(KindPing), "degraded").Inc()
		return ResponsePong
	}

	metrics.ProtocolRequests.WithLabelValues(string(KindPing), "ok").Inc()
	return ResponsePong
}

// Auth decides whether the device holding req.Token keeps its access.
func (d *Dispatcher) Auth(ctx context.Context, req *AuthRequest) string {
	if req.Token == "" {
		return d.deny(ctx, req, nil, apperrors.NewMissingTokenError(), "Missing token")
	}

	sess, err := d.validate(ctx, req.Token)
	if err != nil {
		return d.deny(ctx, req, nil, err, "Storage unavailable")
	}
	if sess == nil {
		return d.deny(ctx, req, nil,
			apperrors.NewInvalidOrInactiveSessionError("token "+logger.TokenPrefix(req.Token)),
			"Invalid or inactive session")
	}

	if !d.sessions.DeviceMatches(sess, req.MAC) {
		return d.deny(ctx, req, sess,
			apperrors.NewInvalidOrInactiveSessionError("mac mismatch: session "+sess.MACAddress+", request "+req.MAC),
			"Device mismatch")
	}

	now := d.now()

	if req.Stage == StageLogout {
		return d.logout(ctx, req, sess, now)
	}

	if err := d.touch(ctx, sess, req, now); err != nil {
		return d.deny(ctx, req, sess, err, "Session update failed")
	}
	if req.HasCounters() {
		if err := d.recordUsage(ctx, sess, req, now); err != nil {
			return d.deny(ctx, req, sess, err, "Usage update failed")
		}
	}

	d.record(ctx, &models.AuthLogEntry{
		UserID:    models.StringPtr(sess.UserID),
		SessionID: models.StringPtr(sess.ID),
		Action:    models.ActionAuth,
		Result:    models.ResultAllow,
		Message:   "Successful auth",
		GatewayID: gatewayOf(req, sess),
	})
	metrics.ProtocolRequests.WithLabelValues(string(KindAuth), "allow").Inc()
	return ResponseAllow
}

// logout applies any final counters, ends the session and denies.
func (d *Dispatcher) logout(ctx context.Context, req *AuthRequest, sess *models.Session, now time.Time) string {
	if req.HasCounters() {
		if err := d.recordUsage(ctx, sess, req, now); err != nil {
			d.errors.Handle("logout_usage", err, map[string]interface{}{"sessionId": sess.ID})
		}
	}

	tctx, cancel := context.WithTimeout(ctx, d.config.StorageTimeout)
	ended, err := d.sessions.Terminate(tctx, req.Token)
	cancel()

	entry := &models.AuthLogEntry{
		UserID:    models.StringPtr(sess.UserID),
		SessionID: models.StringPtr(sess.ID),
		Action:    models.ActionLogout,
		Result:    models.ResultSuccess,
		Message:   "Session ended by gateway",
		GatewayID: gatewayOf(req, sess),
	}
	switch {
	case err != nil:
		d.errors.Handle("terminate", err, map[string]interface{}{"sessionId": sess.ID})
		entry.Result = models.ResultFailure
		entry.Reason = string(apperrors.CodeOf(err))
		entry.Message = "Logout failed"
	case !ended:
		entry.Result = models.ResultFailure
		entry.Reason = string(apperrors.ErrCodeInvalidOrInactiveSession)
		entry.Message = "Session already ended"
	}
	d.record(ctx, entry)

	metrics.ProtocolRequests.WithLabelValues(string(KindAuth), "logout").Inc()
	return ResponseDeny
}

// Login builds the portal URL the gateway redirects a new client to.
func (d *Dispatcher) Login(req *LoginRequest) string {
	dest := req.URL
	if dest == "" || !strings.HasPrefix(strings.ToLower(dest), "http") {
		dest = d.config.DefaultURL
	}

	target, err := url.Parse(d.config.LoginURL)
	if err != nil {
		d.errors.Handle("login_redirect", err, map[string]interface{}{"loginUrl": d.config.LoginURL})
		metrics.ProtocolRequests.WithLabelValues(string(KindLogin), "error").Inc()
		return dest
	}

	q := target.Query()
	q.Set("gw_id", req.GatewayID)
	q.Set("gw_address", req.GatewayAddress)
	q.Set("gw_port", req.GatewayPort)
	q.Set("mac", req.MAC)
	q.Set("ip", req.IP)
	q.Set("url", dest)
	target.RawQuery = q.Encode()

	metrics.ProtocolRequests.WithLabelValues(string(KindLogin), "redirect").Inc()
	return target.String()
}

// Portal is where the gateway sends a client after a successful auth.
func (d *Dispatcher) Portal(req *PortalRequest) string {
	metrics.ProtocolRequests.WithLabelValues(string(KindPortal), "redirect").Inc()
	d.logger.Debug("Portal redirect", map[string]interface{}{"gatewayId": req.GatewayID})
	return d.config.SuccessURL
}

func (d *Dispatcher) validate(ctx context.Context, token string) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, d.config.StorageTimeout)
	defer cancel()
	return d.sessions.Validate(ctx, token)
}

func (d *Dispatcher) touch(ctx context.Context, sess *models.Session, req *AuthRequest, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, d.config.StorageTimeout)
	defer cancel()
	return d.sessions.Touch(ctx, sess.ID, req.IP, req.MAC, now)
}

func (d *Dispatcher) recordUsage(ctx context.Context, sess *models.Session, req *AuthRequest, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, d.config.StorageTimeout)
	defer cancel()
	in, out := req.Counters()
	return d.usage.RecordUsage(ctx, sess.ID, sess.UserID, gatewayOf(req, sess), in, out, now)
}

func (d *Dispatcher) deny(ctx context.Context, req *AuthRequest, sess *models.Session, err error, message string) string {
	code := apperrors.CodeOf(err)
	fields := map[string]interface{}{
		"token": logger.TokenPrefix(req.Token),
		"stage": string(req.Stage),
		"mac":   req.MAC,
	}

	entry := &models.AuthLogEntry{
		Action:    models.ActionAuth,
		Result:    models.ResultDeny,
		Reason:    string(code),
		Message:   message,
		GatewayID: req.GatewayID,
	}
	if sess != nil {
		entry.UserID = models.StringPtr(sess.UserID)
		entry.SessionID = models.StringPtr(sess.ID)
		entry.GatewayID = gatewayOf(req, sess)
		fields["sessionId"] = sess.ID
	}

	d.errors.Handle("auth", err, fields)
	d.record(ctx, entry)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("wifidog.deny_reason", string(code)))

	metrics.AuthDenials.WithLabelValues(string(code)).Inc()
	metrics.ProtocolRequests.WithLabelValues(string(KindAuth), "deny").Inc()
	return ResponseDeny
}

// record appends to the audit sink. Audit failures never change a decision.
func (d *Dispatcher) record(ctx context.Context, entry *models.AuthLogEntry) {
	entry.CreatedAt = d.now()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.config.StorageTimeout)
	defer cancel()
	if err := d.audit.Append(ctx, entry); err != nil {
		fields := audit.Fields(entry)
		fields["error"] = err.Error()
		d.logger.Warn("Failed to append auth log", fields)
	}
}

func (d *Dispatcher) now() time.Time {
	return d.clock.Now().UTC()
}

func gatewayOf(req *AuthRequest, sess *models.Session) string {
	if req.GatewayID != "" {
		return req.GatewayID
	}
	return sess.GatewayID
}

func kindLabel(kind string) Kind {
	switch k := Kind(strings.ToLower(kind)); k {
	case KindPing, KindAuth, KindLogin, KindPortal:
		return k
	}
	return "unknown"
}
