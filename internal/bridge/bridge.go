// Package bridge carries requests from the CLI to an authenticated
// ServiceNow browser session through three tiers: the Controller picks a
// candidate session and owns retry policy, the Relay enforces origin and
// timeout per request, and the Agent executes the remote calls with the
// session's cookies.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/colonyops/tempo/internal/core/servicenow"
	"github.com/colonyops/tempo/pkg/randid"
)

// Bridge actions.
const (
	ActionCheckSession  = "checkSession"
	ActionFetchLookups  = "fetchLookups"
	ActionSyncTimeCards = "syncTimeCards"
)

// DefaultTimeoutMs is the per-request relay timeout when the envelope does
// not set one.
const DefaultTimeoutMs = 15_000

// Envelope is one bridge request. The request id correlates the eventual
// response; a response arriving after its id is no longer pending is
// dropped.
type Envelope struct {
	RequestID string          `json:"requestId"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	TimeoutMs int64           `json:"timeoutMs,omitempty"`
}

// NewEnvelope builds an envelope with a fresh request id and the payload
// serialized.
func NewEnvelope(action string, payload any) (Envelope, error) {
	env := Envelope{
		RequestID: randid.Generate(12),
		Action:    action,
	}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", action, err)
		}
		env.Payload = raw
	}

	return env, nil
}

// Response is the structured result of one bridge request. Every tier
// answers with a Response; unexpected internal failures are translated
// into SN_API_ERROR rather than surfacing raw errors.
type Response struct {
	OK           bool            `json:"ok"`
	Code         servicenow.Code `json:"code,omitempty"`
	Message      string          `json:"message,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	RecoveryHint string          `json:"recoveryHint,omitempty"`
}

// OKResponse wraps data in a successful response.
func OKResponse(data any) Response {
	raw, err := json.Marshal(data)
	if err != nil {
		return ErrResponse(servicenow.NewError(servicenow.CodeAPIError, "encode response data: %v", err))
	}
	return Response{OK: true, Data: raw}
}

// ErrResponse converts an error into a coded response.
func ErrResponse(err error) Response {
	return Response{
		OK:           false,
		Code:         servicenow.CodeOf(err),
		Message:      err.Error(),
		RecoveryHint: servicenow.HintOf(err),
	}
}

// Err reconstructs the structured error carried by a failed response.
func (r Response) Err() error {
	if r.OK {
		return nil
	}
	e := &servicenow.Error{Code: r.Code, Message: r.Message, RecoveryHint: r.RecoveryHint}
	if e.Code == "" {
		e.Code = servicenow.CodeAPIError
	}
	return e
}

// Decode unmarshals the response data into dest.
func (r Response) Decode(dest any) error {
	if err := r.Err(); err != nil {
		return err
	}
	if err := json.Unmarshal(r.Data, dest); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// Transport delivers an envelope to one candidate session. A returned
// error means the session could not be reached at all; remote failures
// come back as failed Responses.
type Transport interface {
	Send(ctx context.Context, sess servicenow.Session, env Envelope) (Response, error)
}
