package codec

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// FinishCall is the host's answer to a blocking callback.
//
// FinishCallbackID names the listener event being answered. TrackedBarcodeID and
// SessionFrameSequenceID identify the occurrence for tracked-object kinds and
// are nil when the host omitted them. HasResult is false when the host sent no
// result at all; Result then is empty. A JSON null result has HasResult set.
type FinishCall struct {
	FinishCallbackID       string
	TrackedBarcodeID       *int
	SessionFrameSequenceID *string
	Result                 json.RawMessage
	HasResult              bool
}

type finishWire struct {
	FinishCallbackID       string          `json:"finishCallbackID"`
	TrackedBarcodeID       *int            `json:"trackedBarcodeID,omitempty"`
	SessionFrameSequenceID json.RawMessage `json:"sessionFrameSequenceID,omitempty"`
	Result                 json.RawMessage `json:"result,omitempty"`
}

// DecodeFinish parses and validates a finish call.
func DecodeFinish(raw []byte) (FinishCall, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return FinishCall{}, errors.Wrapf(ErrMalformedPayload, "finish: invalid json: %v", err)
	}
	if err := validate("finish.json", generic); err != nil {
		return FinishCall{}, err
	}
	var wire finishWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return FinishCall{}, errors.Wrapf(ErrMalformedPayload, "finish: %v", err)
	}
	call := FinishCall{
		FinishCallbackID: wire.FinishCallbackID,
		TrackedBarcodeID: wire.TrackedBarcodeID,
	}
	if len(wire.SessionFrameSequenceID) > 0 && !isNull(wire.SessionFrameSequenceID) {
		cycle, err := sequenceID(wire.SessionFrameSequenceID)
		if err != nil {
			return FinishCall{}, err
		}
		call.SessionFrameSequenceID = &cycle
	}
	// encoding/json leaves RawMessage nil for an absent key and sets it to "null" for a null value
	if wire.Result != nil {
		call.Result = wire.Result
		call.HasResult = true
	}
	return call, nil
}

// DecodeFinishPayload is DecodeFinish for an already parsed payload.
func DecodeFinishPayload(p Payload) (FinishCall, error) {
	if p == nil {
		return FinishCall{}, errors.Wrap(ErrMalformedPayload, "finish: empty payload")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return FinishCall{}, errors.Wrapf(ErrMalformedPayload, "finish: %v", err)
	}
	return DecodeFinish(raw)
}

// EncodeFinish renders a finish call back to its wire form.
func EncodeFinish(call FinishCall) ([]byte, error) {
	wire := finishWire{
		FinishCallbackID: call.FinishCallbackID,
		TrackedBarcodeID: call.TrackedBarcodeID,
	}
	if call.SessionFrameSequenceID != nil {
		wire.SessionFrameSequenceID = json.RawMessage(strconv.Quote(*call.SessionFrameSequenceID))
	}
	if call.HasResult {
		wire.Result = call.Result
		if len(wire.Result) == 0 {
			wire.Result = json.RawMessage("null")
		}
	}
	return json.Marshal(wire)
}

// sequenceID accepts the frame sequence either as a string or as an integer
func sequenceID(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", errors.Wrapf(ErrMalformedPayload, "finish: sessionFrameSequenceID: %v", err)
		}
		return s, nil
	}
	var n int64
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", errors.Wrapf(ErrMalformedPayload, "finish: sessionFrameSequenceID: %v", err)
	}
	return strconv.FormatInt(n, 10), nil
}
