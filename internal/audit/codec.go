package audit

import (
	"encoding/json"
	"fmt"
)

type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodePayload serializes a payload into its storage envelope.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return json.Marshal(envelope{Kind: "none", Data: json.RawMessage("{}")})
	}
	if u, ok := p.(UnrecognizedPayload); ok {
		// Write back exactly what was read so foreign rows survive rewrites.
		return json.Marshal(envelope{Kind: u.Kind, Data: u.Raw})
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("audit: encode payload: %w", err)
	}
	return json.Marshal(envelope{Kind: p.payloadKind(), Data: data})
}

// DecodePayload deserializes a storage envelope back into its typed shape.
// Unknown kinds come back as UnrecognizedPayload rather than an error.
func DecodePayload(raw []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("audit: decode envelope: %w", err)
	}
	switch env.Kind {
	case "entry_posted":
		var p EntryPostedPayload
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "entry_voided":
		var p EntryVoidedPayload
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "period_transition":
		var p PeriodTransitionPayload
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "recon_transition":
		var p ReconTransitionPayload
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "recon_matched":
		var p ReconMatchedPayload
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "recon_line_excluded":
		var p ReconLineExcludedPayload
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "adjustment_posted":
		var p AdjustmentPostedPayload
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "account":
		var p AccountPayload
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "none":
		return nil, nil
	default:
		return UnrecognizedPayload{Kind: env.Kind, Raw: env.Data}, nil
	}
}

func unmarshalData(env envelope, target any) error {
	if err := json.Unmarshal(env.Data, target); err != nil {
		return fmt.Errorf("audit: decode %s: %w", env.Kind, err)
	}
	return nil
}
