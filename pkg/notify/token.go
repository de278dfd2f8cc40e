// Package notify delivers approval prompts to a chat channel and encodes
// the callback tokens its buttons carry.
package notify

import (
	"fmt"
	"strconv"
	"strings"
)

// Action is the decision a callback token encodes.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionKeep    Action = "keep"
	ActionApply   Action = "apply"
	ActionCancel  Action = "cancel"
)

// MaxTokenLen is the transport's callback payload budget in bytes.
const MaxTokenLen = 64

const tokenPrefix = "rk:batch"

// Token is a parsed callback token. ItemIndex is 0 for batch-level actions.
type Token struct {
	Action    Action
	BatchID   string
	ItemIndex int
}

// ItemToken encodes a per-item decision: rk:batch:<action>:<batchID>:<index>.
func ItemToken(action Action, batchID string, itemIndex int) (string, error) {
	return buildToken(fmt.Sprintf("%s:%s:%s:%d", tokenPrefix, action, batchID, itemIndex))
}

// BatchToken encodes a batch-level action: rk:batch:<action>:<batchID>.
func BatchToken(action Action, batchID string) (string, error) {
	return buildToken(fmt.Sprintf("%s:%s:%s", tokenPrefix, action, batchID))
}

func buildToken(token string) (string, error) {
	if len(token) > MaxTokenLen {
		return "", fmt.Errorf("callback token exceeds %d bytes: %q", MaxTokenLen, token)
	}
	return token, nil
}

// ParseToken decodes a callback token. Unknown prefixes, actions, or
// malformed indexes are errors.
func ParseToken(raw string) (*Token, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 4 || parts[0]+":"+parts[1] != tokenPrefix {
		return nil, fmt.Errorf("unrecognized callback token: %q", raw)
	}

	action := Action(parts[2])
	switch action {
	case ActionApprove, ActionReject, ActionKeep:
		if len(parts) != 5 {
			return nil, fmt.Errorf("item token %q needs an item index", raw)
		}
		idx, err := strconv.Atoi(parts[4])
		if err != nil || idx < 1 {
			return nil, fmt.Errorf("invalid item index in token %q", raw)
		}
		return &Token{Action: action, BatchID: parts[3], ItemIndex: idx}, nil
	case ActionApply, ActionCancel:
		if len(parts) != 4 {
			return nil, fmt.Errorf("batch token %q takes no item index", raw)
		}
		return &Token{Action: action, BatchID: parts[3]}, nil
	default:
		return nil, fmt.Errorf("unknown callback action %q", parts[2])
	}
}
