package model

import "github.com/pubtracker/ackscan/pkg/errclass"

// Flag is a tri-state ledger boolean serialized as True, False or None.
type Flag int

const (
	FlagNone Flag = iota
	FlagFalse
	FlagTrue
)

// Ledger tokens.
const (
	TokenTrue  = "True"
	TokenFalse = "False"
	TokenNone  = "None"
)

// FlagOf converts a decided boolean.
func FlagOf(b bool) Flag {
	if b {
		return FlagTrue
	}
	return FlagFalse
}

// ParseFlag parses a ledger token. The empty string reads as None.
func ParseFlag(token string) (Flag, error) {
	switch token {
	case TokenTrue:
		return FlagTrue, nil
	case TokenFalse:
		return FlagFalse, nil
	case TokenNone, "":
		return FlagNone, nil
	default:
		return FlagNone, errclass.ErrLedgerCorrupt.WithMessagef("unknown boolean token %q", token)
	}
}

// Bool reports whether the flag is True. None reads as false.
func (f Flag) Bool() bool {
	return f == FlagTrue
}

func (f Flag) String() string {
	switch f {
	case FlagTrue:
		return TokenTrue
	case FlagFalse:
		return TokenFalse
	default:
		return TokenNone
	}
}
