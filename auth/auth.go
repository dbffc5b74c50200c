// Package auth determines and asserts client permissions to access server
// resources.
package auth

import (
	"github.com/kagami-ch/kagami/config"
)

// Capability is a named permission a viewer identity may or may not hold
type Capability string

// All capabilities checked on the read path
const (
	// SeeModeration grants visibility of deleted posts, deleted images and
	// per-post moderation logs
	SeeModeration Capability = "seeModeration"

	// SeeMnemonics grants visibility of poster mnemonics
	SeeMnemonics Capability = "seeMnemonics"
)

// Ident is used to verify a client's access permissions. It is supplied by
// the session layer and immutable for the duration of a request.
type Ident struct {
	// IP the requests originate from
	IP string

	// Capabilities granted to this identity
	Caps []Capability

	// Boards the identity holds a staff position on
	Boards []string
}

// HasCapability returns whether ident grants the named capability
func HasCapability(cap Capability, ident Ident) bool {
	for _, c := range ident.Caps {
		if c == cap {
			return true
		}
	}
	return false
}

// OnBoardStaff returns whether ident holds a staff position on board
func OnBoardStaff(board string, ident Ident) bool {
	for _, b := range ident.Boards {
		if b == board {
			return true
		}
	}
	return false
}

// CanAccessBoard returns whether ident can read the board. Unknown boards
// and the designated staff board without the matching capability are both
// inaccessible.
func CanAccessBoard(board string, ident Ident) bool {
	if !config.IsBoard(board) {
		return false
	}
	if board == config.Get().StaffBoard {
		return HasCapability(SeeModeration, ident) ||
			OnBoardStaff(board, ident)
	}
	return true
}

// CanAccessThread composes board-level access with thread-specific
// restrictions. No thread-level restrictions are currently defined beyond
// those of the parent board.
func CanAccessThread(id uint64, board string, ident Ident) bool {
	return CanAccessBoard(board, ident)
}
