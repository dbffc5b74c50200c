// Package config stores and exports the server configuration and the set of
// loaded board configurations
package config

import "sync"

var (
	// Ensures no reads happen, while the configuration is reloading
	globalMu, boardMu sync.RWMutex

	// Contains currently loaded global server configuration
	global = &Defaults

	// Map of board IDs to their configuration structs
	boardConfigs = map[string]BoardConfigs{}

	// Defaults contains the default server configuration values
	Defaults = Configs{
		Salt: "LALALALALALALALALALALALALALALALALALALALA",
	}
)

// Configs stores the global server configuration
type Configs struct {
	// Salt for deriving poster mnemonics from IPs
	Salt string `json:"salt"`

	// ID of the designated staff-only board, if any. Access requires the
	// moderation capability.
	StaffBoard string `json:"staffBoard"`
}

// BoardConfigs stores board-specific configuration
type BoardConfigs struct {
	ReadOnly bool     `json:"readOnly"`
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Notice   string   `json:"notice"`
	Rules    []string `json:"rules"`
}

// Get returns a pointer to the current server configuration struct. The
// struct must not be mutated.
func Get() *Configs {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// Set sets the internal configuration struct
func Set(c Configs) {
	globalMu.Lock()
	global = &c
	globalMu.Unlock()
}

// GetBoardConfigs returns the configuration of a specific board and whether
// such a board is loaded at all
func GetBoardConfigs(id string) (BoardConfigs, bool) {
	boardMu.RLock()
	defer boardMu.RUnlock()
	c, ok := boardConfigs[id]
	return c, ok
}

// SetBoardConfigs loads or updates the configuration of a single board
func SetBoardConfigs(c BoardConfigs) {
	boardMu.Lock()
	boardConfigs[c.ID] = c
	boardMu.Unlock()
}

// RemoveBoardConfigs unloads a board's configuration after board deletion
func RemoveBoardConfigs(id string) {
	boardMu.Lock()
	delete(boardConfigs, id)
	boardMu.Unlock()
}

// GetBoards returns the IDs of all loaded boards
func GetBoards() []string {
	boardMu.RLock()
	defer boardMu.RUnlock()
	ids := make([]string, 0, len(boardConfigs))
	for id := range boardConfigs {
		ids = append(ids, id)
	}
	return ids
}

// IsBoard returns whether the passed ID is a loaded board
func IsBoard(id string) bool {
	boardMu.RLock()
	defer boardMu.RUnlock()
	_, ok := boardConfigs[id]
	return ok
}

// Clear resets package state. Only used in tests.
func Clear() {
	globalMu.Lock()
	global = &Configs{}
	globalMu.Unlock()

	boardMu.Lock()
	boardConfigs = map[string]BoardConfigs{}
	boardMu.Unlock()
}
