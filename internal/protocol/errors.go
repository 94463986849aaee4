package protocol

const (
	// Boundary validation.
	ErrConfig     = "E_CONFIG"
	ErrState      = "E_STATE"
	ErrBadRequest = "E_BAD_REQUEST"

	// Read layer.
	ErrNotFound = "E_NOT_FOUND"
	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrConfig:     {},
	ErrState:      {},
	ErrBadRequest: {},
	ErrNotFound:   {},
	ErrInternal:   {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// ErrorMsg is the structured error body returned by the API layer.
// Field is set for E_CONFIG errors and names the offending parameter.
type ErrorMsg struct {
	Code   string `json:"code"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}
