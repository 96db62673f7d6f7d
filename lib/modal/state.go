package modal

//go:generate go tool golang.org/x/tools/cmd/stringer -type=State -trimprefix=State

// State is where a dialog session is in its lifecycle:
//
//	Hidden -> Loading -> AwaitingInput -> ResolvedOK | ResolvedCancel -> Hidden
//
// Loading may also resolve directly when the server requires no challenge or
// the fetch fails.
type State int

const (
	StateHidden State = iota
	StateLoading
	StateAwaitingInput
	StateResolvedOK
	StateResolvedCancel
)

// Open reports whether the dialog is visible to the user in this state.
func (s State) Open() bool {
	return s == StateAwaitingInput
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
