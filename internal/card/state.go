package card

// Visibility is the portfolio's display state on a card.
type Visibility int

const (
	// Hidden is the initial state: no project list is shown.
	Hidden Visibility = iota
	// Visible shows the project list.
	Visible
)

// Button captions for each state.
const (
	ShowLabel = "show portfolio"
	HideLabel = "hide portfolio"
)

func (v Visibility) String() string {
	if v == Visible {
		return "visible"
	}
	return "hidden"
}

// State holds whether one card's portfolio is showing.
// The zero value is a new card with the portfolio hidden.
type State struct {
	visibility Visibility
}

// NewState returns a card state in its initial Hidden state.
func NewState() *State {
	return &State{visibility: Hidden}
}

// Toggle flips the portfolio between Hidden and Visible.
func (s *State) Toggle() {
	switch s.visibility {
	case Hidden:
		s.visibility = Visible
	case Visible:
		s.visibility = Hidden
	}
}

// Visibility returns the current state.
func (s *State) Visibility() Visibility {
	return s.visibility
}

// IsVisible reports whether the portfolio is showing.
func (s *State) IsVisible() bool {
	return s.visibility == Visible
}

// Label returns the caption the toggle button should carry.
func (s *State) Label() string {
	if s.IsVisible() {
		return HideLabel
	}
	return ShowLabel
}
