package domain

// Format describes the negotiation format of a session.
type Format string

const (
	// FormatABBA is the two-seat ban format with fixed order A, B, B, A.
	FormatABBA Format = "ABBA"
	// FormatMultiplayer is the four-seat round-based voting format.
	FormatMultiplayer Format = "MULTIPLAYER"
)

// Valid reports whether the format is one of the supported values.
func (f Format) Valid() bool {
	return f == FormatABBA || f == FormatMultiplayer
}

// PlayerCount returns the number of seats the format requires.
func (f Format) PlayerCount() int {
	switch f {
	case FormatABBA:
		return 2
	case FormatMultiplayer:
		return 4
	default:
		return 0
	}
}

// SeatRole identifies one team's slot within a session.
type SeatRole string

const (
	RolePlayerA SeatRole = "PLAYER_A"
	RolePlayerB SeatRole = "PLAYER_B"
	RolePlayer1 SeatRole = "PLAYER_1"
	RolePlayer2 SeatRole = "PLAYER_2"
	RolePlayer3 SeatRole = "PLAYER_3"
	RolePlayer4 SeatRole = "PLAYER_4"
)

// Roles returns the seat roles a format expects, in seat order.
func Roles(f Format) []SeatRole {
	switch f {
	case FormatABBA:
		return []SeatRole{RolePlayerA, RolePlayerB}
	case FormatMultiplayer:
		return []SeatRole{RolePlayer1, RolePlayer2, RolePlayer3, RolePlayer4}
	default:
		return nil
	}
}

// ValidFor reports whether the role belongs to the given format.
func (r SeatRole) ValidFor(f Format) bool {
	for _, role := range Roles(f) {
		if role == r {
			return true
		}
	}
	return false
}
