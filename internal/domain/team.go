package domain

import "time"

// Profile is a player account. Wallet is the checksummed hex address the
// caller authenticates with.
type Profile struct {
	ID        string
	Username  string
	Wallet    string
	Suspended bool
	WagerMode bool
	TrustMode bool
	Deleted   bool
	CreatedAt time.Time
}

// TeamRole is a member's role inside a team.
type TeamRole string

const (
	RoleFounder TeamRole = "founder"
	RoleLeader  TeamRole = "leader"
	RoleMember  TeamRole = "member"
)

// CanCaptain reports whether the role may field a roster.
func (r TeamRole) CanCaptain() bool { return r == RoleFounder || r == RoleLeader }

// Team is a group of profiles competing in one game.
type Team struct {
	ID      string
	Name    string
	GameID  string
	Deleted bool
}

// TeamProfile is a profile's membership in a team.
type TeamProfile struct {
	ID        string
	TeamID    string
	ProfileID string
	Role      TeamRole
	Pending   bool
	Deleted   bool
}

// AttributeKind distinguishes how a custom attribute is resolved.
type AttributeKind string

const (
	AttributeSelect     AttributeKind = "select"
	AttributePickRandom AttributeKind = "pick_random"
)

// AttributeOption is one choice of a custom attribute.
type AttributeOption struct {
	OptionID    string `json:"option_id"`
	DisplayName string `json:"display_name"`
}

// CustomAttribute is a game-defined battle setting such as map or mode.
type CustomAttribute struct {
	AttributeID string            `json:"attribute_id"`
	DisplayName string            `json:"display_name"`
	Kind        AttributeKind     `json:"kind"`
	MultiSelect bool              `json:"multi_select"`
	Options     []AttributeOption `json:"options"`
}

// HasOption reports whether id is one of the attribute's options.
func (a CustomAttribute) HasOption(id string) bool {
	for _, o := range a.Options {
		if o.OptionID == id {
			return true
		}
	}
	return false
}

// Game is a title battles are played in.
type Game struct {
	ID               string
	Title            string
	CustomAttributes []CustomAttribute
}
