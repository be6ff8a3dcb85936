package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role is a member's role within a group.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Member represents one person in a group's roster.
type Member struct {
	// ID is the member's identifier. It is the same ID carried in the
	// actor's bearer token.
	ID string `json:"id"`

	// DisplayName is the human-readable name (e.g., "Asha").
	DisplayName string `json:"displayName"`

	// PaymentHandle is an optional handle used to pay this member
	// (e.g., a UPI ID). Only shown alongside settlement suggestions.
	PaymentHandle string `json:"paymentHandle,omitempty"`

	// Role decides who may override expense status or delete other
	// members' expenses.
	Role Role `json:"role"`
}

// Budget is a group's optional spending cap.
type Budget struct {
	Max decimal.Decimal `json:"max"`
}

// Group represents a travel group and its member roster.
// Members are kept in membership order, which is also the order
// balances are reported in.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string `json:"id"`

	// Name is the display name of the group (e.g., "Goa 2026").
	Name string `json:"name"`

	// Members is the ordered roster.
	Members []Member `json:"members"`

	// Budget is nil when the group has no budget configured.
	Budget *Budget `json:"budget,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Member returns the member with the given ID and whether it was found.
func (g *Group) Member(id string) (Member, bool) {
	for _, m := range g.Members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

// HasMember reports whether id is in the current roster.
func (g *Group) HasMember(id string) bool {
	_, ok := g.Member(id)
	return ok
}

// IsAdmin reports whether id is a current member with the admin role.
func (g *Group) IsAdmin(id string) bool {
	m, ok := g.Member(id)
	return ok && m.Role == RoleAdmin
}

// MemberIDs returns the roster IDs in membership order.
func (g *Group) MemberIDs() []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}
