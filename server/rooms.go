package main

type roomKind int

const (
	roomUser roomKind = iota
	roomCompany
	roomAdmin
)

// Room is a named subscription group. Rooms have no existence of their own;
// they are derived from the set of connections currently joined.
type Room struct {
	kind    roomKind
	account string
}

func UserRoom(accountID string) Room    { return Room{kind: roomUser, account: accountID} }
func CompanyRoom(accountID string) Room { return Room{kind: roomCompany, account: accountID} }
func AdminRoom() Room                   { return Room{kind: roomAdmin} }

// Name is the canonical room name used as the registry key.
func (r Room) Name() string {
	switch r.kind {
	case roomUser:
		return "user-" + r.account
	case roomCompany:
		return "company-" + r.account
	default:
		return "admin"
	}
}

// RoomsForRegistration maps one register-user call to the room set the
// connection joins: its own room always, the company room for companies,
// and the admin room for every admin regardless of identity.
func RoomsForRegistration(accountID, role string) []Room {
	rooms := []Room{UserRoom(accountID)}
	switch role {
	case RoleCompany:
		rooms = append(rooms, CompanyRoom(accountID))
	case RoleAdmin:
		rooms = append(rooms, AdminRoom())
	}
	return rooms
}
