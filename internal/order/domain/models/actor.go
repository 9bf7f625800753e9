package models

const (
	RoleManager  = "manager"
	RoleKitchen  = "kitchen"
	RoleRider    = "rider"
	RoleCustomer = "customer"
)

// Actor is whoever is driving a mutation. Anonymous customers have Public set.
type Actor struct {
	UserID   int64
	Username string
	Role     string
	Public   bool
}

func CustomerActor() Actor {
	return Actor{Username: RoleCustomer, Role: RoleCustomer, Public: true}
}

func (a Actor) Privileged() bool {
	return !a.Public && (a.Role == RoleManager || a.Role == RoleKitchen)
}

func (a Actor) IsRider() bool {
	return !a.Public && a.Role == RoleRider
}

// Name is what the audit trail records as changed_by.
func (a Actor) Name() string {
	if a.Public {
		return RoleCustomer
	}
	return a.Username
}
