// Package directory resolves the external entities the booking engine
// references: properties, customers, and salesperson users. The engine only
// consumes existence and published/active state; everything else about
// these records belongs to their own services.
package directory

// PropertyRef is the engine-facing view of a property record.
type PropertyRef struct {
	ID        string
	Title     string
	Published bool
}

// CustomerRef is the engine-facing view of a customer record.
type CustomerRef struct {
	ID     string
	Name   string
	Active bool
}

// UserRef is the engine-facing view of a staff user record.
type UserRef struct {
	ID     string
	Name   string
	Role   string
	Active bool
}
