package types

import "errors"

// EntityType identifies one migratable entity class. The string value is
// used as the suffix of staging tables (staging_<entity>) and mapping
// tables (map_<entity>), and as the key of the entity_progress table.
type EntityType string

// Entity types, in dependency order.
const (
	EntityPlans         EntityType = "plans"
	EntityCustomers     EntityType = "customers"
	EntitySubscriptions EntityType = "subscriptions"
	EntityDevices       EntityType = "devices"
	EntityInvoices      EntityType = "invoices"
	EntityPayments      EntityType = "payments"
	EntityTickets       EntityType = "tickets"
	EntityUsage         EntityType = "usage"
	EntityRevenue       EntityType = "revenue"
)

// AllEntities lists every entity type in a valid (but not the only valid)
// dependency order.
var AllEntities = []EntityType{
	EntityPlans,
	EntityCustomers,
	EntitySubscriptions,
	EntityDevices,
	EntityInvoices,
	EntityPayments,
	EntityTickets,
	EntityUsage,
	EntityRevenue,
}

// knownEntities is the lookup set behind ParseEntity.
var knownEntities = func() map[EntityType]bool {
	m := make(map[EntityType]bool, len(AllEntities))
	for _, e := range AllEntities {
		m[e] = true
	}
	return m
}()

// ErrUnknownEntity is returned when an entity type name is not recognized.
var ErrUnknownEntity = errors.New("unknown entity type")

// ParseEntity validates a user-supplied entity type name.
func ParseEntity(name string) (EntityType, error) {
	e := EntityType(name)
	if !knownEntities[e] {
		return "", ErrUnknownEntity
	}
	return e, nil
}

// StagingTable returns the staging table name for the entity.
func (e EntityType) StagingTable() string {
	return "staging_" + string(e)
}

// MappingTable returns the mapping table name for the entity.
func (e EntityType) MappingTable() string {
	return "map_" + string(e)
}

// LifecycleState tracks how far one entity type has progressed through
// the migration. States only ever advance; re-entering a state is a no-op.
type LifecycleState string

// Lifecycle states in order.
const (
	StatePending    LifecycleState = "pending"
	StateSeeded     LifecycleState = "seeded"
	StateLoaded     LifecycleState = "loaded"
	StateReconciled LifecycleState = "reconciled"
)

// stateRank orders lifecycle states for monotone advancement.
var stateRank = map[LifecycleState]int{
	StatePending:    0,
	StateSeeded:     1,
	StateLoaded:     2,
	StateReconciled: 3,
}

// ErrInvalidState is returned for a lifecycle state outside the known set.
var ErrInvalidState = errors.New("invalid lifecycle state")

// Rank returns the ordinal position of the state, or -1 if unknown.
func (s LifecycleState) Rank() int {
	r, ok := stateRank[s]
	if !ok {
		return -1
	}
	return r
}

// Valid reports whether s is a known lifecycle state.
func (s LifecycleState) Valid() bool {
	_, ok := stateRank[s]
	return ok
}
