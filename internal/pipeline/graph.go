// Package pipeline implements the dependency-ordered transform/load
// stages that turn staged source rows into target entities, and the
// scheduler that drives them. The entity dependency graph is declared
// here once; migration order is always a topological sort of it, and
// entity types with no path between them may load concurrently.
package pipeline

import (
	"fmt"

	"github.com/mesh-intelligence/porter/pkg/types"
)

// dependencies declares the entity DAG: an entity depends on every
// entity whose mapping or target rows its transform reads.
var dependencies = map[types.EntityType][]types.EntityType{
	types.EntityPlans:         nil,
	types.EntityCustomers:     nil,
	types.EntitySubscriptions: {types.EntityCustomers, types.EntityPlans},
	types.EntityDevices:       {types.EntitySubscriptions},
	types.EntityInvoices:      {types.EntityCustomers, types.EntitySubscriptions},
	types.EntityPayments:      {types.EntityInvoices, types.EntityCustomers},
	types.EntityTickets:       {types.EntityCustomers},
	types.EntityUsage:         {types.EntityDevices},
	types.EntityRevenue:       {types.EntityInvoices},
}

// Deps returns the declared dependencies of an entity type.
func Deps(entity types.EntityType) []types.EntityType {
	return dependencies[entity]
}

// Levels groups the entity types into topological levels: every entity
// in level n depends only on entities in levels < n. Entities within
// one level are mutually independent and may run concurrently. The
// grouping is deterministic; within a level, entities keep their
// types.AllEntities order.
func Levels() ([][]types.EntityType, error) {
	depth := make(map[types.EntityType]int, len(dependencies))

	var resolve func(e types.EntityType, trail map[types.EntityType]bool) (int, error)
	resolve = func(e types.EntityType, trail map[types.EntityType]bool) (int, error) {
		if d, ok := depth[e]; ok {
			return d, nil
		}
		if trail[e] {
			return 0, fmt.Errorf("dependency cycle through %s", e)
		}
		trail[e] = true
		d := 0
		for _, dep := range dependencies[e] {
			dd, err := resolve(dep, trail)
			if err != nil {
				return 0, err
			}
			if dd+1 > d {
				d = dd + 1
			}
		}
		delete(trail, e)
		depth[e] = d
		return d, nil
	}

	maxDepth := 0
	for _, e := range types.AllEntities {
		d, err := resolve(e, map[types.EntityType]bool{})
		if err != nil {
			return nil, err
		}
		if d > maxDepth {
			maxDepth = d
		}
	}

	levels := make([][]types.EntityType, maxDepth+1)
	for _, e := range types.AllEntities {
		levels[depth[e]] = append(levels[depth[e]], e)
	}
	return levels, nil
}

// Order flattens Levels into a single topological order.
func Order() ([]types.EntityType, error) {
	levels, err := Levels()
	if err != nil {
		return nil, err
	}
	var order []types.EntityType
	for _, level := range levels {
		order = append(order, level...)
	}
	return order, nil
}
