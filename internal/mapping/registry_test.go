package mapping_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/porter/internal/logging"
	"github.com/mesh-intelligence/porter/internal/mapping"
	"github.com/mesh-intelligence/porter/internal/store"
	"github.com/mesh-intelligence/porter/internal/store/storetest"
	"github.com/mesh-intelligence/porter/pkg/types"
)

// stageCustomer inserts a staged customer with optional history rows.
func stageCustomer(t *testing.T, s *store.Store, id int64, withSubscription, withInvoice, withPayment bool) {
	t.Helper()
	storetest.Exec(t, s.DB(), `INSERT INTO staging_customers
    (customer_id, full_name, email, created_on, status)
VALUES (?, ?, ?, '2020-01-01', 'A')`, id, "Customer", "")

	if withSubscription {
		storetest.Exec(t, s.DB(), `INSERT INTO staging_subscriptions
    (subscription_id, customer_id, plan_id, started_on, status)
VALUES (?, ?, 1, '2020-02-01', 'A')`, id*10, id)
	}
	if withInvoice {
		storetest.Exec(t, s.DB(), `INSERT INTO staging_invoices
    (invoice_id, customer_id, issued_on, total_cents, status)
VALUES (?, ?, '2020-03-01', 1000, 'P')`, id*100, id)
	}
	if withPayment {
		storetest.Exec(t, s.DB(), `INSERT INTO staging_payments
    (payment_id, customer_id, paid_on, amount_cents, method)
VALUES (?, ?, '2020-04-01', 1000, 'cc')`, id*1000, id)
	}
}

func TestSeedAssignsOneEntryPerKey(t *testing.T) {
	s := storetest.Open(t, "")
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		storetest.Exec(t, s.DB(),
			"INSERT INTO staging_plans (plan_id, code, name, monthly_cents, status) VALUES (?, 'p', 'P', 100, 'A')", i)
	}

	reg := mapping.New(s, logging.Nop())
	n, err := reg.Seed(ctx, types.EntityPlans)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, int64(3), storetest.Count(t, s.DB(), "SELECT COUNT(*) FROM map_plans"))

	// Target keys are well-formed UUIDs.
	rows, err := s.DB().Query("SELECT target_id FROM map_plans")
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	}
	require.NoError(t, rows.Err())
}

func TestSeedIsDeterministicAcrossReRuns(t *testing.T) {
	s := storetest.Open(t, "")
	ctx := context.Background()
	reg := mapping.New(s, logging.Nop())

	stageCustomer(t, s, 1, true, false, false)
	stageCustomer(t, s, 2, false, true, false)

	n, err := reg.Seed(ctx, types.EntityCustomers)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	first, err := reg.TargetKey(ctx, types.EntityCustomers, 1)
	require.NoError(t, err)

	// Second seed creates nothing and reassigns nothing.
	n, err = reg.Seed(ctx, types.EntityCustomers)
	require.NoError(t, err)
	assert.Zero(t, n)

	again, err := reg.TargetKey(ctx, types.EntityCustomers, 1)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	// A genuinely new source row gets a new entry; old ones keep theirs.
	stageCustomer(t, s, 3, false, false, true)
	n, err = reg.Seed(ctx, types.EntityCustomers)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	again, err = reg.TargetKey(ctx, types.EntityCustomers, 1)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestSeedQualificationFilterExcludesHistorylessCustomers(t *testing.T) {
	s := storetest.Open(t, "")
	ctx := context.Background()
	reg := mapping.New(s, logging.Nop())

	stageCustomer(t, s, 1, true, false, false)  // subscription: qualified
	stageCustomer(t, s, 2, false, true, false)  // invoice: qualified
	stageCustomer(t, s, 3, false, false, true)  // payment: qualified
	stageCustomer(t, s, 4, false, false, false) // no history: excluded

	n, err := reg.Seed(ctx, types.EntityCustomers)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = reg.TargetKey(ctx, types.EntityCustomers, 4)
	assert.ErrorIs(t, err, types.ErrNotSeeded)

	// Still excluded on a re-run: the filter decision is permanent.
	_, err = reg.Seed(ctx, types.EntityCustomers)
	require.NoError(t, err)
	assert.Equal(t, int64(0),
		storetest.Count(t, s.DB(), "SELECT COUNT(*) FROM map_customers WHERE source_id = 4"))
}

func TestSeedCustomersAssignsDualKeys(t *testing.T) {
	s := storetest.Open(t, "")
	reg := mapping.New(s, logging.Nop())

	stageCustomer(t, s, 1, true, false, false)
	_, err := reg.Seed(context.Background(), types.EntityCustomers)
	require.NoError(t, err)

	var targetID, contactID string
	require.NoError(t, s.DB().QueryRow(
		"SELECT target_id, contact_id FROM map_customers WHERE source_id = 1",
	).Scan(&targetID, &contactID))
	assert.NotEmpty(t, targetID)
	assert.NotEmpty(t, contactID)
	assert.NotEqual(t, targetID, contactID)
}

func TestSeedSkipsUnmappedEntities(t *testing.T) {
	s := storetest.Open(t, "")
	reg := mapping.New(s, logging.Nop())

	n, err := reg.Seed(context.Background(), types.EntityUsage)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = reg.Seed(context.Background(), types.EntityRevenue)
	require.NoError(t, err)
	assert.Zero(t, n)
}
