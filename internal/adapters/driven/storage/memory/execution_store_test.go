package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

func TestExecutionStore_ListAndPrune(t *testing.T) {
	store := NewExecutionStore()
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(ctx, domain.Execution{
			ID:        "hr-" + string(rune('a'+i)),
			Resource:  "hr",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.Save(ctx, domain.Execution{ID: "crm-a", Resource: "crm", StartedAt: base}))

	hr, err := store.List(ctx, "hr", 0)
	require.NoError(t, err)
	require.Len(t, hr, 3)
	assert.Equal(t, "hr-c", hr[0].ID)

	limited, err := store.List(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	require.NoError(t, store.Prune(ctx, 1))
	all, err := store.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "hr-c", all[0].ID)
	assert.Equal(t, "crm-a", all[1].ID)
}

func TestPropagationTaskStore_RecordList(t *testing.T) {
	store := NewPropagationTaskStore()
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, domain.PropagationTask{Resource: "ldap", Username: "a"}))
	require.NoError(t, store.Record(ctx, domain.PropagationTask{Resource: "crm", Username: "b"}))
	require.NoError(t, store.Record(ctx, domain.PropagationTask{Resource: "ldap", Username: "c"}))

	tasks, err := store.List(ctx, "ldap", 10)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "c", tasks[0].Username)
	assert.NotEmpty(t, tasks[0].ID)
	assert.False(t, tasks[0].CreatedAt.IsZero())
}

func TestNotificationSink_CreateTasks(t *testing.T) {
	sink := NewNotificationSink()
	rc := domain.SystemRunContext("run-1")

	err := sink.CreateTasks(context.Background(), rc, "k1", []string{"e1", "e2"})
	require.NoError(t, err)

	tasks := sink.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "run-1", tasks[0].RunID)
	assert.Equal(t, "e2", tasks[1].Event)
}
