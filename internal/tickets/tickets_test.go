package tickets

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketUnmarshalLenientNumbers(t *testing.T) {
	var tk Ticket
	err := json.Unmarshal([]byte(`{
		"id": "12",
		"technician_id": 7,
		"workflow": "new",
		"group_title": "sales",
		"unseen_count": "-3",
		"action_needed": true,
		"last_message": "hi"
	}`), &tk)
	require.NoError(t, err)
	assert.Equal(t, 12, tk.ID)
	assert.Equal(t, 7, tk.TechnicianID)
	assert.Equal(t, 0, tk.UnseenCount, "unseen_count is clamped at zero")
	assert.True(t, tk.ActionNeeded)
	assert.Equal(t, "hi", tk.LastMessage)
	assert.Equal(t, "sales", tk.GroupTitle)
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{"2024-05-01T10:00:00Z", "2024-05-01 10:00:00", "2024-05-01"} {
		_, ok := ParseTime(s)
		assert.True(t, ok, s)
	}
	_, ok := ParseTime("yesterday")
	assert.False(t, ok)
	_, ok = ParseTime("")
	assert.False(t, ok)
}

func TestProjectionUpsertReplacesInPlace(t *testing.T) {
	p := NewProjection()
	p.Upsert(Ticket{ID: 1, Workflow: "new"})
	p.Upsert(Ticket{ID: 2})
	p.Upsert(Ticket{ID: 3})

	prev, existed := p.Upsert(Ticket{ID: 2, Workflow: "won"})
	assert.True(t, existed)
	assert.Equal(t, 2, prev.ID)
	assert.Equal(t, []int{1, 2, 3}, p.IDs(), "position is kept")

	got, ok := p.Get(2)
	require.True(t, ok)
	assert.Equal(t, "won", got.Workflow)
}

func TestProjectionRemove(t *testing.T) {
	p := NewProjection()
	p.Append([]Ticket{{ID: 1}, {ID: 2, UnseenCount: 4}, {ID: 3}})

	removed, ok := p.Remove(2)
	assert.True(t, ok)
	assert.Equal(t, 4, removed.UnseenCount)
	_, ok = p.Remove(2)
	assert.False(t, ok)

	assert.Equal(t, []int{1, 3}, p.IDs())
	got, ok := p.Get(3)
	require.True(t, ok)
	assert.Equal(t, 3, got.ID)
	require.NoError(t, p.checkConsistency())
}

func TestProjectionAppendDedupesAcrossPages(t *testing.T) {
	p := NewProjection()
	assert.Equal(t, 2, p.Append([]Ticket{{ID: 1}, {ID: 2}}))
	assert.Equal(t, 1, p.Append([]Ticket{{ID: 2, Workflow: "x"}, {ID: 3}}))
	assert.Equal(t, 3, p.Len())
}

func TestProjectionUnseenHelpers(t *testing.T) {
	p := NewProjection()
	p.Upsert(Ticket{ID: 1, UnseenCount: 2})

	n, ok := p.AddUnseen(1, 3)
	require.True(t, ok)
	assert.Equal(t, 5, n)

	n, _ = p.AddUnseen(1, -10)
	assert.Equal(t, 0, n)

	prior, ok := p.SetUnseen(1, 4)
	require.True(t, ok)
	assert.Equal(t, 0, prior)
	assert.Equal(t, 4, p.TotalUnseen())

	_, ok = p.SetUnseen(99, 1)
	assert.False(t, ok)
	_, ok = p.AddUnseen(99, 1)
	assert.False(t, ok)
}

func TestProjectionUpdateKeepsID(t *testing.T) {
	p := NewProjection()
	p.Upsert(Ticket{ID: 1})
	got, ok := p.Update(1, func(t *Ticket) {
		t.ID = 50
		t.UnseenCount = -1
		t.ActionNeeded = true
	})
	require.True(t, ok)
	assert.Equal(t, 1, got.ID)
	assert.Equal(t, 0, got.UnseenCount)
	assert.True(t, p.Has(1))
	assert.False(t, p.Has(50))
}

func TestProjectionListIsACopy(t *testing.T) {
	p := NewProjection()
	p.Upsert(Ticket{ID: 1, Workflow: "a"})
	list := p.List()
	list[0].Workflow = "mutated"
	got, _ := p.Get(1)
	assert.Equal(t, "a", got.Workflow)
}

func TestProjectionIndexNeverDiverges(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p := NewProjection()
	for i := 0; i < 2000; i++ {
		id := rng.Intn(40)
		switch rng.Intn(4) {
		case 0, 1:
			p.Upsert(Ticket{ID: id, UnseenCount: rng.Intn(5)})
		case 2:
			p.Remove(id)
		case 3:
			p.Append([]Ticket{{ID: id}, {ID: rng.Intn(40)}})
		}
		require.NoError(t, p.checkConsistency(), "step %d", i)
	}
	p.Reset()
	require.NoError(t, p.checkConsistency())
	assert.Equal(t, 0, p.Len())
}

func TestFilterMatch(t *testing.T) {
	yes := true
	tests := []struct {
		name   string
		filter Filter
		ticket Ticket
		want   bool
	}{
		{name: "zero filter matches", filter: Filter{}, ticket: Ticket{ID: 1}, want: true},
		{name: "workflow case-insensitive", filter: Filter{Workflows: []string{"New"}}, ticket: Ticket{Workflow: "new"}, want: true},
		{name: "workflow miss", filter: Filter{Workflows: []string{"won"}}, ticket: Ticket{Workflow: "new"}, want: false},
		{name: "technician", filter: Filter{TechnicianIDs: []int{3, 4}}, ticket: Ticket{TechnicianID: 4}, want: true},
		{name: "group miss", filter: Filter{Groups: []string{"sales"}}, ticket: Ticket{GroupTitle: "support"}, want: false},
		{name: "action needed", filter: Filter{ActionNeeded: &yes}, ticket: Ticket{ActionNeeded: false}, want: false},
		{
			name:   "created range inclusive end",
			filter: Filter{CreatedFrom: day("2024-05-01"), CreatedTo: day("2024-05-02")},
			ticket: Ticket{CreationDate: "2024-05-02 23:00:00"},
			want:   true,
		},
		{
			name:   "created range before",
			filter: Filter{CreatedFrom: day("2024-05-01")},
			ticket: Ticket{CreationDate: "2024-04-30 23:00:00"},
			want:   false,
		},
		{
			name:   "unparseable date fails set range",
			filter: Filter{SentTo: day("2024-05-01")},
			ticket: Ticket{TimeSent: "soon"},
			want:   false,
		},
		{name: "jq expression", filter: Filter{Expr: `.unseen_count >= 2`}, ticket: Ticket{UnseenCount: 3}, want: true},
		{name: "jq expression miss", filter: Filter{Expr: `.unseen_count >= 2`}, ticket: Ticket{UnseenCount: 1}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := tt.filter.Compile()
			require.NoError(t, err)
			assert.Equal(t, tt.want, pred.Match(tt.ticket))
		})
	}
}

func TestFilterCompileErrors(t *testing.T) {
	_, err := Filter{Expr: "[[["}.Compile()
	assert.Error(t, err)
	_, err = Filter{CreatedFrom: day("2024-05-02"), CreatedTo: day("2024-05-01")}.Compile()
	assert.Error(t, err)
}

func TestFilterAttributes(t *testing.T) {
	no := false
	f := Filter{
		Workflows:    []string{"new"},
		Groups:       []string{"sales"},
		ActionNeeded: &no,
		CreatedFrom:  day("2024-05-01"),
		Expr:         ".id > 1",
	}
	attrs := f.Attributes()
	assert.Equal(t, []string{"new"}, attrs["workflow"])
	assert.Equal(t, []string{"sales"}, attrs["group_title"])
	assert.Equal(t, false, attrs["action_needed"])
	assert.Equal(t, map[string]string{"from": "2024-05-01"}, attrs["creation_date"])
	assert.NotContains(t, attrs, "technician_id")
	assert.False(t, f.IsZero())
	assert.True(t, Filter{}.IsZero())
}

func TestScope(t *testing.T) {
	s := Scope{Groups: []string{"sales"}, Workflows: []string{"new", "won"}, OnlyOwn: true, ViewerID: 5}

	assert.True(t, s.Allows(Ticket{GroupTitle: "Sales", Workflow: "new", TechnicianID: 5}))
	assert.False(t, s.Allows(Ticket{GroupTitle: "support", Workflow: "new", TechnicianID: 5}))
	assert.False(t, s.Allows(Ticket{GroupTitle: "sales", Workflow: "lost", TechnicianID: 5}))
	assert.False(t, s.Allows(Ticket{GroupTitle: "sales", Workflow: "new", TechnicianID: 6}))

	assert.True(t, s.AllowsEvent("", ""))
	assert.True(t, s.AllowsEvent("sales", ""))
	assert.False(t, s.AllowsEvent("support", "new"))
	assert.False(t, s.AllowsEvent("", "lost"))

	assert.True(t, Scope{}.Allows(Ticket{GroupTitle: "anything"}))
}

func TestFilteredView(t *testing.T) {
	v := NewFilteredView()
	assert.False(t, v.Active())
	assert.False(t, v.Matches(Ticket{ID: 1}))

	pred, err := Filter{Workflows: []string{"new"}}.Compile()
	require.NoError(t, err)
	v.Upsert(Ticket{ID: 99})
	v.Activate(pred)
	assert.True(t, v.Active())
	assert.Equal(t, 0, v.Len(), "activate clears stale entries")

	inserted, evicted := v.Reconcile(Ticket{ID: 1, Workflow: "new"})
	assert.True(t, inserted)
	assert.False(t, evicted)

	inserted, evicted = v.Reconcile(Ticket{ID: 1, Workflow: "new", UnseenCount: 2})
	assert.False(t, inserted)
	assert.False(t, evicted)

	inserted, evicted = v.Reconcile(Ticket{ID: 1, Workflow: "won"})
	assert.False(t, inserted)
	assert.True(t, evicted)
	assert.Equal(t, 0, v.Len())

	f, ok := v.Filter()
	require.True(t, ok)
	assert.Equal(t, []string{"new"}, f.Workflows)

	v.Deactivate()
	assert.False(t, v.Active())
	_, ok = v.Filter()
	assert.False(t, ok)
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}
