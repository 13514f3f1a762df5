package memory

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasad-erp/hasad/pkg/audit"
	"github.com/hasad-erp/hasad/pkg/config"
	"github.com/hasad-erp/hasad/pkg/identity"
	"github.com/hasad-erp/hasad/pkg/model"
	"github.com/hasad-erp/hasad/pkg/server/store"
	"github.com/hasad-erp/hasad/pkg/server/store/memstore"
	"github.com/hasad-erp/hasad/pkg/tasks"
)

func TestMain(m *testing.M) {
	audit.SetEnabled(false)
	os.Exit(m.Run())
}

var (
	alice   = user("alice", model.RoleUser)
	bob     = user("bob", model.RoleUser)
	viewer1 = user("vera", model.RoleViewer)
	boss    = user("mona", model.RoleManager)
	root    = user("root", model.RoleAdmin)
)

type fixture struct {
	svc   *Service
	store *memstore.Store
	index *Index
	now   time.Time
}

func newFixture(t *testing.T, withIndex bool) *fixture {
	t.Helper()
	f := &fixture{
		store: memstore.New(),
		now:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	opts := Options{Config: config.Default(), Now: func() time.Time { return f.now }}
	if withIndex {
		x, err := NewIndex(bagOfWords)
		require.NoError(t, err)
		f.index = x
		opts.Index = x
	}
	svc, err := New(f.store, opts)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) create(t *testing.T, id *identity.Identity, in CreateInput) *model.Memory {
	t.Helper()
	m, err := f.svc.CreateMemory(context.Background(), id, in)
	require.NoError(t, err)
	return m
}

func ptr[T any](v T) *T { return &v }

func TestCreateMemory(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	m := f.create(t, alice, CreateInput{
		Title:    "Wheat irrigation",
		Content:  "Water **wheat** twice a week in March.",
		Tags:     []string{" Irrigation ", "wheat", "WHEAT"},
		Entities: []EntityRef{{Name: "Wheat", Type: model.EntityCrop}},
	})

	assert.Equal(t, "alice", m.OwnerID)
	assert.Equal(t, model.MemoryFact, m.MemoryType)
	assert.Equal(t, model.AccessInternal, m.AccessLevel)
	assert.Equal(t, 0.5, m.Importance)
	assert.Equal(t, 1.0, m.Confidence)
	assert.ElementsMatch(t, []string{"irrigation", "wheat"}, m.TagNames())
	require.Len(t, m.Entities, 1)
	assert.Equal(t, 1.0, m.Entities[0].Relevance)
	assert.Equal(t, 1, f.index.Len())

	t.Run("viewers cannot create", func(t *testing.T) {
		_, err := f.svc.CreateMemory(ctx, viewer1, CreateInput{Title: "x", Content: "y"})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("validation", func(t *testing.T) {
		bad := []CreateInput{
			{Content: "no title"},
			{Title: "no content"},
			{Title: "t", Content: "c", Importance: ptr(1.5)},
			{Title: "t", Content: "c", MemoryType: "rumour"},
			{Title: "t", Content: "c", AccessLevel: "secret"},
			{Title: "t", Content: "c", Entities: []EntityRef{{Name: "x", Type: "planet"}}},
		}
		for _, in := range bad {
			_, err := f.svc.CreateMemory(ctx, alice, in)
			assert.ErrorIs(t, err, ErrInvalidInput, "%+v", in)
		}
	})

	t.Run("entities are shared by name and type", func(t *testing.T) {
		m2 := f.create(t, bob, CreateInput{
			Title:    "Wheat rust",
			Content:  "Rust appears in humid weeks.",
			Entities: []EntityRef{{Name: "Wheat", Type: model.EntityCrop, Relevance: ptr(0.4)}},
		})
		assert.Equal(t, m.Entities[0].ID, m2.Entities[0].ID)
		assert.Equal(t, 0.4, m2.Entities[0].Relevance)
	})
}

func TestGetMemory(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	m := f.create(t, alice, CreateInput{Title: "Soil pH", Content: "Keep between 6 and 7.", AccessLevel: model.AccessPrivate})

	got, err := f.svc.GetMemory(ctx, alice, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.AccessCount)
	require.NotNil(t, got.LastAccessedAt)
	assert.Equal(t, f.now, *got.LastAccessedAt)

	_, err = f.svc.GetMemory(ctx, bob, m.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.GetMemory(ctx, alice, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	logs, err := f.svc.AccessLog(ctx, alice, m.ID, 10)
	require.NoError(t, err)
	granted := map[bool]int{}
	for _, l := range logs {
		if l.Action == model.ActionRead {
			granted[l.Granted]++
		}
	}
	assert.Equal(t, 1, granted[true])
	assert.Equal(t, 1, granted[false])

	_, err = f.svc.AccessLog(ctx, bob, m.ID, 10)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestExpiredMemories(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	m := f.create(t, alice, CreateInput{
		Title:       "Market price",
		Content:     "Tomatoes at 4 SAR/kg.",
		AccessLevel: model.AccessPublic,
		ExpiresAt:   ptr(f.now.Add(time.Hour)),
	})

	_, err := f.svc.GetMemory(ctx, bob, m.ID)
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Hour)
	_, err = f.svc.GetMemory(ctx, bob, m.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.GetMemory(ctx, alice, m.ID)
	assert.NoError(t, err)
}

func TestListMemoriesVisibility(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.create(t, alice, CreateInput{Title: "public", Content: "p", AccessLevel: model.AccessPublic, Importance: ptr(0.9)})
	f.create(t, alice, CreateInput{Title: "internal", Content: "i", AccessLevel: model.AccessInternal})
	f.create(t, alice, CreateInput{Title: "private", Content: "x", AccessLevel: model.AccessPrivate, Importance: ptr(0.4)})
	restricted := f.create(t, alice, CreateInput{Title: "restricted", Content: "r", AccessLevel: model.AccessRestricted, Importance: ptr(0.1)})

	titles := func(id *identity.Identity) []string {
		ms, err := f.svc.ListMemories(ctx, id, ListFilter{})
		require.NoError(t, err)
		out := []string{}
		for _, m := range ms {
			out = append(out, m.Title)
		}
		return out
	}

	assert.Equal(t, []string{"public"}, titles(nil))
	assert.Equal(t, []string{"public", "internal"}, titles(bob))
	assert.Equal(t, []string{"public", "internal"}, titles(viewer1))
	assert.Equal(t, []string{"public", "internal", "private", "restricted"}, titles(alice))
	assert.Equal(t, []string{"public", "internal", "private", "restricted"}, titles(root))

	_, err := f.svc.GrantAccess(ctx, alice, restricted.ID, "bob", model.PermissionRead)
	require.NoError(t, err)
	assert.Equal(t, []string{"public", "internal", "restricted"}, titles(bob))

	require.NoError(t, f.svc.RevokeAccess(ctx, alice, restricted.ID, "bob"))
	assert.Equal(t, []string{"public", "internal"}, titles(bob))
}

func TestUpdateMemory(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	m := f.create(t, alice, CreateInput{Title: "Date palms", Content: "Pollinate in spring.", Tags: []string{"palms"}})

	updated, err := f.svc.UpdateMemory(ctx, alice, m.ID, UpdateInput{
		Content:    ptr("Pollinate in late February."),
		Importance: ptr(0.8),
		Tags:       &[]string{"palms", "pollination"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Date palms", updated.Title)
	assert.Equal(t, "Pollinate in late February.", updated.Content)
	assert.Equal(t, 0.8, updated.Importance)
	assert.ElementsMatch(t, []string{"palms", "pollination"}, updated.TagNames())

	t.Run("managers update internal memories", func(t *testing.T) {
		_, err := f.svc.UpdateMemory(ctx, boss, m.ID, UpdateInput{Summary: ptr("spring work")})
		assert.NoError(t, err)
	})

	t.Run("managers cannot change the access level", func(t *testing.T) {
		_, err := f.svc.UpdateMemory(ctx, boss, m.ID, UpdateInput{AccessLevel: ptr(model.AccessPublic)})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("plain users cannot update", func(t *testing.T) {
		_, err := f.svc.UpdateMemory(ctx, bob, m.ID, UpdateInput{Title: ptr("mine now")})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("write grants allow updates", func(t *testing.T) {
		_, err := f.svc.GrantAccess(ctx, alice, m.ID, "bob", model.PermissionWrite)
		require.NoError(t, err)
		got, err := f.svc.UpdateMemory(ctx, bob, m.ID, UpdateInput{Title: ptr("Date palm care")})
		require.NoError(t, err)
		assert.Equal(t, "Date palm care", got.Title)
	})

	t.Run("empty title rejected", func(t *testing.T) {
		_, err := f.svc.UpdateMemory(ctx, alice, m.ID, UpdateInput{Title: ptr("")})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestDeleteAndArchive(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	m := f.create(t, alice, CreateInput{Title: "Olive harvest", Content: "November.", AccessLevel: model.AccessPublic})
	require.Equal(t, 1, f.index.Len())

	archived, err := f.svc.ArchiveMemory(ctx, alice, m.ID)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)

	list, err := f.svc.ListMemories(ctx, alice, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = f.svc.ListMemories(ctx, alice, ListFilter{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.UnarchiveMemory(ctx, alice, m.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteMemory(ctx, boss, m.ID), ErrForbidden)
	require.NoError(t, f.svc.DeleteMemory(ctx, alice, m.ID))
	assert.Equal(t, 0, f.index.Len())

	_, err = f.svc.GetMemory(ctx, alice, m.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTagsAndEntities(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	m := f.create(t, alice, CreateInput{Title: "Aphids", Content: "On citrus leaves."})

	tags, err := f.svc.AddTags(ctx, alice, m.ID, []string{"Pests", "citrus"})
	require.NoError(t, err)
	assert.Len(t, tags, 2)

	_, err = f.svc.AddTags(ctx, alice, m.ID, []string{"  "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, f.svc.RemoveTag(ctx, alice, m.ID, "PESTS"))
	counts, err := f.svc.ListTags(ctx)
	require.NoError(t, err)
	byName := map[string]int64{}
	for _, c := range counts {
		byName[c.Name] = c.Count
	}
	assert.Equal(t, int64(1), byName["citrus"])
	assert.Equal(t, int64(0), byName["pests"])

	linked, err := f.svc.LinkEntity(ctx, alice, m.ID, EntityRef{Name: "Aphid", Type: model.EntityPest})
	require.NoError(t, err)

	entities, err := f.svc.ListEntities(ctx, model.EntityPest, "aph", 10)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, linked.ID, entities[0].ID)

	_, err = f.svc.ListEntities(ctx, "planet", "", 10)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.LinkEntity(ctx, bob, m.ID, EntityRef{Name: "Lemon", Type: model.EntityCrop})
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.svc.UnlinkEntity(ctx, alice, m.ID, linked.ID))
	got, err := f.svc.GetMemory(ctx, alice, m.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Entities)

	e, err := f.svc.CreateEntity(ctx, bob, EntityInput{Name: "Riyadh", Type: model.EntityLocation})
	require.NoError(t, err)
	again, err := f.svc.CreateEntity(ctx, alice, EntityInput{Name: "Riyadh", Type: model.EntityLocation})
	require.NoError(t, err)
	assert.Equal(t, e.ID, again.ID)

	_, err = f.svc.CreateEntity(ctx, viewer1, EntityInput{Name: "Jeddah", Type: model.EntityLocation})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGrants(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	m := f.create(t, alice, CreateInput{Title: "Supplier terms", Content: "Net 30.", AccessLevel: model.AccessRestricted})

	_, err := f.svc.GrantAccess(ctx, alice, m.ID, "alice", model.PermissionRead)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.GrantAccess(ctx, alice, m.ID, "bob", "admin")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.GrantAccess(ctx, boss, m.ID, "bob", model.PermissionRead)
	assert.ErrorIs(t, err, ErrForbidden)

	g, err := f.svc.GrantAccess(ctx, alice, m.ID, "bob", model.PermissionRead)
	require.NoError(t, err)
	assert.Equal(t, "alice", g.GrantedBy)

	got, err := f.svc.GetMemory(ctx, bob, m.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Grants, "grants are only shown to the owner")

	got, err = f.svc.GetMemory(ctx, alice, m.ID)
	require.NoError(t, err)
	require.Len(t, got.Grants, 1)
	assert.Equal(t, "bob", got.Grants[0].UserID)
}

func TestSearchMemoriesSemantic(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	low := f.create(t, alice, CreateInput{Title: "Wheat irrigation", Content: "water wheat weekly", Importance: ptr(0.1)})
	high := f.create(t, bob, CreateInput{Title: "Wheat irrigation", Content: "water wheat weekly", Importance: ptr(0.9)})
	f.create(t, alice, CreateInput{Title: "Wheat irrigation", Content: "water wheat weekly", AccessLevel: model.AccessPrivate})
	f.create(t, alice, CreateInput{Title: "Camel feed", Content: "barley and hay"})
	archived := f.create(t, bob, CreateInput{Title: "Wheat irrigation", Content: "water wheat weekly"})
	_, err := f.svc.ArchiveMemory(ctx, bob, archived.ID)
	require.NoError(t, err)

	results, err := f.svc.SearchMemories(ctx, bob, "wheat irrigation", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, high.ID, results[0].Memory.ID)
	assert.Equal(t, low.ID, results[1].Memory.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
	for _, r := range results {
		assert.NotEqual(t, model.AccessPrivate, r.Memory.AccessLevel)
		assert.False(t, r.Memory.IsArchived)
	}

	_, err = f.svc.SearchMemories(ctx, bob, "  ", 3)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSearchMemoriesWidensPastUnreadableHits(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		f.create(t, alice, CreateInput{Title: "Wheat irrigation", Content: "water wheat weekly", AccessLevel: model.AccessPrivate})
	}
	shared := f.create(t, alice, CreateInput{Title: "Irrigation schedule", Content: "drip lines for the wheat fields"})

	results, err := f.svc.SearchMemories(ctx, bob, "wheat irrigation", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, shared.ID, results[0].Memory.ID)

	results, err = f.svc.SearchMemories(ctx, alice, "wheat irrigation", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.AccessPrivate, results[0].Memory.AccessLevel)
}

// heldQueue keeps submitted tasks so a test can run them in any order
type heldQueue struct {
	tasks []tasks.Task
}

func (q *heldQueue) Submit(t tasks.Task) error {
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *heldQueue) runReversed(t *testing.T) {
	t.Helper()
	for i := len(q.tasks) - 1; i >= 0; i-- {
		require.NoError(t, q.tasks[i].Run(context.Background()), q.tasks[i].Name)
	}
	q.tasks = nil
}

func TestIndexTasksOutOfOrder(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	x, err := NewIndex(bagOfWords)
	require.NoError(t, err)
	q := &heldQueue{}
	svc, err := New(memstore.New(), Options{Config: config.Default(), Index: x, Queue: q, Now: func() time.Time { return now }})
	require.NoError(t, err)

	gone, err := svc.CreateMemory(ctx, alice, CreateInput{Title: "Wheat irrigation", Content: "water wheat weekly"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteMemory(ctx, alice, gone.ID))
	q.runReversed(t)
	assert.Zero(t, x.Len())

	kept, err := svc.CreateMemory(ctx, alice, CreateInput{Title: "Wheat irrigation", Content: "water wheat weekly"})
	require.NoError(t, err)
	_, err = svc.UpdateMemory(ctx, alice, kept.ID, UpdateInput{Title: ptr("Olive harvest"), Content: ptr("pick olives in november")})
	require.NoError(t, err)
	q.runReversed(t)
	require.Equal(t, 1, x.Len())

	hits, err := x.Query(ctx, "olive harvest", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, kept.ID, hits[0].ID)
	assert.Greater(t, hits[0].Similarity, float32(0.3))
}

func TestSearchMemoriesTextFallback(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.create(t, alice, CreateInput{Title: "Greenhouse humidity", Content: "Keep under 80%.", Importance: ptr(0.3)})
	f.create(t, alice, CreateInput{Title: "Tomato blight", Content: "Reduce HUMIDITY at night.", Importance: ptr(0.7)})
	f.create(t, alice, CreateInput{Title: "Fertilizer", Content: "NPK 20-20-20."})

	results, err := f.svc.SearchMemories(ctx, bob, "humidity", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Tomato blight", results[0].Memory.Title)
	assert.Equal(t, 0.7, results[0].Score)
}

func TestRebuildIndex(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	n, err := f.svc.RebuildIndex(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	wheat := f.create(t, alice, CreateInput{Title: "Wheat irrigation", Content: "water wheat weekly", Tags: []string{"wheat"}})
	f.create(t, alice, CreateInput{Title: "Camel feed", Content: "barley and hay", AccessLevel: model.AccessPrivate})
	olives := f.create(t, bob, CreateInput{Title: "Olive harvest", Content: "pick in november"})
	_, err = f.svc.ArchiveMemory(ctx, bob, olives.ID)
	require.NoError(t, err)

	x, err := NewIndex(bagOfWords)
	require.NoError(t, err)
	cfg := config.Default()
	cfg.APIListLimitMax = 2
	svc, err := New(f.store, Options{Config: cfg, Index: x, Now: func() time.Time { return f.now }})
	require.NoError(t, err)

	n, err = svc.RebuildIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, x.Len())

	results, err := svc.SearchMemories(ctx, bob, "wheat irrigation", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, wheat.ID, results[0].Memory.ID)
}

func TestRelatedMemories(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	base := f.create(t, alice, CreateInput{Title: "Citrus aphids", Content: "c", Tags: []string{"citrus", "pests"}})
	both := f.create(t, alice, CreateInput{Title: "Citrus mites", Content: "c", Tags: []string{"citrus", "pests"}})
	one := f.create(t, alice, CreateInput{Title: "Citrus pruning", Content: "c", Tags: []string{"citrus"}})
	f.create(t, alice, CreateInput{Title: "Unrelated", Content: "c", Tags: []string{"camels"}})
	f.create(t, alice, CreateInput{Title: "Secret", Content: "c", Tags: []string{"citrus"}, AccessLevel: model.AccessPrivate})

	related, err := f.svc.RelatedMemories(ctx, bob, base.ID, 10)
	require.NoError(t, err)
	require.Len(t, related, 2)
	assert.Equal(t, both.ID, related[0].ID)
	assert.Equal(t, one.ID, related[1].ID)
}

func TestStatsAndRender(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	m := f.create(t, alice, CreateInput{Title: "Guide", Content: "# Planting\n\nDig *deep*.", MemoryType: model.MemoryProcedure})
	f.create(t, alice, CreateInput{Title: "Note", Content: "n", AccessLevel: model.AccessPrivate})

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.ByType[model.MemoryProcedure])
	assert.Equal(t, int64(1), stats.ByAccessLevel[model.AccessPrivate])

	html, err := f.svc.RenderMemoryHTML(ctx, bob, m.ID)
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Planting</h1>")
	assert.Contains(t, html, "<em>deep</em>")
}

func TestExportImport(t *testing.T) {
	for _, format := range []string{FormatJSONL, FormatCSV} {
		t.Run(format, func(t *testing.T) {
			src := newFixture(t, false)
			ctx := context.Background()
			src.create(t, alice, CreateInput{
				Title:      "Irrigation, drip",
				Content:    "Line one\nLine \"two\"",
				Importance: ptr(0.75),
				Tags:       []string{"water", "drip"},
				ExpiresAt:  ptr(src.now.Add(48 * time.Hour)),
			})
			src.create(t, alice, CreateInput{Title: "زراعة النخيل", Content: "التلقيح في الربيع", AccessLevel: model.AccessPublic})
			src.create(t, bob, CreateInput{Title: "Bob's private", Content: "x", AccessLevel: model.AccessPrivate})

			var buf bytes.Buffer
			n, err := src.svc.Export(ctx, alice, &buf, format, ListFilter{})
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			assert.NotContains(t, buf.String(), "Bob's private")

			dst := newFixture(t, false)
			res, err := dst.svc.Import(ctx, bob, &buf, format)
			require.NoError(t, err)
			assert.Equal(t, 2, res.Created)
			assert.Zero(t, res.Failed)

			list, err := dst.svc.ListMemories(ctx, bob, ListFilter{})
			require.NoError(t, err)
			require.Len(t, list, 2)
			drip := list[0]
			assert.Equal(t, "Irrigation, drip", drip.Title)
			assert.Equal(t, "Line one\nLine \"two\"", drip.Content)
			assert.Equal(t, "bob", drip.OwnerID)
			assert.ElementsMatch(t, []string{"water", "drip"}, drip.TagNames())
			require.NotNil(t, drip.ExpiresAt)
			assert.True(t, drip.ExpiresAt.Equal(src.now.Add(48*time.Hour)))
			assert.Equal(t, "زراعة النخيل", list[1].Title)
		})
	}
}

func TestImportReportsBadRecords(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	input := strings.Join([]string{
		`{"title":"ok","content":"fine"}`,
		`not json`,
		`{"title":"","content":"missing title"}`,
		``,
		`{"title":"also ok","content":"fine","importance":0.2}`,
	}, "\n")

	res, err := f.svc.Import(ctx, alice, strings.NewReader(input), FormatJSONL)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 2, res.Failed)
	assert.Contains(t, res.Errors, 2)
	assert.Contains(t, res.Errors, 3)

	csvInput := "title,content,importance\nok,fine,0.4\nbad,fine,lots\n"
	res, err = f.svc.Import(ctx, alice, strings.NewReader(csvInput), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Failed)

	_, err = f.svc.Import(ctx, alice, strings.NewReader("content\nx\n"), FormatCSV)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Import(ctx, viewer1, strings.NewReader(input), FormatJSONL)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Import(ctx, alice, strings.NewReader(input), "xml")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSchema(t *testing.T) {
	b, err := Schema()
	require.NoError(t, err)
	s := string(b)
	assert.Contains(t, s, `"title"`)
	assert.Contains(t, s, `"required"`)
	assert.Contains(t, s, `"insight"`)
	assert.Contains(t, s, `"maximum": 1`)
}
