package dataset

import (
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentic-research/depot/internal/checksum"
	"github.com/agentic-research/depot/internal/jsonval"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	r := newTestRegistry(t)
	creator := "alice"
	ds, err := r.Create(anythingProfile(), &creator)
	require.NoError(t, err)

	assert.Equal(t, checksum.SHA256, ds.ChecksumAlg)
	assert.True(t, ds.Expires.After(ds.Created))
	require.NotNil(t, ds.Creator)
	assert.Equal(t, "alice", *ds.Creator)

	got, err := r.Get(ds.ID)
	require.NoError(t, err)
	assert.Same(t, ds, got)

	_, err = r.Get(uuid.New())
	assert.True(t, ErrNotFound.Has(err))

	// Creation already persisted the dataset.
	_, err = r.fs.Stat(persistPath(ds.ID))
	assert.NoError(t, err)
}

func TestRegistry_CreateClonesProfile(t *testing.T) {
	r := newTestRegistry(t)
	p := anythingProfile()
	ds, err := r.Create(p, nil)
	require.NoError(t, err)

	p.Title = "mutated"
	assert.Equal(t, "anything", ds.Profile.Title)
}

func TestRegistry_List(t *testing.T) {
	r := newTestRegistry(t)
	alice, bob := "alice", "bob"
	dsA, err := r.Create(anythingProfile(), &alice)
	require.NoError(t, err)
	dsB, err := r.Create(anythingProfile(), &bob)
	require.NoError(t, err)
	dsAnon, err := r.Create(anythingProfile(), nil)
	require.NoError(t, err)

	assert.Len(t, r.List(nil), 3)
	assert.Contains(t, r.List(nil), dsAnon.ID)
	assert.Equal(t, []uuid.UUID{dsA.ID}, r.List(&alice))
	assert.Equal(t, []uuid.UUID{dsB.ID}, r.List(&bob))

	nobody := "nobody"
	assert.Empty(t, r.List(&nobody))
}

func TestRegistry_LoadRoundTrip(t *testing.T) {
	fs := memfs.New()
	r1 := NewRegistry(zap.NewNop(), fs, checksum.SHA256, time.Hour)
	require.NoError(t, r1.Load())

	ds, err := r1.Create(numbersProfile(t), nil)
	require.NoError(t, err)
	stage(t, ds, "table.csv", "a,b\n")
	require.True(t, ds.ComputeChecksum("table.csv"))
	require.True(t, ds.SetMetadata(strptr("table.csv"), mustParse(t, `{"validNumber": 7}`)))
	require.True(t, ds.SetMetadata(nil, mustParse(t, `{"note": "wip"}`)))

	r2 := NewRegistry(zap.NewNop(), fs, checksum.SHA256, time.Hour)
	require.NoError(t, r2.Load())

	back, err := r2.Get(ds.ID)
	require.NoError(t, err)
	assert.Equal(t, ds.ID, back.ID)
	assert.Equal(t, checksum.SHA256, back.ChecksumAlg)
	assert.Equal(t, "numbers", back.Profile.Title)
	require.Contains(t, back.Files, "table.csv")
	require.NotNil(t, back.Files["table.csv"].Checksum)
	assert.Equal(t, *ds.Files["table.csv"].Checksum, *back.Files["table.csv"].Checksum)
	assert.True(t, jsonval.Equal(ds.RootMeta, back.RootMeta))
	assert.True(t, jsonval.Equal(ds.Files["table.csv"].Metadata, back.Files["table.csv"].Metadata))

	// The reloaded dataset still validates: profile schemas and pattern
	// rules survived serialization.
	assert.Empty(t, back.Validate())
}

func TestRegistry_LoadAdoptsUntrackedFiles(t *testing.T) {
	fs := memfs.New()
	r1 := NewRegistry(zap.NewNop(), fs, checksum.SHA256, time.Hour)
	require.NoError(t, r1.Load())
	ds, err := r1.Create(anythingProfile(), nil)
	require.NoError(t, err)

	// A file that arrived without bookkeeping (crash between upload and
	// registration).
	require.NoError(t, util.WriteFile(fs, ds.filePath("stray.bin"), []byte("x"), 0o644))

	r2 := NewRegistry(zap.NewNop(), fs, checksum.SHA256, time.Hour)
	require.NoError(t, r2.Load())
	back, err := r2.Get(ds.ID)
	require.NoError(t, err)
	require.Contains(t, back.Files, "stray.bin")
	assert.Nil(t, back.Files["stray.bin"].Checksum)
}

func TestRegistry_LoadMissingTrackedFileFails(t *testing.T) {
	fs := memfs.New()
	r1 := NewRegistry(zap.NewNop(), fs, checksum.SHA256, time.Hour)
	require.NoError(t, r1.Load())
	ds, err := r1.Create(anythingProfile(), nil)
	require.NoError(t, err)
	stage(t, ds, "precious.txt", "x")

	require.NoError(t, fs.Remove(ds.filePath("precious.txt")))

	r2 := NewRegistry(zap.NewNop(), fs, checksum.SHA256, time.Hour)
	err = r2.Load()
	require.Error(t, err, "a tracked file vanishing means data loss")
	assert.Contains(t, err.Error(), "precious.txt")
}

func TestRegistry_LoadIgnoresStrayFiles(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, StagingDirName+"/notes.dataset.json", []byte("{}"), 0o644))
	require.NoError(t, util.WriteFile(fs, StagingDirName+"/random.txt", []byte("x"), 0o644))

	r := NewRegistry(zap.NewNop(), fs, checksum.SHA256, time.Hour)
	require.NoError(t, r.Load())
	assert.Empty(t, r.List(nil))
}

func TestRegistry_Expiry(t *testing.T) {
	r := NewRegistry(zap.NewNop(), memfs.New(), checksum.SHA256, -time.Minute)
	require.NoError(t, r.Load())

	ds, err := r.Create(anythingProfile(), nil)
	require.NoError(t, err)

	// Already past its expiry: invisible to lookups even before cleanup.
	_, err = r.Get(ds.ID)
	assert.True(t, ErrNotFound.Has(err))
	assert.Empty(t, r.List(nil))

	r.Cleanup()
	_, err = r.fs.Stat(persistPath(ds.ID))
	assert.Error(t, err, "cleanup reclaims the persistence file")
	assert.Empty(t, r.datasets)
}

func TestRegistry_CleanupKeepsLiveDatasets(t *testing.T) {
	r := newTestRegistry(t)
	ds, err := r.Create(anythingProfile(), nil)
	require.NoError(t, err)

	r.Cleanup()
	_, err = r.Get(ds.ID)
	assert.NoError(t, err)
}
