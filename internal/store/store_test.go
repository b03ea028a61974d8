package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name          string
		dsn           string
		expectedError bool
	}{
		{name: "in-memory store", dsn: ":memory:", expectedError: false},
		{name: "file store in nested directory", dsn: t.TempDir() + "/nested/cache.db", expectedError: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.dsn, false)
			if tt.expectedError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, s)
			defer s.Close()
		})
	}
}

func TestDigest(t *testing.T) {
	a := Digest([]byte("module main"))
	b := Digest([]byte("module main"))
	c := Digest([]byte("module other"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestIsCachedAndRecord(t *testing.T) {
	s, err := Open(":memory:", false)
	require.NoError(t, err)
	defer s.Close()

	source := []byte("x := 1")
	assert.False(t, s.IsCached("/mod/a.bc", source), "nothing recorded yet")

	require.NoError(t, s.Record("/mod/a.bc", source, false))
	assert.True(t, s.IsCached("/mod/a.bc", source))

	assert.False(t, s.IsCached("/mod/a.bc", []byte("x := 2")), "digest changed")

	require.NoError(t, s.Record("/mod/a.bc", source, true))
	assert.False(t, s.IsCached("/mod/a.bc", source), "a failed run is never a cache hit")
}

func TestDiff(t *testing.T) {
	s, err := Open(":memory:", false)
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Diff("/mod/a.bc", []byte("x := 1"))
	require.NoError(t, err)
	assert.False(t, ok, "no prior record to diff against")

	require.NoError(t, s.Record("/mod/a.bc", []byte("x := 1"), false))

	_, ok, err = s.Diff("/mod/a.bc", []byte("x := 1"))
	require.NoError(t, err)
	assert.False(t, ok, "identical source has nothing to diff")

	text, ok, err := s.Diff("/mod/a.bc", []byte("x := 2"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, text, "-x := 1")
	assert.Contains(t, text, "+x := 2")
}

func TestRecordTasks(t *testing.T) {
	s, err := Open(":memory:", false)
	require.NoError(t, err)
	defer s.Close()

	tasks := []Task{
		{Name: "evaluate_modules", Category: "evaluate", ElapsedMicros: 120},
		{Name: "emit_bytecode", Category: "emit", ElapsedMicros: 340},
	}
	require.NoError(t, s.RecordTasks("/mod/a.bc", tasks))

	var count int64
	require.NoError(t, s.db.Model(&TaskRecord{}).Where("run_path = ?", "/mod/a.bc").Count(&count).Error)
	assert.EqualValues(t, 2, count)
}
