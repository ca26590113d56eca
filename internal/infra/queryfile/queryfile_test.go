package queryfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_MarkDone(t *testing.T) {
	dir := t.TempDir()
	pending := filepath.Join(dir, "input.txt")
	historic := filepath.Join(dir, "historic.txt")
	require.NoError(t, os.WriteFile(pending, []byte("expert SEO indépendant\n\n  graphiste freelance  \nplombier Lyon\n"), 0o644))
	require.NoError(t, os.WriteFile(historic, []byte("ancienne requête\n"), 0o644))

	s := New(pending, historic)

	queries, err := s.Pending()
	require.NoError(t, err)
	assert.Equal(t, []string{"expert SEO indépendant", "graphiste freelance", "plombier Lyon"}, queries)

	require.NoError(t, s.MarkDone("expert SEO indépendant"))
	require.NoError(t, s.MarkDone("graphiste freelance"))

	queries, err = s.Pending()
	require.NoError(t, err)
	assert.Equal(t, []string{"plombier Lyon"}, queries)

	hist, err := s.Historic()
	require.NoError(t, err)
	assert.Equal(t, []string{"graphiste freelance", "expert SEO indépendant", "ancienne requête"}, hist)
}

func TestStore_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "none.txt"), filepath.Join(dir, "hist.txt"))

	queries, err := s.Pending()
	require.NoError(t, err)
	assert.Empty(t, queries)

	require.NoError(t, s.MarkDone("q"))
	hist, err := s.Historic()
	require.NoError(t, err)
	assert.Equal(t, []string{"q"}, hist)
}
