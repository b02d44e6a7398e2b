package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGift(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestLoadGifts(t *testing.T) {
	dir := t.TempDir()
	writeGift(t, dir, "10_lantern.yaml", `
id: lantern
name: Paper Lantern
cost:
  wood: 2
  stone: 1
`)
	writeGift(t, dir, "20_koi.yaml", `
id: koi
name: Koi Pond
`)

	gifts, err := LoadGifts(dir)
	require.NoError(t, err)
	require.Len(t, gifts, 2)

	assert.Equal(t, "lantern", gifts[0].ID)
	assert.Equal(t, "Paper Lantern", gifts[0].Name)
	assert.Equal(t, map[string]int{"wood": 2, "stone": 1}, gifts[0].Cost)

	assert.Equal(t, "koi", gifts[1].ID)
	assert.Nil(t, gifts[1].Cost)
}

func TestLoadGiftsNameOrder(t *testing.T) {
	dir := t.TempDir()
	writeGift(t, dir, "b.yaml", "id: second\nname: Second\n")
	writeGift(t, dir, "a.yaml", "id: first\nname: First\n")

	gifts, err := LoadGifts(dir)
	require.NoError(t, err)
	require.Len(t, gifts, 2)
	assert.Equal(t, "first", gifts[0].ID)
	assert.Equal(t, "second", gifts[1].ID)
}

func TestLoadGiftsEmptyDir(t *testing.T) {
	gifts, err := LoadGifts(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, gifts)
}

func TestLoadGiftsSkipsNonYAML(t *testing.T) {
	dir := t.TempDir()
	writeGift(t, dir, "readme.txt", "not yaml")
	writeGift(t, dir, "gift.yaml", "id: g\nname: G\n")

	gifts, err := LoadGifts(dir)
	require.NoError(t, err)
	assert.Len(t, gifts, 1)
}

func TestLoadGiftsMissingDir(t *testing.T) {
	_, err := LoadGifts(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestLoadGiftsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeGift(t, dir, "bad.yaml", "id: [unclosed\n")
	_, err := LoadGifts(dir)
	assert.Error(t, err)
}

func TestLoadGiftsMissingID(t *testing.T) {
	dir := t.TempDir()
	writeGift(t, dir, "noid.yaml", "name: Nameless\n")
	_, err := LoadGifts(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing id")
}

func TestLoadGiftsMissingName(t *testing.T) {
	dir := t.TempDir()
	writeGift(t, dir, "noname.yaml", "id: anon\n")
	_, err := LoadGifts(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing name")
}
