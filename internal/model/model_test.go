package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleXML = `<model>
  <function name="Frobnicate">
    <param type="3"/>
    <param type="i"/>
  </function>
  <usertype id="2" type="struct">
    <param type="c"/>
    <param type="i"/>
  </usertype>
  <usertype id="3" type="struct">
    <param type="P3"/>
    <param type="2"/>
  </usertype>
</model>
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "model.xml")
	require.NoError(t, os.WriteFile(path, []byte(sampleXML), 0o644))
	return path
}

func TestLoadParsesFunctionsAndUserTypes(t *testing.T) {
	path := writeSample(t)
	m, err := Load(path)
	require.NoError(t, err)

	require.Len(t, m.Functions, 1)
	fn, ok := m.FunctionByName("Frobnicate")
	require.True(t, ok)
	require.Equal(t, []string{"3", "i"}, fn.Params)

	require.Len(t, m.UserTypes, 2)
	require.Equal(t, UserType{ID: 2, Kind: "struct", Fields: []string{"c", "i"}}, m.UserTypes[2])
	require.Equal(t, UserType{ID: 3, Kind: "struct", Fields: []string{"P3", "2"}}, m.UserTypes[3])
}

func TestLoadRejectsDuplicateUserTypeID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.xml")
	dup := `<model><usertype id="1" type="struct"><param type="c"/></usertype><usertype id="1" type="union"><param type="i"/></usertype></model>`
	require.NoError(t, os.WriteFile(path, []byte(dup), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestFunctionByNameMiss(t *testing.T) {
	path := writeSample(t)
	m, err := Load(path)
	require.NoError(t, err)

	_, ok := m.FunctionByName("DoesNotExist")
	require.False(t, ok)
}
