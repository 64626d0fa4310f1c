package state

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/sambigeara/lwwdict/pkg/crdt"
)

func TestMarshalUnmarshal(t *testing.T) {
	d := crdt.New[string, string]()
	d.AddAt("dog", "woof", 1)
	d.AddAt("cat", "", -7)
	d.AddAt("🐟", "blub", 1<<40)
	d.RemoveAt("dog", 2)

	in := d.Snapshot()
	out, err := Unmarshal(Marshal(in))
	require.NoError(t, err)
	require.Equal(t, in, out)

	restored := crdt.FromSnapshot(out)
	require.True(t, restored.Equivalent(d))
}

func TestUnmarshalEmpty(t *testing.T) {
	s, err := Unmarshal(nil)
	require.NoError(t, err)
	require.Empty(t, s.Adds)
	require.Empty(t, s.Removes)
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	b := Marshal(Snapshot{Adds: []crdt.Entry[string, string]{{Key: "k", Value: "v", Timestamp: 3}}})
	b = protowire.AppendTag(b, 15, protowire.VarintType)
	b = protowire.AppendVarint(b, 99)

	s, err := Unmarshal(b)
	require.NoError(t, err)
	require.Len(t, s.Adds, 1)
	require.Equal(t, "k", s.Adds[0].Key)
}

func TestUnmarshalTruncated(t *testing.T) {
	b := Marshal(Snapshot{Adds: []crdt.Entry[string, string]{{Key: "key", Value: "value", Timestamp: 3}}})

	_, err := Unmarshal(b[:len(b)-2])
	require.ErrorIs(t, err, ErrCorrupt)
}
