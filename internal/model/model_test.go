package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFromJSON(t *testing.T) {
	raw := []byte(`{"id":"p1","updated_at":"2026-03-01T10:00:00+02:00","nome":"Filtro"}`)
	rec, err := RecordFromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, "p1", rec.ID)
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), rec.UpdatedAt)

	raw[2] = 'X'
	assert.Contains(t, string(rec.Data), `"id":"p1"`, "data is a copy")

	_, err = RecordFromJSON([]byte(`{"nome":"sem id"}`))
	assert.ErrorIs(t, err, ErrInvalidRecord)
	_, err = RecordFromJSON([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestRecord_MarshalsAsBareDocument(t *testing.T) {
	p := &Peca{Codigo: "FO-1", Nome: "Filtro", PrecoVenda: decimal.NewFromInt(350)}
	p.Touch(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	rec, err := NewRecord(p)
	require.NoError(t, err)
	assert.Equal(t, p.ID, rec.ID)

	out, err := json.Marshal([]Record{rec})
	require.NoError(t, err)
	var back []Record
	require.NoError(t, json.Unmarshal(out, &back))
	require.Len(t, back, 1)
	assert.Equal(t, rec.ID, back[0].ID)
	assert.True(t, rec.UpdatedAt.Equal(back[0].UpdatedAt))

	var decoded Peca
	require.NoError(t, back[0].Decode(&decoded))
	assert.Equal(t, "FO-1", decoded.Codigo)
	assert.True(t, decoded.PrecoVenda.Equal(p.PrecoVenda))
}

func TestRecord_NewerThan(t *testing.T) {
	t0 := time.Now()
	a := Record{ID: "x", UpdatedAt: t0}
	b := Record{ID: "x", UpdatedAt: t0.Add(time.Second)}
	assert.True(t, b.NewerThan(a))
	assert.False(t, a.NewerThan(b))
	assert.False(t, a.NewerThan(a))
}

func TestBase_Touch(t *testing.T) {
	var b Base
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.Touch(t1)
	require.NotEmpty(t, b.ID)
	id := b.ID

	t2 := t1.Add(time.Hour)
	b.Touch(t2)
	assert.Equal(t, id, b.ID)
	assert.Equal(t, t1, b.CreatedAt)
	assert.Equal(t, t2, b.UpdatedAt)
}

func TestBase_TouchKeepsMicroseconds(t *testing.T) {
	var b Base
	b.Touch(time.Date(2026, 3, 1, 8, 0, 0, 123456789, time.FixedZone("CAT", 2*3600)))
	assert.Equal(t, time.Date(2026, 3, 1, 6, 0, 0, 123456000, time.UTC), b.UpdatedAt)
	assert.Equal(t, b.UpdatedAt, b.CreatedAt)
}

func TestPeca_AbaixoDoMinimo(t *testing.T) {
	assert.True(t, (&Peca{EstoqueAtual: 1, EstoqueMinimo: 2}).AbaixoDoMinimo())
	assert.False(t, (&Peca{EstoqueAtual: 2, EstoqueMinimo: 2}).AbaixoDoMinimo())
}

func TestStringList_ValueScan(t *testing.T) {
	v, err := StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	v, err = StringList{"FO-1", "PA-2"}.Value()
	require.NoError(t, err)

	var l StringList
	require.NoError(t, l.Scan(v))
	assert.Equal(t, StringList{"FO-1", "PA-2"}, l)
	require.NoError(t, l.Scan([]byte(`["X"]`)))
	assert.Equal(t, StringList{"X"}, l)
	require.NoError(t, l.Scan(nil))
	assert.Nil(t, l)
	assert.Error(t, l.Scan(42))
}

func TestIsSyncCollection(t *testing.T) {
	for _, c := range SyncCollections {
		assert.True(t, IsSyncCollection(c))
	}
	assert.False(t, IsSyncCollection("_mutation_queue"))
	assert.False(t, IsSyncCollection("usuarios"))
}
