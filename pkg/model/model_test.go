package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"  Date Palm ", "date-palm", "", "قمح", "IRRIGATION", "irrigation"})
	assert.Equal(t, []string{"date-palm", "قمح", "irrigation"}, got)
}

func TestRoleAtLeast(t *testing.T) {
	assert.True(t, RoleAdmin.AtLeast(RoleManager))
	assert.True(t, RoleManager.AtLeast(RoleManager))
	assert.False(t, RoleUser.AtLeast(RoleManager))
	assert.False(t, Role("owner").Valid())
}

func TestTaxonRankBelow(t *testing.T) {
	assert.True(t, RankSpecies.Below(RankGenus))
	assert.False(t, RankGenus.Below(RankSpecies))
	assert.False(t, RankGenus.Below(RankGenus))
}

func TestUserIsLocked(t *testing.T) {
	now := time.Now()
	u := &User{}
	assert.False(t, u.IsLocked(now))

	later := now.Add(time.Minute)
	u.LockedUntil = &later
	assert.True(t, u.IsLocked(now))
	assert.False(t, u.IsLocked(later))
}

func TestStringListScanValue(t *testing.T) {
	l := StringList{"a", "b"}
	v, err := l.Value()
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, v)

	var back StringList
	require.NoError(t, back.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, l, back)

	require.NoError(t, back.Scan(nil))
	assert.Nil(t, back)

	assert.Error(t, back.Scan(42))
}

func TestDebtOutstanding(t *testing.T) {
	d := &DebtRecord{Principal: 10000, Paid: 2500, Status: DebtPartiallyPaid}
	assert.Equal(t, int64(7500), d.Outstanding())
	assert.False(t, d.Closed())
	d.Status = DebtWrittenOff
	assert.True(t, d.Closed())
}
