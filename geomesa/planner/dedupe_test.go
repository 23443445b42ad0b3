package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/geomesa/geomesa-core/geomesa"
)

func TestDeduperAdmitsFirstOccurrenceOnly(t *testing.T) {
	d := NewDeduper(0)
	assert.True(t, d.Admit("a"))
	assert.False(t, d.Admit("a"))
	assert.True(t, d.Admit("b"))
}

func TestDeduperSpillsAfterBudgetExhausted(t *testing.T) {
	d := NewDeduper(2)
	assert.True(t, d.Admit("a"))
	assert.True(t, d.Admit("b"))
	assert.False(t, d.Spilt())

	// budget exhausted: the next id spills rather than being tracked.
	assert.True(t, d.Admit("c"))
	assert.True(t, d.Spilt())

	// once spilt, even a previously-seen id is let through rather than
	// being checked against the (now frozen) seen set.
	assert.True(t, d.Admit("a"))
}

func TestDeduperErrStrictVsLenient(t *testing.T) {
	d := NewDeduper(1)
	d.Admit("a")
	d.Admit("b") // spills

	assert.NoError(t, d.Err(false))
	assert.ErrorIs(t, d.Err(true), geomesa.ErrDedupeBudgetExceeded)
}

func TestDeduperNotSpiltNeverErrors(t *testing.T) {
	d := NewDeduper(10)
	d.Admit("a")
	assert.NoError(t, d.Err(true))
	assert.NoError(t, d.Err(false))
}
