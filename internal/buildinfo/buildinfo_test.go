package buildinfo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContextAccessors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ctx     *Context
		version string
		date    string
		commit  string
	}{
		{name: "nil context", ctx: nil, version: UnknownValue, date: UnknownValue, commit: UnknownValue},
		{name: "empty values", ctx: NewContext("", "", ""), version: UnknownValue, date: UnknownValue, commit: UnknownValue},
		{name: "populated", ctx: NewContext("1.2.0", "2025-05-01", "abc1234"), version: "1.2.0", date: "2025-05-01", commit: "abc1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.version, tt.ctx.GetVersion())
			assert.Equal(t, tt.date, tt.ctx.GetBuildDate())
			assert.Equal(t, tt.commit, tt.ctx.GetCommit())
		})
	}
}

func TestDerivedStrings(t *testing.T) {
	t.Parallel()

	c := NewContext("0.3.1", "2025-05-01", "abc1234")
	assert.Equal(t, "brixfix/0.3.1", c.UserAgent())
	assert.Equal(t, "brixfix@0.3.1", c.Release())
	assert.Contains(t, c.String(), "commit abc1234")
}

func TestUptime(t *testing.T) {
	t.Parallel()

	var nilCtx *Context
	assert.Zero(t, nilCtx.Uptime())

	c := &Context{StartTime: time.Now().Add(-time.Minute)}
	assert.GreaterOrEqual(t, c.Uptime(), time.Minute)
}
