package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishedLatestWins(t *testing.T) {
	var p Published

	assert.Zero(t, p.View().Tick)
	assert.Empty(t, p.Events(0))

	p.Publish(View{Tick: 3}, []Event{{Tick: 1}, {Tick: 2}, {Tick: 3}})
	p.Publish(View{Tick: 7}, []Event{{Tick: 1}, {Tick: 2}, {Tick: 3}, {Tick: 7}})

	assert.Equal(t, uint64(7), p.View().Tick)
	assert.Len(t, p.Events(0), 4)
}

func TestPublishedEventWindow(t *testing.T) {
	var p Published
	p.Publish(View{}, []Event{{Tick: 1}, {Tick: 2}, {Tick: 3}})

	newest := p.Events(2)
	assert.Len(t, newest, 2)
	assert.Equal(t, uint64(2), newest[0].Tick, "window holds the newest events, oldest first")
	assert.Equal(t, uint64(3), newest[1].Tick)

	all := p.Events(10)
	assert.Len(t, all, 3, "asking past the end returns everything")

	all[0].Tick = 99
	assert.Equal(t, uint64(1), p.Events(0)[0].Tick, "callers get copies")
}
