package sim

import (
	"sync"

	"github.com/san-kum/physloop/internal/dynamo"
)

// bodyListPool recycles the live-body snapshots taken for post-step work.
type bodyListPool struct {
	pool sync.Pool
}

func newBodyListPool() *bodyListPool {
	return &bodyListPool{
		pool: sync.Pool{
			New: func() interface{} {
				list := make([]*dynamo.Body, 0, 64)
				return &list
			},
		},
	}
}

func (p *bodyListPool) Get() *[]*dynamo.Body {
	return p.pool.Get().(*[]*dynamo.Body)
}

func (p *bodyListPool) Put(list *[]*dynamo.Body) {
	clear(*list)
	*list = (*list)[:0]
	p.pool.Put(list)
}
