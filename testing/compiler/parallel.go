package compiler

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Parallel compiles several programs at once into one temporary directory.
type Parallel struct {
	compiler    *Compiler
	parallelism int
	work        []Work
}

func NewParallel(parallelism int) *Parallel {
	return &Parallel{
		compiler:    New(),
		parallelism: parallelism,
	}
}

func (p *Parallel) Dir() string {
	return p.compiler.Dir()
}

func (p *Parallel) Cleanup() {
	p.compiler.Cleanup()
}

func (p *Parallel) Add(work Work) {
	p.work = append(p.work, work)
}

func (p *Parallel) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for _, w := range p.work {
		w := w
		g.Go(func() error {
			_, err := p.compiler.Compile(ctx, w)
			return err
		})
	}
	return g.Wait()
}
