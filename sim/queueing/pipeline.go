package queueing

import (
	"log"

	"github.com/sarchlab/simmem/sim/hooking"
)

// HookPosPipelineExit marks when a batch leaves the last pipeline stage.
var HookPosPipelineExit = &hooking.HookPos{Name: "Pipeline Exit"}

// A Pipeline is a chain of registers. Everything accepted during a cycle
// travels as one batch and leaves the pipeline after NumStage ticks. Stages
// never stall.
type Pipeline[T any] struct {
	*hooking.HookableBase

	name   string
	stages [][]T
	input  []T
}

// MakePipelineBuilder creates a default builder.
func MakePipelineBuilder[T any]() PipelineBuilder[T] {
	return PipelineBuilder[T]{
		numStage: 2,
	}
}

// A PipelineBuilder can build pipelines.
type PipelineBuilder[T any] struct {
	numStage int
}

// WithNumStage sets the number of pipeline stages.
func (b PipelineBuilder[T]) WithNumStage(n int) PipelineBuilder[T] {
	b.numStage = n
	return b
}

// Build builds a pipeline.
func (b PipelineBuilder[T]) Build(name string) *Pipeline[T] {
	if b.numStage < 0 {
		log.Panicf("pipeline %s: negative number of stages", name)
	}

	return &Pipeline[T]{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		stages:       make([][]T, b.numStage),
	}
}

// Name returns the name of the pipeline.
func (p *Pipeline[T]) Name() string {
	return p.name
}

// NumStage returns the number of registers in the chain.
func (p *Pipeline[T]) NumStage() int {
	return len(p.stages)
}

// Accept adds an element to the batch entering the pipeline at the next tick.
func (p *Pipeline[T]) Accept(elem T) {
	p.input = append(p.input, elem)
}

// Tick shifts every stage by one. The returned batch is what left the last
// stage. With zero stages, the accepted batch leaves directly.
func (p *Pipeline[T]) Tick() (out []T) {
	in := p.input
	p.input = nil

	if len(p.stages) == 0 {
		out = in
	} else {
		last := len(p.stages) - 1
		out = p.stages[last]

		for i := last; i > 0; i-- {
			p.stages[i] = p.stages[i-1]
		}

		p.stages[0] = in
	}

	if len(out) > 0 && p.NumHooks() > 0 {
		p.InvokeHook(hooking.HookCtx{
			Domain: p,
			Pos:    HookPosPipelineExit,
			Item:   out,
		})
	}

	return out
}

// NumInFlight returns the number of elements accepted but not yet delivered.
func (p *Pipeline[T]) NumInFlight() int {
	n := len(p.input)
	for _, s := range p.stages {
		n += len(s)
	}

	return n
}

// Clear discards all the items in the pipeline.
func (p *Pipeline[T]) Clear() {
	for i := range p.stages {
		p.stages[i] = nil
	}

	p.input = nil
}
