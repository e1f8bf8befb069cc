// Package modules defines the invocation contract satisfied by every
// loaded model implementation and the on-disk manifest describing how to
// instantiate one.
package modules

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"
)

// Module is the uniform invocation interface exposed by a loaded model.
// Inputs and outputs are structural payloads; their schema is owned by
// the individual model type.
type Module interface {
	// Run performs a single inference call.
	Run(ctx context.Context, input *structpb.Struct) (*structpb.Struct, error)
}

// BatchModule is implemented by modules whose inference supports grouped
// calls. The batcher dispatches accumulated requests through RunBatch;
// outputs must correspond positionally to inputs, one output per input.
type BatchModule interface {
	Module
	RunBatch(ctx context.Context, inputs []*structpb.Struct) ([]*structpb.Struct, error)
}

// Closer is optionally implemented by modules holding releasable
// resources. Release of a LoadedModel calls it when present.
type Closer interface {
	Close() error
}
