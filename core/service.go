package core

import "context"

// IService is implemented by provider clients that hold connections or SDK
// clients that must be prepared before use and released afterwards.
type IService interface {
	Init(ctx context.Context) error
	Cleanup() error
}
