package types

type LifecycleManager interface {
	Start() error
	Stop() error
	IsRunning() bool
}

const (
	StateStopped int32 = iota
	StateStarting
	StateRunning
	StateStopping
)
