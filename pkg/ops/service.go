package ops

import (
	"github.com/opjourney/opjourney/pkg/journey"
	"github.com/opjourney/opjourney/pkg/logging"
)

// ServiceContext is the process-wide context. It owns the journey Observer
// for the life of the process; the Observer exists only when tracking was
// enabled at startup.
type ServiceContext struct {
	log      *logging.Logger
	observer *journey.Observer
}

// NewServiceContext builds the process-wide context. The Observer is
// installed here, once, gated on the tracking switch; it has no teardown
// beyond process exit.
func NewServiceContext(log *logging.Logger) *ServiceContext {
	sc := &ServiceContext{log: log}
	if journey.TrackingEnabled() {
		sc.observer = journey.NewObserver()
		log.Debug("Started operation journey observer")
	}
	return sc
}

// Observer returns the process-wide aggregate, or nil when tracking is
// disabled.
func (sc *ServiceContext) Observer() *journey.Observer {
	return sc.observer
}

// Logger returns the process logger.
func (sc *ServiceContext) Logger() *logging.Logger {
	return sc.log
}
