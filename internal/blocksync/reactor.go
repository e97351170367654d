package blocksync

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/chaincore/chaincore/config"
	"github.com/chaincore/chaincore/internal/eventbus"
	"github.com/chaincore/chaincore/internal/processor"
	"github.com/chaincore/chaincore/libs/log"
	"github.com/chaincore/chaincore/libs/service"
)

const subscriberID = "blocksync"

// EventSubscriber is the event bus the reactor listens on.
type EventSubscriber interface {
	Subscribe(clientID, topic string, capacity int) (*eventbus.Subscription, error)
	Unsubscribe(clientID, topic string) error
}

// Reactor consumes the sync requests published by the processor and runs the
// synchronizer for them, one at a time.
type Reactor struct {
	service.BaseService
	logger log.Logger

	cfg          *config.SyncConfig
	events       EventSubscriber
	synchronizer *Synchronizer
}

// NewReactor returns new reactor instance.
func NewReactor(
	cfg *config.SyncConfig,
	logger log.Logger,
	events EventSubscriber,
	synchronizer *Synchronizer,
) *Reactor {
	r := &Reactor{
		logger:       logger,
		cfg:          cfg,
		events:       events,
		synchronizer: synchronizer,
	}
	r.BaseService = *service.NewBaseService(logger, "BlockSync", r)
	return r
}

// OnStart subscribes to sync requests and processes them in a separate
// goroutine until ctx is done or the reactor is stopped.
func (r *Reactor) OnStart(ctx context.Context) error {
	if !r.cfg.Enable {
		r.logger.Info("block synchronization disabled")
		return nil
	}

	sub, err := r.events.Subscribe(subscriberID, processor.TopicSync, r.cfg.SubscriptionBuffer)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", processor.TopicSync, err)
	}
	go r.processSyncRequests(ctx, sub)
	return nil
}

// OnStop removes the subscription, which ends the processing goroutine.
func (r *Reactor) OnStop() {
	if !r.cfg.Enable {
		return
	}
	if err := r.events.Unsubscribe(subscriberID, processor.TopicSync); err != nil &&
		!errors.Is(err, eventbus.ErrSubscriptionNotFound) {
		r.logger.Error("failed to unsubscribe", "topic", processor.TopicSync, "err", err)
	}
}

func (r *Reactor) processSyncRequests(ctx context.Context, sub *eventbus.Subscription) {
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return
		}
		if err := r.handleSyncRequest(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			r.logger.Error("failed to process sync request", "err", err)
		}
	}
}

// handleSyncRequest decodes the block of a sync request and runs the
// synchronizer if it applies.
func (r *Reactor) handleSyncRequest(ctx context.Context, msg eventbus.Message) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("panic in processing sync request: %v", e)
			r.logger.Error(
				"recovering from processing sync request panic",
				"err", err,
				"stack", string(debug.Stack()),
			)
		}
	}()

	event, ok := msg.Data.(processor.SyncEvent)
	if !ok {
		return fmt.Errorf("unexpected %T on %s", msg.Data, msg.Topic)
	}
	block, err := r.synchronizer.processor.Deserialize(ctx, event.Block)
	if err != nil {
		return fmt.Errorf("decoding block %s: %w", event.Block.ID, err)
	}

	logger := r.logger.With("id", block.ID, "height", block.Height, "peer", event.PeerID)
	if r.synchronizer.IsActive() {
		logger.Debug("block synchronization already running; ignoring sync request")
		return nil
	}

	valid, err := r.synchronizer.IsValidFor(ctx, block)
	if err != nil {
		return err
	}
	if !valid {
		logger.Debug("node is not far enough behind to synchronize")
		return nil
	}

	outcome, err := r.synchronizer.Run(ctx, block)
	if errors.Is(err, ErrSyncInProgress) {
		logger.Debug("block synchronization already running; ignoring sync request")
		return nil
	}
	logger.Debug("sync request handled", "outcome", outcome)
	return err
}
