package network

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Cascade tries an ordered list of broadcast endpoints until one
// accepts the transaction. Classification of "already known" rejections
// lives here, in one place, rather than in each endpoint client.
type Cascade struct {
	endpoints []Broadcaster
	logger    *zap.Logger
}

// NewCascade builds a cascade over the given endpoints, tried in order.
// A nil logger disables logging.
func NewCascade(logger *zap.Logger, endpoints ...Broadcaster) *Cascade {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cascade{endpoints: endpoints, logger: logger}
}

// Broadcast submits rawTx to each endpoint in order and returns the
// accepted transaction id.
//
// localTxid is the id computed from the signed bytes before any network
// round-trip. When present it takes precedence over whatever id an
// endpoint reports, and an "already known" rejection resolves to it as
// success without trying further endpoints.
func (c *Cascade) Broadcast(ctx context.Context, rawTx []byte, localTxid string) (string, error) {
	var failures []error

	for _, ep := range c.endpoints {
		reported, err := ep.SubmitTx(ctx, rawTx)
		if err == nil {
			txid, ok := c.acceptedTxid(ep.Name(), reported, localTxid)
			if !ok {
				failures = append(failures, fmt.Errorf("%w: malformed txid %q", ErrInvalidResponse, reported))
				continue
			}
			return txid, nil
		}

		if IsAlreadyKnown(err.Error()) && localTxid != "" {
			c.logger.Info("transaction already known",
				zap.String("endpoint", ep.Name()),
				zap.String("txid", localTxid))
			return localTxid, nil
		}

		c.logger.Warn("broadcast endpoint failed",
			zap.String("endpoint", ep.Name()),
			zap.Error(err))
		failures = append(failures, err)

		if ctx.Err() != nil {
			break
		}
	}

	// An already-known rejection collected earlier still means the
	// transaction is on-chain, even when it was not actionable at the
	// time.
	for _, err := range failures {
		if IsAlreadyKnown(err.Error()) {
			if localTxid != "" {
				return localTxid, nil
			}
			return "", &BroadcastError{Reason: "transaction already known to the network"}
		}
	}

	return "", &BroadcastError{Reason: sanitizedReason(failures)}
}

// acceptedTxid picks the id to trust for an accepted submission. The
// second return is false when no usable id exists, which the cascade
// treats as an endpoint failure.
func (c *Cascade) acceptedTxid(endpoint, reported, localTxid string) (string, bool) {
	if !IsWellFormedTxID(reported) {
		if localTxid == "" {
			return "", false
		}
		return localTxid, true
	}
	if localTxid == "" {
		return reported, true
	}
	if !strings.EqualFold(reported, localTxid) {
		// An endpoint must never redirect the wallet's view of its own
		// transaction.
		c.logger.Warn("endpoint reported divergent txid",
			zap.String("endpoint", endpoint),
			zap.String("reported", reported),
			zap.String("local", localTxid))
	}
	return localTxid, true
}

// sanitizedReason reduces the collected failures to wording safe to
// surface: no endpoint names, no upstream payloads.
func sanitizedReason(failures []error) string {
	for _, err := range failures {
		if errors.Is(err, ErrBroadcastRejected) {
			return "the network rejected the transaction"
		}
	}
	return "no broadcast endpoint was reachable"
}
