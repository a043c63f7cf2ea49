// Package txn runs a unit of work inside a MongoDB multi-document
// transaction, falling back to plain sequential writes on deployments that
// do not support transactions (standalone mongod, some DocumentDB tiers).
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Runner executes functions transactionally against one client.
type Runner struct {
	client *mongo.Client
	log    *zap.Logger
}

// New returns a Runner for client.
func New(client *mongo.Client, logger *zap.Logger) *Runner {
	return &Runner{client: client, log: logger}
}

// Run calls fn inside a transaction. Store calls made with the context passed
// to fn join the transaction. fn may be retried by the driver on transient
// errors, so it must be safe to run more than once.
//
// If the server rejects transactions, fn is run once without one and a
// warning is logged.
func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := r.client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			r.warnFallback(err)
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		r.warnFallback(err)
		return fn(ctx)
	}
	return err
}

func (r *Runner) warnFallback(err error) {
	if r.log == nil {
		return
	}
	r.log.Warn("transactions unsupported; running writes sequentially", zap.Error(err))
}

// IsNotSupported reports whether err means the deployment cannot run
// multi-document transactions.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, // IllegalOperation: "Transaction numbers are only allowed on a replica set member"
			51,  // "Illegal operation"
			263: // OperationNotSupportedInTransaction
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	hits := 0
	for _, kw := range []string{"transaction", "replica set", "session", "not supported", "illegal operation"} {
		if strings.Contains(msg, kw) {
			hits++
		}
	}
	return hits >= 2
}
