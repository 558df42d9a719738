package coordinator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// The engine is synchronous and carries no request contexts; instrument
// updates all use one background context.
var bgCtx = context.Background()

// Metrics holds all the metric instruments for the coordinator.
type Metrics struct {
	TxnsBegun        metric.Int64Counter
	TxnsCommitted    metric.Int64Counter
	txnsAborted      metric.Int64Counter
	ReadsServed      metric.Int64Counter
	WritesBuffered   metric.Int64Counter
	TxnsWaiting      metric.Int64UpDownCounter
	Retries          metric.Int64Counter
	SiteFailures     metric.Int64Counter
	SiteRecoveries   metric.Int64Counter
	TxnDurationTicks metric.Int64Histogram
}

// NewMetrics creates and registers all the metrics for the coordinator.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	txnsBegun, err := meter.Int64Counter(
		"sukunadb.txn.begun_total",
		metric.WithDescription("Total number of transactions begun."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	txnsCommitted, err := meter.Int64Counter(
		"sukunadb.txn.committed_total",
		metric.WithDescription("Total number of transactions committed."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	txnsAborted, err := meter.Int64Counter(
		"sukunadb.txn.aborted_total",
		metric.WithDescription("Total number of transactions aborted, by reason."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	readsServed, err := meter.Int64Counter(
		"sukunadb.read.served_total",
		metric.WithDescription("Total number of reads served, including read-your-own-write."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	writesBuffered, err := meter.Int64Counter(
		"sukunadb.write.buffered_total",
		metric.WithDescription("Total number of write operations broadcast to site buffers."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	txnsWaiting, err := meter.Int64UpDownCounter(
		"sukunadb.txn.waiting",
		metric.WithDescription("Number of transactions currently blocked on a read."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter(
		"sukunadb.txn.retries_total",
		metric.WithDescription("Total number of blocked reads re-executed after a recovery."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	siteFailures, err := meter.Int64Counter(
		"sukunadb.site.failures_total",
		metric.WithDescription("Total number of site failures."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	siteRecoveries, err := meter.Int64Counter(
		"sukunadb.site.recoveries_total",
		metric.WithDescription("Total number of site recoveries."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	txnDurationTicks, err := meter.Int64Histogram(
		"sukunadb.txn.duration_ticks",
		metric.WithDescription("Logical ticks between a transaction's start and commit."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		TxnsBegun:        txnsBegun,
		TxnsCommitted:    txnsCommitted,
		txnsAborted:      txnsAborted,
		ReadsServed:      readsServed,
		WritesBuffered:   writesBuffered,
		TxnsWaiting:      txnsWaiting,
		Retries:          retries,
		SiteFailures:     siteFailures,
		SiteRecoveries:   siteRecoveries,
		TxnDurationTicks: txnDurationTicks,
	}, nil
}

// RecordAbort counts one abort under its reason label.
func (m *Metrics) RecordAbort(reason string) {
	m.txnsAborted.Add(bgCtx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
