// Package coordinator implements the single authority that drives the
// replicated database: it owns the logical clock, the ten site stores, the
// active and committed transaction records, and the per-variable commit
// history. Every operation of the command stream funnels through it.
//
// The engine is logically single-threaded: one operation completes before the
// next begins, and the clock advances by exactly one tick at the start of
// each. Concurrency between transactions is purely the overlap of their
// [startTs, commitTs] windows on that clock. A mutex still guards the
// operation surface so that callers running I/O on separate goroutines see
// each operation complete atomically.
package coordinator

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/sushant-115/sukunadb/core/cluster"
	"github.com/sushant-115/sukunadb/core/transaction"
	commonutils "github.com/sushant-115/sukunadb/internal/common_utils"
)

// CommitRecord is one entry of a variable's commit history, used for
// first-committer-wins validation and the committer path check.
type CommitRecord struct {
	TxnID    string
	CommitTs int
}

// Config configures a Coordinator. A nil Out discards protocol output; a nil
// Logger or Meter falls back to a no-op.
type Config struct {
	// Out receives the protocol output (reads, commits, aborts, dump).
	Out io.Writer
	// Logger receives diagnostic logs, kept separate from protocol output.
	Logger *zap.Logger
	// Meter builds the engine's metric instruments.
	Meter metric.Meter
}

// Coordinator is the transaction manager of the simulated database.
type Coordinator struct {
	mu sync.Mutex

	clock int

	active      map[string]*transaction.Transaction
	committed   []*transaction.Transaction
	committedBy map[string]*transaction.Transaction

	sites map[int]*cluster.SiteStore

	// commitHistory records, per variable, every committed write in commit
	// order.
	commitHistory map[int][]CommitRecord

	out     io.Writer
	logger  *zap.Logger
	metrics *Metrics
}

// New creates a coordinator with all sites up and every variable at its
// initial value.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Meter == nil {
		cfg.Meter = noop.NewMeterProvider().Meter("")
	}
	metrics, err := NewMetrics(cfg.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinator metrics: %w", err)
	}

	c := &Coordinator{
		active:        make(map[string]*transaction.Transaction),
		committedBy:   make(map[string]*transaction.Transaction),
		sites:         make(map[int]*cluster.SiteStore, cluster.NumSites),
		commitHistory: make(map[int][]CommitRecord),
		out:           cfg.Out,
		logger:        cfg.Logger,
		metrics:       metrics,
	}
	for id := 1; id <= cluster.NumSites; id++ {
		c.sites[id] = cluster.NewSiteStore(id)
	}
	return c, nil
}

// Clock returns the current logical time.
func (c *Coordinator) Clock() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock
}

// Site exposes a site store, for inspection by tests and tooling.
func (c *Coordinator) Site(id int) *cluster.SiteStore {
	return c.sites[id]
}

// ActiveTransaction returns the active transaction with the given id, if any.
func (c *Coordinator) ActiveTransaction(id string) (*transaction.Transaction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txn, ok := c.active[id]
	return txn, ok
}

// CommittedTransactions returns the committed log in commit order.
func (c *Coordinator) CommittedTransactions() []*transaction.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*transaction.Transaction(nil), c.committed...)
}

// Begin creates a new active transaction.
func (c *Coordinator) Begin(txnID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock++

	txn := transaction.New(txnID, c.clock)
	c.active[txnID] = txn
	c.metrics.TxnsBegun.Add(bgCtx, 1)
	c.logger.Debug("transaction begins", zap.String("txn", txnID), zap.Int("start_ts", c.clock))
	c.printf("Transaction %s begins at time %d\n", txnID, c.clock)
}

// Write buffers a write at every currently up site hosting the variable.
// Writes never contend across transactions before commit; validation settles
// conflicts at end time.
func (c *Coordinator) Write(txnID string, varID, value int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock++

	txn, ok := c.active[txnID]
	if !ok {
		c.printf("Error: Transaction %s not found\n", txnID)
		return
	}
	if txn.IsWaiting() {
		c.printf("Transaction %s is waiting\n", txnID)
		return
	}

	w := txn.AddWrite(varID, value)

	var applied []int
	for _, siteID := range cluster.Placement(varID) {
		site := c.sites[siteID]
		if !site.IsUp() {
			continue
		}
		site.BufferWrite(txnID, varID, value)
		txn.WriteSites[siteID] = struct{}{}
		w.SitesApplied[siteID] = struct{}{}
		txn.RecordSiteAccess(siteID, c.clock)
		applied = append(applied, siteID)
	}
	if len(applied) == 0 {
		c.logger.Warn("write reached no site, every replica is down",
			zap.String("txn", txnID), zap.Int("variable", varID))
	}
	c.metrics.WritesBuffered.Add(bgCtx, 1)

	var sb strings.Builder
	fmt.Fprintf(&sb, "W(%s, x%d, %d) -> sites:", txnID, varID, value)
	for _, s := range applied {
		fmt.Fprintf(&sb, " %d", s)
	}
	c.printf("%s\n", sb.String())
}

// End validates the transaction and either commits it or aborts it. The
// validators run in a fixed order: the site failure rule, then
// first-committer-wins, then the read-write cycle check. A waiting
// transaction is validated like an active one; its blocked read was never
// recorded, so only the sites it touched before blocking count for the
// failure rule.
func (c *Coordinator) End(txnID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock++

	txn, ok := c.active[txnID]
	if !ok {
		c.printf("Error: Transaction %s not found\n", txnID)
		return
	}

	if c.violatesFailureRule(txn) {
		c.abort(txn, "Site failure")
		return
	}
	if c.violatesFirstCommitterWins(txn) {
		c.abort(txn, "First-committer-wins")
		return
	}

	// Anti-dependency edges are built provisionally: the cycle check sees
	// them, but they only become part of the graph if the commit goes
	// through.
	edges := c.proposeCommitEdges(txn)
	if c.hasDangerousStructure(txn, edges) {
		c.abort(txn, "RW-cycle")
		return
	}
	c.applyEdges(edges)
	c.commit(txn)
}

func (c *Coordinator) commit(txn *transaction.Transaction) {
	if txn.IsWaiting() {
		c.metrics.TxnsWaiting.Add(bgCtx, -1)
	}
	txn.CommitTs = c.clock
	txn.Status = transaction.StatusCommitted

	for _, siteID := range commonutils.SortedSet(txn.WriteSites) {
		if c.sites[siteID].IsUp() {
			c.sites[siteID].Commit(txn.ID, c.clock)
		}
	}
	for _, varID := range commonutils.SortedKeys(txn.WriteSet) {
		c.commitHistory[varID] = append(c.commitHistory[varID], CommitRecord{TxnID: txn.ID, CommitTs: c.clock})
	}

	c.committed = append(c.committed, txn)
	c.committedBy[txn.ID] = txn
	delete(c.active, txn.ID)

	c.metrics.TxnsCommitted.Add(bgCtx, 1)
	c.metrics.TxnDurationTicks.Record(bgCtx, int64(txn.CommitTs-txn.StartTs))
	c.logger.Info("transaction committed",
		zap.String("txn", txn.ID), zap.Int("start_ts", txn.StartTs), zap.Int("commit_ts", txn.CommitTs))
	c.printf("%s commits\n", txn.ID)
}

// abort drops the transaction: buffered writes are discarded at every site it
// wrote to and it leaves the active map. Edges other transactions hold toward
// this id go stale; the graph walks treat a vanished id as having no outgoing
// edges.
func (c *Coordinator) abort(txn *transaction.Transaction, reason string) {
	if txn.IsWaiting() {
		c.metrics.TxnsWaiting.Add(bgCtx, -1)
	}
	txn.Status = transaction.StatusAborted

	for _, siteID := range commonutils.SortedSet(txn.WriteSites) {
		c.sites[siteID].Abort(txn.ID)
	}
	delete(c.active, txn.ID)

	c.metrics.RecordAbort(reason)
	c.logger.Info("transaction aborted", zap.String("txn", txn.ID), zap.String("reason", reason))
	c.printf("%s aborts (%s)\n", txn.ID, reason)
}

// FailSite takes a site down. Its buffered writes are lost; active
// transactions are not notified and the failure rule settles the damage at
// their commit.
func (c *Coordinator) FailSite(siteID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock++

	site, ok := c.sites[siteID]
	if !ok {
		c.printf("Error: Site %d not found\n", siteID)
		return
	}
	c.printf("Site %d fails\n", siteID)
	site.Fail(c.clock)
	c.metrics.SiteFailures.Add(bgCtx, 1)
	c.logger.Info("site failed", zap.Int("site", siteID), zap.Int("time", c.clock))
}

// RecoverSite brings a site back up, closes the read gates of its replicated
// variables, and retries every waiting transaction the recovery could
// unblock.
func (c *Coordinator) RecoverSite(siteID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock++

	site, ok := c.sites[siteID]
	if !ok {
		c.printf("Error: Site %d not found\n", siteID)
		return
	}
	c.printf("Site %d recovers\n", siteID)
	site.Recover(c.clock)
	c.metrics.SiteRecoveries.Add(bgCtx, 1)
	c.logger.Info("site recovered", zap.Int("site", siteID), zap.Int("time", c.clock))
	c.retryWaiting(siteID)
}

// Dump prints the committed state of every site. Down sites dump too:
// failure only clears buffers, never committed versions.
func (c *Coordinator) Dump() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock++

	c.printf("\n=== DUMP ===\n")
	for siteID := 1; siteID <= cluster.NumSites; siteID++ {
		state := c.sites[siteID].CommittedState()
		var sb strings.Builder
		fmt.Fprintf(&sb, "site %d - ", siteID)
		first := true
		for varID := 1; varID <= cluster.NumVariables; varID++ {
			value, ok := state[varID]
			if !ok {
				continue
			}
			if !first {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "x%d: %d", varID, value)
			first = false
		}
		c.printf("%s\n", sb.String())
	}
	c.printf("============\n\n")
}

func (c *Coordinator) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
