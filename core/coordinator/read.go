package coordinator

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sushant-115/sukunadb/core/cluster"
	"github.com/sushant-115/sukunadb/core/transaction"
	commonutils "github.com/sushant-115/sukunadb/internal/common_utils"
)

// Read serves a snapshot read for the transaction. The value comes from the
// transaction's own write buffer when it already wrote the variable;
// otherwise unreplicated variables are routed to their home site and
// replicated variables to any site that can serve a consistent snapshot. A
// read with no servable site either parks the transaction (some candidate
// site may recover) or aborts it (no site can ever serve the snapshot).
func (c *Coordinator) Read(txnID string, varID int) {
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

	// Read-your-own-write: resolved from the pending write, never recorded
	// in the read set.
	if value, ok := txn.PendingWrite(varID); ok {
		c.metrics.ReadsServed.Add(bgCtx, 1)
		c.printf("x%d: %d (RYOW)\n", varID, value)
		return
	}

	if cluster.IsReplicated(varID) {
		c.readReplicated(txn, varID)
	} else {
		c.readFromHomeSite(txn, varID)
	}
}

// readFromHomeSite serves a read of an unreplicated variable. The home site
// is the only copy, so the read makes that site critical: if it fails before
// the transaction ends, the failure rule aborts it.
func (c *Coordinator) readFromHomeSite(txn *transaction.Transaction, varID int) {
	home := cluster.HomeSite(varID)
	site := c.sites[home]

	if !site.IsUp() {
		c.printf("Transaction %s waits (site %d down)\n", txn.ID, home)
		txn.SetWaiting(varID, commonutils.SetOf(home))
		c.metrics.TxnsWaiting.Add(bgCtx, 1)
		return
	}

	version, ok := site.Read(varID, txn.StartTs)
	if !ok {
		// An up home site always holds a version at or before any start
		// time; reaching this is an invariant violation, not an abort.
		c.logger.Error("no readable version at up home site",
			zap.String("txn", txn.ID), zap.Int("variable", varID), zap.Int("site", home))
		c.printf("Error: No version for x%d\n", varID)
		return
	}

	txn.AddRead(varID, home, version.Value, version.CommitTs, version.Writer)
	txn.CriticalReadSites[home] = struct{}{}
	txn.RecordSiteAccess(home, c.clock)
	c.metrics.ReadsServed.Add(bgCtx, 1)
	c.printf("x%d: %d\n", varID, version.Value)
}

// readReplicated serves a read of a replicated variable from the
// lowest-numbered site that can prove a consistent snapshot. Replicated reads
// never mark a site critical: any surviving replica can stand in for a
// failed one.
func (c *Coordinator) readReplicated(txn *transaction.Transaction, varID int) {
	valid := c.validSnapshotSites(txn, varID)

	if len(valid) == 0 {
		// No up site can serve the snapshot. A down site that was still up
		// when the transaction started may be able to serve it again once it
		// recovers, so it counts as a candidate worth waiting for. A site
		// already down at the start never can.
		candidates := make(map[int]struct{})
		for _, siteID := range cluster.Placement(varID) {
			site := c.sites[siteID]
			if !site.IsUp() && site.WasUpAt(txn.StartTs) {
				candidates[siteID] = struct{}{}
			}
		}
		if len(candidates) > 0 {
			c.printf("Transaction %s waits (no valid site)\n", txn.ID)
			txn.SetWaiting(varID, candidates)
			c.metrics.TxnsWaiting.Add(bgCtx, 1)
		} else {
			c.abort(txn, fmt.Sprintf("No valid snapshot for x%d", varID))
		}
		return
	}

	chosen := valid[0]
	version, ok := c.sites[chosen].VersionAt(varID, txn.StartTs)
	if !ok {
		c.logger.Error("valid snapshot site lost its version",
			zap.String("txn", txn.ID), zap.Int("variable", varID), zap.Int("site", chosen))
		c.printf("Error: No version for x%d\n", varID)
		return
	}

	txn.AddRead(varID, chosen, version.Value, version.CommitTs, version.Writer)
	txn.RecordSiteAccess(chosen, c.clock)
	c.metrics.ReadsServed.Add(bgCtx, 1)
	c.printf("x%d: %d\n", varID, version.Value)
}

// validSnapshotSites returns, in ascending order, the up sites that can serve
// the transaction a consistent snapshot of the variable. An unreplicated
// variable's home site qualifies whenever it is up: its committed chain is
// the only copy and survives outages intact. A replicated site qualifies only
// if it holds a version at or before the snapshot AND stayed up continuously
// from that version's commit to the transaction's start — a replica that was
// down anywhere in that window may have missed a committed write.
func (c *Coordinator) validSnapshotSites(txn *transaction.Transaction, varID int) []int {
	var valid []int
	for _, siteID := range cluster.Placement(varID) {
		site := c.sites[siteID]
		if !site.IsUp() {
			continue
		}
		if !cluster.IsReplicated(varID) {
			valid = append(valid, siteID)
			continue
		}
		version, ok := site.VersionAt(varID, txn.StartTs)
		if !ok {
			continue
		}
		if site.WasUpContinuously(version.CommitTs, txn.StartTs) {
			valid = append(valid, siteID)
		}
	}
	return valid
}

// retryWaiting re-executes the blocked read of every waiting transaction the
// recovered site could unblock: either the read is of an unreplicated
// variable whose home just came back, or some site can now serve a valid
// snapshot. A retried read may succeed, park the transaction again, or abort
// it.
func (c *Coordinator) retryWaiting(recoveredSiteID int) {
	var toRetry []string
	for _, txnID := range sortedTxnIDs(c.active) {
		txn := c.active[txnID]
		if !txn.IsWaiting() || txn.Wait == nil {
			continue
		}
		if !commonutils.Contains(txn.Wait.CandidateSites, recoveredSiteID) {
			continue
		}
		varID := txn.Wait.VariableID
		if !cluster.IsReplicated(varID) {
			toRetry = append(toRetry, txnID)
		} else if len(c.validSnapshotSites(txn, varID)) > 0 {
			toRetry = append(toRetry, txnID)
		}
	}

	for _, txnID := range toRetry {
		txn := c.active[txnID]
		varID := txn.Wait.VariableID

		c.printf("Retry: %s\n", txnID)
		txn.Resume()
		c.metrics.TxnsWaiting.Add(bgCtx, -1)
		c.metrics.Retries.Add(bgCtx, 1)
		c.logger.Debug("retrying blocked read",
			zap.String("txn", txnID), zap.Int("variable", varID), zap.Int("site", recoveredSiteID))

		if cluster.IsReplicated(varID) {
			c.readReplicated(txn, varID)
		} else {
			c.readFromHomeSite(txn, varID)
		}
	}
}

func sortedTxnIDs(m map[string]*transaction.Transaction) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
