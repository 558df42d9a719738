package coordinator

import (
	"sort"

	"github.com/sushant-115/sukunadb/core/transaction"
	commonutils "github.com/sushant-115/sukunadb/internal/common_utils"
)

// violatesFailureRule reports whether any site the transaction wrote to, or
// read an unreplicated variable from, failed after the transaction first
// touched it. A failed write site lost the buffered writes; a failed critical
// read site was the only copy of what was read. Replicated reads are exempt:
// another replica can still serve a serializable history.
func (c *Coordinator) violatesFailureRule(txn *transaction.Transaction) bool {
	checkSite := func(siteID int) bool {
		firstAccess, ok := txn.FirstAccessTime[siteID]
		if !ok {
			return false
		}
		for _, iv := range c.sites[siteID].FailureHistory() {
			if iv.FailTime >= firstAccess && iv.FailTime < c.clock {
				return true
			}
		}
		return false
	}

	for siteID := range txn.WriteSites {
		if checkSite(siteID) {
			return true
		}
	}
	for siteID := range txn.CriticalReadSites {
		if checkSite(siteID) {
			return true
		}
	}
	return false
}

// violatesFirstCommitterWins reports whether some other transaction committed
// a write to one of this transaction's written variables inside its
// [startTs, now) window. Among concurrent writers of a variable only the
// first committer survives.
func (c *Coordinator) violatesFirstCommitterWins(txn *transaction.Transaction) bool {
	for varID := range txn.WriteSet {
		for _, rec := range c.commitHistory[varID] {
			if rec.CommitTs > txn.StartTs && rec.CommitTs < c.clock {
				return true
			}
		}
	}
	return false
}

// rwEdge is a read-write anti-dependency: From read a version of some
// variable that To overwrites. In any serial order From must precede To.
type rwEdge struct {
	From string
	To   string
}

// proposeCommitEdges computes the anti-dependency edges that committing the
// transaction would create: one edge R -> txn for every transaction R that
// read a variable txn is about to overwrite. Edges from still-active readers
// are unconditional — an active reader necessarily observed a version older
// than the one being installed. Edges from committed readers require that the
// read's version predates this commit. The edges are only proposed here; the
// caller persists them alongside a successful commit and discards them when
// validation aborts.
func (c *Coordinator) proposeCommitEdges(txn *transaction.Transaction) []rwEdge {
	var edges []rwEdge
	seen := make(map[rwEdge]struct{})
	add := func(from string) {
		e := rwEdge{From: from, To: txn.ID}
		if _, dup := seen[e]; dup {
			return
		}
		seen[e] = struct{}{}
		edges = append(edges, e)
	}

	for _, varID := range commonutils.SortedKeys(txn.WriteSet) {
		for _, readerID := range sortedTxnIDs(c.active) {
			reader := c.active[readerID]
			if readerID == txn.ID {
				continue
			}
			if _, ok := reader.ReadSet[varID]; ok {
				add(readerID)
			}
		}
		for _, reader := range c.committed {
			ri, ok := reader.ReadSet[varID]
			if !ok {
				continue
			}
			if ri.VersionTs < c.clock {
				add(reader.ID)
			}
		}
	}
	return edges
}

// applyEdges persists proposed edges into the adjacency sets of both
// endpoints. Unknown endpoints (aborted since the read) are skipped.
func (c *Coordinator) applyEdges(edges []rwEdge) {
	for _, e := range edges {
		from := c.lookupTxn(e.From)
		to := c.lookupTxn(e.To)
		if from == nil || to == nil {
			continue
		}
		from.AddOutgoingRW(e.To)
		to.AddIncomingRW(e.From)
	}
}

// hasDangerousStructure reports whether committing the transaction would
// close a cycle containing two consecutive anti-dependency edges — the
// structure snapshot isolation must forbid to stay serializable. Two
// complementary searches run over the edge graph overlaid with the proposed
// edges:
//
//  1. a depth-first walk out of txn that returns to txn having crossed at
//     least two edges, and
//  2. for every variable txn writes, a breadth-first path check from txn to
//     each prior committer of that variable whose commit postdates txn's
//     snapshot — the committer's implied anti-dependency back into txn would
//     close the cycle.
//
// The second search catches structures the first cannot reach because the
// closing edge is implied rather than materialized.
func (c *Coordinator) hasDangerousStructure(txn *transaction.Transaction, proposed []rwEdge) bool {
	overlay := make(map[string][]string)
	for _, e := range proposed {
		overlay[e.From] = append(overlay[e.From], e.To)
	}

	visited := make(map[string]struct{})
	if c.walkReturnsTo(txn.ID, txn.ID, 0, visited, overlay) {
		return true
	}

	for _, varID := range commonutils.SortedKeys(txn.WriteSet) {
		for _, rec := range c.commitHistory[varID] {
			if rec.CommitTs <= txn.StartTs {
				continue
			}
			if c.pathExists(txn.ID, rec.TxnID, overlay) {
				return true
			}
		}
	}
	return false
}

// walkReturnsTo performs the depth-first search of check 1. The start node is
// allowed to be re-entered once at least two edges have been crossed; every
// other node is visited at most once. A vanished transaction id contributes
// no outgoing edges.
func (c *Coordinator) walkReturnsTo(from, target string, edgeCount int, visited map[string]struct{}, overlay map[string][]string) bool {
	if from == target && edgeCount >= 2 {
		return true
	}
	if _, ok := visited[from]; ok {
		return false
	}
	visited[from] = struct{}{}

	for _, next := range c.outgoingRW(from, overlay) {
		if c.walkReturnsTo(next, target, edgeCount+1, visited, overlay) {
			return true
		}
	}
	return false
}

// pathExists performs the breadth-first reachability check of check 2.
func (c *Coordinator) pathExists(from, to string, overlay map[string][]string) bool {
	visited := map[string]struct{}{from: {}}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == to {
			return true
		}
		for _, next := range c.outgoingRW(current, overlay) {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return false
}

// outgoingRW returns the outgoing anti-dependency edges of a transaction,
// including any overlaid proposed edges, in deterministic order. Ids that
// resolve to no live or committed transaction have no outgoing edges.
func (c *Coordinator) outgoingRW(txnID string, overlay map[string][]string) []string {
	var out []string
	if txn := c.lookupTxn(txnID); txn != nil {
		for next := range txn.OutRW {
			out = append(out, next)
		}
	}
	out = append(out, overlay[txnID]...)
	sort.Strings(out)
	return out
}

// lookupTxn resolves a transaction id against the active map, then the
// committed log. Aborted transactions resolve to nil.
func (c *Coordinator) lookupTxn(txnID string) *transaction.Transaction {
	if txn, ok := c.active[txnID]; ok {
		return txn
	}
	if txn, ok := c.committedBy[txnID]; ok {
		return txn
	}
	return nil
}
