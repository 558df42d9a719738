// Package cluster models the fixed site topology of the database: which
// variables live where, and the per-site versioned stores that hold them.
package cluster

const (
	// NumVariables is the number of variables in the database, numbered 1..NumVariables.
	NumVariables = 20
	// NumSites is the number of storage sites, numbered 1..NumSites.
	NumSites = 10

	initialValueMultiplier = 10
)

// InitialWriter is the synthetic writer id recorded on the versions that
// populate every site at time zero.
const InitialWriter = "INITIAL"

// IsReplicated reports whether a variable is stored at every site.
// Even-indexed variables are fully replicated; odd-indexed variables live at
// a single home site.
func IsReplicated(varID int) bool {
	return varID%2 == 0
}

// HomeSite returns the home site of a variable. For unreplicated variables
// this is the only site that stores it.
func HomeSite(varID int) int {
	return 1 + varID%NumSites
}

// Placement returns the ids of the sites that store the variable, in
// ascending order.
func Placement(varID int) []int {
	if !IsReplicated(varID) {
		return []int{HomeSite(varID)}
	}
	sites := make([]int, 0, NumSites)
	for s := 1; s <= NumSites; s++ {
		sites = append(sites, s)
	}
	return sites
}

// Hosts reports whether the given site stores the given variable.
func Hosts(siteID, varID int) bool {
	return IsReplicated(varID) || HomeSite(varID) == siteID
}

// InitialValue returns the value a variable holds at time zero.
func InitialValue(varID int) int {
	return varID * initialValueMultiplier
}
