package consts

const (
	DefaultBlockDecades     = 1.0   // decade jump that closes a block batch
	DefaultEliminationParam = 0.01  // re-score threshold on |true - accumulated|
	DefaultMaxIterations    = 10000 // engine loop budget
	DefaultSingularTol      = 1e-13 // relative pivot tolerance of the dense LU
)

// GroundNames lists the node names that denote the reference node.
var GroundNames = []string{"0", "gnd", "GND", "ground"}
