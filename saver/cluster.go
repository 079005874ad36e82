package saver

import "fmt"

// Cluster identifies a group of CPUs sharing one frequency domain.
type Cluster string

const (
	ClusterLittle Cluster = "little"
	ClusterBig    Cluster = "big"
	ClusterPrime  Cluster = "prime"
)

// Clusters lists every cluster in the order the worker visits them.
var Clusters = []Cluster{ClusterLittle, ClusterBig, ClusterPrime}

// ValidClusters is the set of recognized cluster names.
var ValidClusters = map[Cluster]bool{ClusterLittle: true, ClusterBig: true, ClusterPrime: true}

// Category is one of the fixed interconnect/bandwidth roles a devfreq-style
// device can be classified into.
type Category int

const (
	CategoryNone Category = iota - 1
	CategoryCPULLCCBandwidth
	CategoryLLCCDDRBandwidth
	CategoryDDRLatencyFloor
	CategoryL3Latency
	CategoryNPUDDRBandwidth

	numCategories = 5
)

// Categories lists every classifiable category.
var Categories = []Category{
	CategoryCPULLCCBandwidth,
	CategoryLLCCDDRBandwidth,
	CategoryDDRLatencyFloor,
	CategoryL3Latency,
	CategoryNPUDDRBandwidth,
}

var categoryNames = [numCategories]string{
	"cpu-llcc-bw",
	"llcc-ddr-bw",
	"ddr-latfloor",
	"l3-lat",
	"npu-ddr-bw",
}

// String returns the configuration key of the category.
func (c Category) String() string {
	if c < 0 || int(c) >= numCategories {
		return "none"
	}
	return categoryNames[c]
}

// ParseCategory maps a configuration key back to its Category.
func ParseCategory(name string) (Category, error) {
	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}
	return CategoryNone, fmt.Errorf("unknown bandwidth category %q", name)
}
